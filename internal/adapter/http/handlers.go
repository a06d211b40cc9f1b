// Package http provides the webhook HTTP surface for jirald.
package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	jotel "github.com/mba-tools/jirald/internal/adapter/otel"
	"github.com/mba-tools/jirald/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Classifier *service.Classifier
	Pipeline   *service.Pipeline
	Metrics    *jotel.Metrics
}

// HandleWebhook handles POST /webhook. The HMAC middleware has already
// size-capped the body and verified the signature over it; by the time
// this runs the payload is authenticated. Non-trigger events get a 2xx so
// the sender never retries them; triggered events are accepted and run in
// the background.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	ev, err := h.Classifier.ParseEvent(eventType, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trigger := h.Classifier.Classify(ev)
	if trigger == nil {
		h.Metrics.EventsIgnored.Add(r.Context(), 1)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "event": eventType})
		return
	}

	runID := h.Pipeline.Dispatch(trigger)
	slog.Info("webhook accepted",
		"event", eventType, "trigger", trigger.Kind, "run_id", runID,
		"repo", trigger.PullRequest.Repository, "pr", trigger.PullRequest.Number)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "run_id": runID})
}

// HandleRoot handles GET / as a liveness probe.
func (h *Handlers) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "jirald is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "jirald"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
