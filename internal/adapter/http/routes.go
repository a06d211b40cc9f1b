package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/mba-tools/jirald/internal/middleware"
)

// MountRoutes registers all routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, webhookSecret string) {
	// Webhook endpoint: signature verification runs before the handler so
	// nothing downstream ever sees unauthenticated input.
	r.With(middleware.WebhookHMAC(webhookSecret)).
		Post("/webhook", h.HandleWebhook)

	// Liveness probes.
	r.Get("/", h.HandleRoot)
	r.Get("/health", h.HandleHealth)
}
