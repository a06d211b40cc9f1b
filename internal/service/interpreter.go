package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mba-tools/jirald/internal/domain/card"
	"github.com/mba-tools/jirald/internal/port/chat"
	"github.com/mba-tools/jirald/internal/prompt"
)

// InterpretationError means the model's reply could not be turned into a
// valid intent. It is never silently defaulted: a bad reply fails the run
// rather than creating a card the user did not ask for.
type InterpretationError struct {
	Reason string
	Raw    string
}

func (e *InterpretationError) Error() string {
	return "interpretation failed: " + e.Reason
}

// Interpreter invokes the hosted model and parses its reply into a
// structured intent.
type Interpreter struct {
	completer chat.Completer
	model     string
	maxTokens int
}

// NewInterpreter creates an interpreter using the given model endpoint.
func NewInterpreter(completer chat.Completer, model string, maxTokens int) *Interpreter {
	return &Interpreter{completer: completer, model: model, maxTokens: maxTokens}
}

// InterpretCreate runs the card-creation prompt and parses the full create
// payload. An unknown issue type falls back to the default rather than
// failing the run.
func (i *Interpreter) InterpretCreate(ctx context.Context, p prompt.Payload) (*card.CreateIntent, error) {
	raw, err := i.complete(ctx, p)
	if err != nil {
		return nil, err
	}

	obj, err := extractJSON(raw)
	if err != nil {
		return nil, &InterpretationError{Reason: err.Error(), Raw: raw}
	}

	var intent card.CreateIntent
	if err := json.Unmarshal([]byte(obj), &intent); err != nil {
		return nil, &InterpretationError{Reason: "payload is not a create object: " + err.Error(), Raw: raw}
	}
	if intent.Summary == "" {
		return nil, &InterpretationError{Reason: "create payload missing summary", Raw: raw}
	}
	if !card.IssueTypes[intent.IssueType] {
		intent.IssueType = card.DefaultIssueType
	}
	return &intent, nil
}

// InterpretUpdate runs the card-update prompt and parses the sparse field
// set. Fields absent from the reply stay absent; an unknown issue type is
// rejected because silently coercing an explicit change would be worse than
// failing.
func (i *Interpreter) InterpretUpdate(ctx context.Context, p prompt.Payload, issueKey string) (*card.UpdateIntent, error) {
	raw, err := i.complete(ctx, p)
	if err != nil {
		return nil, err
	}

	obj, err := extractJSON(raw)
	if err != nil {
		return nil, &InterpretationError{Reason: err.Error(), Raw: raw}
	}

	var intent card.UpdateIntent
	if err := json.Unmarshal([]byte(obj), &intent); err != nil {
		return nil, &InterpretationError{Reason: "payload is not an update object: " + err.Error(), Raw: raw}
	}
	intent.IssueKey = issueKey

	if intent.Summary == nil && intent.Description == nil && intent.IssueType == nil {
		return nil, &InterpretationError{Reason: "update payload sets no fields", Raw: raw}
	}
	if intent.IssueType != nil && !card.IssueTypes[*intent.IssueType] {
		return nil, &InterpretationError{Reason: fmt.Sprintf("unknown issue type %q", *intent.IssueType), Raw: raw}
	}
	return &intent, nil
}

// InterpretIntent runs the action-analysis prompt for a free-form request
// and parses the tagged intent (create or query).
func (i *Interpreter) InterpretIntent(ctx context.Context, p prompt.Payload) (*card.Intent, error) {
	raw, err := i.complete(ctx, p)
	if err != nil {
		return nil, err
	}

	obj, err := extractJSON(raw)
	if err != nil {
		return nil, &InterpretationError{Reason: err.Error(), Raw: raw}
	}

	var tagged struct {
		Action      card.Action `json:"action"`
		Summary     string      `json:"summary"`
		Description string      `json:"description"`
		IssueType   string      `json:"issue_type"`
		JQL         string      `json:"jql"`
	}
	if err := json.Unmarshal([]byte(obj), &tagged); err != nil {
		return nil, &InterpretationError{Reason: "payload is not an intent object: " + err.Error(), Raw: raw}
	}

	switch tagged.Action {
	case card.ActionCreate:
		if tagged.Summary == "" {
			return nil, &InterpretationError{Reason: "create payload missing summary", Raw: raw}
		}
		issueType := tagged.IssueType
		if !card.IssueTypes[issueType] {
			issueType = card.DefaultIssueType
		}
		return &card.Intent{
			Action: card.ActionCreate,
			Create: &card.CreateIntent{
				Summary:     tagged.Summary,
				Description: tagged.Description,
				IssueType:   issueType,
			},
		}, nil
	case card.ActionQuery:
		if tagged.JQL == "" {
			return nil, &InterpretationError{Reason: "query payload missing jql", Raw: raw}
		}
		return &card.Intent{
			Action: card.ActionQuery,
			Query:  &card.QueryIntent{JQL: tagged.JQL},
		}, nil
	default:
		return nil, &InterpretationError{Reason: fmt.Sprintf("unknown action %q", tagged.Action), Raw: raw}
	}
}

func (i *Interpreter) complete(ctx context.Context, p prompt.Payload) (string, error) {
	reply, err := i.completer.Complete(ctx, chat.Request{
		Model:     i.model,
		System:    p.System,
		User:      p.User,
		MaxTokens: i.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("model call: %w", err)
	}
	return reply, nil
}

// extractJSON finds the single JSON object in a model reply, tolerating
// surrounding prose and ``` fencing. Empty output, output with no object,
// and output with multiple conflicting objects are all rejected.
func extractJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("model returned empty output")
	}

	candidates := scanObjects(trimmed)
	if len(candidates) == 0 {
		return "", fmt.Errorf("no JSON object in model output")
	}

	// Identical repeats of one object are fine; distinct objects are a
	// conflict we refuse to guess between.
	first := candidates[0]
	for _, c := range candidates[1:] {
		if c != first {
			return "", fmt.Errorf("multiple conflicting JSON objects in model output")
		}
	}
	return first, nil
}

// scanObjects returns every balanced top-level {...} group that parses as a
// JSON object, normalized via re-marshaling for comparison.
func scanObjects(s string) []string {
	var objects []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for idx, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = idx
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				candidate := s[start : idx+1]
				var decoded map[string]json.RawMessage
				if err := json.Unmarshal([]byte(candidate), &decoded); err == nil {
					normalized, err := json.Marshal(decoded)
					if err == nil {
						objects = append(objects, string(normalized))
					}
				}
			}
		}
	}
	return objects
}
