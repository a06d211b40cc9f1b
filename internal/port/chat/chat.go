// Package chat defines the hosted language model port (interface).
package chat

import "context"

// Request is a single completion call: one fixed system instruction plus one
// user turn with serialized context.
type Request struct {
	Model     string
	System    string
	User      string
	MaxTokens int
}

// Completer invokes the hosted model once per pipeline run. The model is an
// untrusted, best-effort oracle; callers must validate its reply.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
