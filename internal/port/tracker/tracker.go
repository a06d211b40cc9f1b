// Package tracker defines the issue tracker port (interface) and its error
// taxonomy.
package tracker

import "context"

// Issue is a transient read/write copy of a tracker issue. The tracker is
// the system of record; nothing here is cached across requests.
type Issue struct {
	Key         string `json:"key"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	IssueType   string `json:"issue_type"`
	Status      string `json:"status"`
	URL         string `json:"url"`
}

// Transition is an available workflow transition for an issue.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateRequest holds the fields for a new issue.
type CreateRequest struct {
	ProjectKey   string
	Summary      string
	IssueType    string
	Description  string
	Priority     string
	CustomFields map[string]any
}

// Client is the port interface for a JIRA-like tracker. Mutating calls are
// not idempotent: a second CreateIssue with identical input creates a
// second, distinct issue.
type Client interface {
	CreateIssue(ctx context.Context, req CreateRequest) (*Issue, error)
	UpdateIssue(ctx context.Context, issueKey string, fields map[string]string) (*Issue, error)
	GetIssue(ctx context.Context, issueKey string) (*Issue, error)
	SearchIssues(ctx context.Context, jql string, maxResults, startAt int) ([]Issue, error)
	AddComment(ctx context.Context, issueKey, text string) error
	ListTransitions(ctx context.Context, issueKey string) ([]Transition, error)
	TransitionIssue(ctx context.Context, issueKey, transitionID string) error
}
