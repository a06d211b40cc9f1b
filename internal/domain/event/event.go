// Package event defines domain types for inbound GitHub webhook events.
package event

import "time"

// Kind classifies the inbound webhook event.
type Kind string

const (
	KindComment     Kind = "comment"
	KindPullRequest Kind = "pull_request"
	KindLabel       Kind = "label"
)

// PullRequest is the PR context carried by a webhook event. It is a
// transient read-only copy; GitHub owns the data.
type PullRequest struct {
	Number       int      `json:"number"`
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Author       string   `json:"author"`
	HeadBranch   string   `json:"head_branch"`
	BaseBranch   string   `json:"base_branch"`
	URL          string   `json:"url"`
	Repository   string   `json:"repository"` // "owner/repo"
	ChangedFiles []string `json:"changed_files,omitempty"`
	Additions    int      `json:"additions"`
	Deletions    int      `json:"deletions"`
	Commits      int      `json:"commits"`
}

// WebhookEvent is a normalized inbound webhook event. Immutable once built;
// discarded when the pipeline run completes.
type WebhookEvent struct {
	Kind           Kind        `json:"kind"`
	Action         string      `json:"action"` // "created", "labeled", ...
	Repository     string      `json:"repository"`
	InstallationID int64       `json:"installation_id"`
	PullRequest    PullRequest `json:"pull_request"`
	CommentBody    string      `json:"comment_body,omitempty"`
	CommentAuthor  string      `json:"comment_author,omitempty"`
	Label          string      `json:"label,omitempty"`
	ReceivedAt     time.Time   `json:"received_at"`
}

// TriggerKind says which trigger condition fired for an event.
type TriggerKind string

const (
	// TriggerMention is an explicit bot command in a PR comment.
	TriggerMention TriggerKind = "mention"
	// TriggerLabel is the configured trigger label newly applied to a PR.
	TriggerLabel TriggerKind = "label"
)

// Trigger is the classifier's output for an event that should run the
// pipeline. Events that meet no trigger condition produce no Trigger.
type Trigger struct {
	Kind           TriggerKind `json:"kind"`
	Request        string      `json:"request"` // free text after the command token
	IssueKey       string      `json:"issue_key,omitempty"`
	PullRequest    PullRequest `json:"pull_request"`
	InstallationID int64       `json:"installation_id"`
}
