// Package forge defines the code-host port (interface) for the outbound
// GitHub operations the pipeline needs.
package forge

import "context"

// Factory mints clients scoped to one app installation. Webhook deliveries
// carry the installation ID; nothing else about the installation flow is
// modeled here.
type Factory interface {
	Installation(id int64) Client
}

// Client is the port interface for the hosting platform of the originating
// pull request. All calls are scoped to one installation.
type Client interface {
	// ListPullRequestFiles returns the filenames changed by a PR.
	ListPullRequestFiles(ctx context.Context, repo string, number int) ([]string, error)

	// CreateComment posts a markdown comment on the PR thread.
	CreateComment(ctx context.Context, repo string, number int, body string) error

	// AddLabels adds labels to a PR.
	AddLabels(ctx context.Context, repo string, number int, labels []string) error

	// RemoveLabel removes a single label from a PR.
	RemoveLabel(ctx context.Context, repo string, number int, label string) error
}
