// Package service wires the webhook pipeline: classification,
// interpretation, tracker mutation, and reply formatting.
package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/mba-tools/jirald/internal/domain/event"
)

// issueKeyPattern matches a tracker issue key like "MBA-42" inside a request.
var issueKeyPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)

// Classifier decides whether an inbound webhook event triggers the pipeline.
type Classifier struct {
	commandToken string
	triggerLabel string
	botLogin     string
}

// NewClassifier creates a classifier for the given trigger configuration.
func NewClassifier(commandToken, triggerLabel, botLogin string) *Classifier {
	return &Classifier{
		commandToken: commandToken,
		triggerLabel: triggerLabel,
		botLogin:     botLogin,
	}
}

// ParseEvent normalizes a raw GitHub webhook payload into a WebhookEvent.
// Event types the bot does not care about yield a nil event and no error.
func (c *Classifier) ParseEvent(eventType string, data []byte) (*event.WebhookEvent, error) {
	switch eventType {
	case "issue_comment":
		return parseIssueComment(data)
	case "pull_request":
		return parsePullRequest(data)
	default:
		return nil, nil
	}
}

// Classify applies the trigger rules to a normalized event. A nil Trigger
// means the event is ignored; that is a terminal state, not an error.
func (c *Classifier) Classify(ev *event.WebhookEvent) *event.Trigger {
	if ev == nil {
		return nil
	}

	switch ev.Kind {
	case event.KindComment:
		return c.classifyComment(ev)
	case event.KindLabel:
		return c.classifyLabel(ev)
	default:
		return nil
	}
}

// classifyComment recognizes an explicit mention: the comment must start
// with the command token (case-sensitive exact prefix) and must not come
// from the bot itself.
func (c *Classifier) classifyComment(ev *event.WebhookEvent) *event.Trigger {
	if ev.CommentAuthor == c.botLogin {
		return nil
	}

	body := ev.CommentBody
	if !strings.HasPrefix(body, c.commandToken) {
		return nil
	}

	rest := body[len(c.commandToken):]
	if rest != "" && !strings.HasPrefix(rest, " ") && !strings.HasPrefix(rest, "\n") {
		// "/jiraldXYZ" is not a command.
		return nil
	}

	request := strings.TrimSpace(rest)
	if request == "" {
		return nil
	}

	slog.Debug("explicit mention trigger",
		"repo", ev.Repository, "pr", ev.PullRequest.Number, "author", ev.CommentAuthor)

	return &event.Trigger{
		Kind:           event.TriggerMention,
		Request:        request,
		IssueKey:       issueKeyPattern.FindString(request),
		PullRequest:    ev.PullRequest,
		InstallationID: ev.InstallationID,
	}
}

// classifyLabel recognizes the trigger label being newly applied to a PR.
func (c *Classifier) classifyLabel(ev *event.WebhookEvent) *event.Trigger {
	if ev.Action != "labeled" || ev.Label != c.triggerLabel {
		return nil
	}

	slog.Debug("label trigger",
		"repo", ev.Repository, "pr", ev.PullRequest.Number, "label", ev.Label)

	return &event.Trigger{
		Kind:           event.TriggerLabel,
		PullRequest:    ev.PullRequest,
		InstallationID: ev.InstallationID,
	}
}

// parseIssueComment normalizes an issue_comment payload. Comments on plain
// issues (no pull_request reference) are not events the bot handles.
func parseIssueComment(data []byte) (*event.WebhookEvent, error) {
	var raw struct {
		Action  string `json:"action"`
		Comment struct {
			Body string `json:"body"`
			User struct {
				Login string `json:"login"`
			} `json:"user"`
		} `json:"comment"`
		Issue struct {
			Number      int    `json:"number"`
			Title       string `json:"title"`
			Body        string `json:"body"`
			PullRequest *struct {
				HTMLURL string `json:"html_url"`
			} `json:"pull_request"`
			User struct {
				Login string `json:"login"`
			} `json:"user"`
		} `json:"issue"`
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
		Installation struct {
			ID int64 `json:"id"`
		} `json:"installation"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse issue_comment: %w", err)
	}

	if raw.Action != "created" || raw.Issue.PullRequest == nil {
		return nil, nil
	}

	ev := &event.WebhookEvent{
		Kind:           event.KindComment,
		Action:         raw.Action,
		Repository:     raw.Repository.FullName,
		InstallationID: raw.Installation.ID,
		CommentBody:    raw.Comment.Body,
		CommentAuthor:  raw.Comment.User.Login,
		ReceivedAt:     time.Now().UTC(),
		PullRequest: event.PullRequest{
			Number:     raw.Issue.Number,
			Title:      raw.Issue.Title,
			Body:       raw.Issue.Body,
			Author:     raw.Issue.User.Login,
			URL:        raw.Issue.PullRequest.HTMLURL,
			Repository: raw.Repository.FullName,
		},
	}
	return ev, nil
}

// parsePullRequest normalizes a pull_request payload. Only the "labeled"
// action can trigger anything downstream.
func parsePullRequest(data []byte) (*event.WebhookEvent, error) {
	var raw struct {
		Action string `json:"action"`
		Label  struct {
			Name string `json:"name"`
		} `json:"label"`
		PullRequest struct {
			Number int    `json:"number"`
			Title  string `json:"title"`
			Body   string `json:"body"`
			User   struct {
				Login string `json:"login"`
			} `json:"user"`
			Head struct {
				Ref string `json:"ref"`
			} `json:"head"`
			Base struct {
				Ref  string `json:"ref"`
				Repo struct {
					FullName string `json:"full_name"`
				} `json:"repo"`
			} `json:"base"`
			HTMLURL   string `json:"html_url"`
			Additions int    `json:"additions"`
			Deletions int    `json:"deletions"`
			Commits   int    `json:"commits"`
		} `json:"pull_request"`
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
		Installation struct {
			ID int64 `json:"id"`
		} `json:"installation"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse pull_request: %w", err)
	}

	kind := event.KindPullRequest
	if raw.Action == "labeled" {
		kind = event.KindLabel
	}

	ev := &event.WebhookEvent{
		Kind:           kind,
		Action:         raw.Action,
		Repository:     raw.Repository.FullName,
		InstallationID: raw.Installation.ID,
		Label:          raw.Label.Name,
		ReceivedAt:     time.Now().UTC(),
		PullRequest: event.PullRequest{
			Number:     raw.PullRequest.Number,
			Title:      raw.PullRequest.Title,
			Body:       raw.PullRequest.Body,
			Author:     raw.PullRequest.User.Login,
			HeadBranch: raw.PullRequest.Head.Ref,
			BaseBranch: raw.PullRequest.Base.Ref,
			URL:        raw.PullRequest.HTMLURL,
			Repository: raw.Repository.FullName,
			Additions:  raw.PullRequest.Additions,
			Deletions:  raw.PullRequest.Deletions,
			Commits:    raw.PullRequest.Commits,
		},
	}
	if ev.PullRequest.Repository == "" {
		ev.PullRequest.Repository = raw.PullRequest.Base.Repo.FullName
	}
	return ev, nil
}
