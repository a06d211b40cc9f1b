// Package jira implements the tracker port against the JIRA Cloud REST API v3.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mba-tools/jirald/internal/port/tracker"
	"github.com/mba-tools/jirald/internal/resilience"
)

// Client talks to a JIRA-like tracker using basic auth (username + API token).
type Client struct {
	baseURL    string
	username   string
	apiToken   string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a tracker client for the given base URL and credentials.
func NewClient(baseURL, username, apiToken string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// issueFields mirrors the JIRA issue fields payload.
type issueFields struct {
	Summary     string `json:"summary"`
	Description *adf   `json:"description"`
	IssueType   struct {
		Name string `json:"name"`
	} `json:"issuetype"`
	Status struct {
		Name string `json:"name"`
	} `json:"status"`
}

type issueResponse struct {
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

// CreateIssue creates a new issue and returns the tracker's actual state for
// it, read back after creation. Not idempotent: identical input creates a
// second, distinct issue.
func (c *Client) CreateIssue(ctx context.Context, req tracker.CreateRequest) (*tracker.Issue, error) {
	fields := map[string]any{
		"project":     map[string]string{"key": req.ProjectKey},
		"summary":     req.Summary,
		"issuetype":   map[string]string{"name": req.IssueType},
		"description": newADF(req.Description),
	}
	if req.Priority != "" {
		fields["priority"] = map[string]string{"name": req.Priority}
	}
	for k, v := range req.CustomFields {
		fields[k] = v
	}

	data, err := c.doRequest(ctx, "create issue", http.MethodPost, "/rest/api/3/issue",
		map[string]any{"fields": fields}, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("parse create response: %w", err)
	}

	return c.GetIssue(ctx, created.Key)
}

// UpdateIssue applies only the given fields to an issue and returns the
// tracker's post-update state. Fields absent from the map are left untouched.
func (c *Client) UpdateIssue(ctx context.Context, issueKey string, fields map[string]string) (*tracker.Issue, error) {
	if len(fields) == 0 {
		return nil, &tracker.Error{Kind: tracker.KindValidation, Op: "update issue", Body: "no fields to update"}
	}

	payload := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "description":
			payload[k] = newADF(v)
		case "issuetype":
			payload[k] = map[string]string{"name": v}
		default:
			payload[k] = v
		}
	}

	_, err := c.doRequest(ctx, "update issue", http.MethodPut, "/rest/api/3/issue/"+issueKey,
		map[string]any{"fields": payload}, http.StatusNoContent)
	if err != nil {
		return nil, err
	}

	return c.GetIssue(ctx, issueKey)
}

// GetIssue fetches a single issue.
func (c *Client) GetIssue(ctx context.Context, issueKey string) (*tracker.Issue, error) {
	data, err := c.doRequest(ctx, "get issue", http.MethodGet, "/rest/api/3/issue/"+issueKey, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var resp issueResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse issue %s: %w", issueKey, err)
	}

	issue := c.toIssue(&resp)
	return &issue, nil
}

// SearchIssues runs a JQL query with pagination.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults, startAt int) ([]tracker.Issue, error) {
	body := map[string]any{
		"jql":        jql,
		"maxResults": maxResults,
		"startAt":    startAt,
		"fields":     []string{"summary", "description", "issuetype", "status"},
	}

	data, err := c.doRequest(ctx, "search issues", http.MethodPost, "/rest/api/3/search", body, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Issues []issueResponse `json:"issues"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	issues := make([]tracker.Issue, 0, len(resp.Issues))
	for i := range resp.Issues {
		issues = append(issues, c.toIssue(&resp.Issues[i]))
	}
	return issues, nil
}

// AddComment posts a plain-text comment on an issue.
func (c *Client) AddComment(ctx context.Context, issueKey, text string) error {
	body := map[string]any{"body": newADF(text)}
	_, err := c.doRequest(ctx, "add comment", http.MethodPost,
		"/rest/api/3/issue/"+issueKey+"/comment", body, http.StatusCreated)
	return err
}

// ListTransitions returns the workflow transitions available for an issue.
func (c *Client) ListTransitions(ctx context.Context, issueKey string) ([]tracker.Transition, error) {
	data, err := c.doRequest(ctx, "list transitions", http.MethodGet,
		"/rest/api/3/issue/"+issueKey+"/transitions", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse transitions: %w", err)
	}

	transitions := make([]tracker.Transition, 0, len(resp.Transitions))
	for _, t := range resp.Transitions {
		transitions = append(transitions, tracker.Transition{ID: t.ID, Name: t.Name})
	}
	return transitions, nil
}

// TransitionIssue moves an issue through the given workflow transition.
func (c *Client) TransitionIssue(ctx context.Context, issueKey, transitionID string) error {
	body := map[string]any{"transition": map[string]string{"id": transitionID}}
	_, err := c.doRequest(ctx, "transition issue", http.MethodPost,
		"/rest/api/3/issue/"+issueKey+"/transitions", body, http.StatusNoContent)
	return err
}

func (c *Client) toIssue(resp *issueResponse) tracker.Issue {
	return tracker.Issue{
		Key:         resp.Key,
		Summary:     resp.Fields.Summary,
		Description: resp.Fields.Description.text(),
		IssueType:   resp.Fields.IssueType.Name,
		Status:      resp.Fields.Status.Name,
		URL:         c.baseURL + "/browse/" + resp.Key,
	}
}

// doRequest performs one HTTP call and classifies non-expected statuses into
// the tracker error taxonomy. It never retries.
func (c *Client) doRequest(ctx context.Context, op, method, path string, body any, wantStatus int) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", op, err)
			}
			bodyReader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.SetBasicAuth(c.username, c.apiToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return tracker.NewTransportError(op, err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return tracker.NewTransportError(op, err)
		}

		if resp.StatusCode != wantStatus {
			return tracker.NewError(op, resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
