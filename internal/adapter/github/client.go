package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mba-tools/jirald/internal/port/forge"
)

// App holds GitHub App identity and mints installation-scoped clients.
type App struct {
	baseURL    string
	httpClient *http.Client
	tokens     *tokenCache
}

// NewApp creates a forge factory for the given App ID and private key PEM.
func NewApp(appID string, privateKeyPEM []byte, baseURL string) (*App, error) {
	auth, err := newAppJWT(appID, privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("github app auth: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	base := strings.TrimRight(baseURL, "/")

	return &App{
		baseURL:    base,
		httpClient: httpClient,
		tokens:     newTokenCache(auth, base, httpClient),
	}, nil
}

// Installation returns a client authenticated for one installation.
func (a *App) Installation(id int64) forge.Client {
	return &installationClient{app: a, installationID: id}
}

// installationClient performs REST calls with an installation access token.
type installationClient struct {
	app            *App
	installationID int64
}

type prFile struct {
	Filename string `json:"filename"`
}

// ListPullRequestFiles returns the filenames changed by a PR, following
// pagination.
func (c *installationClient) ListPullRequestFiles(ctx context.Context, repo string, number int) ([]string, error) {
	var files []string
	const perPage = 100

	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/pulls/%d/files?per_page=%d&page=%d", repo, number, perPage, page)
		data, err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK)
		if err != nil {
			return nil, fmt.Errorf("list pr files: %w", err)
		}

		var batch []prFile
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("parse pr files: %w", err)
		}
		for _, f := range batch {
			files = append(files, f.Filename)
		}
		if len(batch) < perPage {
			return files, nil
		}
	}
}

// CreateComment posts a markdown comment on the PR thread.
func (c *installationClient) CreateComment(ctx context.Context, repo string, number int, body string) error {
	path := fmt.Sprintf("/repos/%s/issues/%d/comments", repo, number)
	payload := map[string]string{"body": body}
	if _, err := c.do(ctx, http.MethodPost, path, payload, http.StatusCreated); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// AddLabels adds labels to a PR.
func (c *installationClient) AddLabels(ctx context.Context, repo string, number int, labels []string) error {
	path := fmt.Sprintf("/repos/%s/issues/%d/labels", repo, number)
	payload := map[string][]string{"labels": labels}
	if _, err := c.do(ctx, http.MethodPost, path, payload, http.StatusOK); err != nil {
		return fmt.Errorf("add labels: %w", err)
	}
	return nil
}

// RemoveLabel removes a single label from a PR.
func (c *installationClient) RemoveLabel(ctx context.Context, repo string, number int, label string) error {
	path := fmt.Sprintf("/repos/%s/issues/%d/labels/%s", repo, number, url.PathEscape(label))
	if _, err := c.do(ctx, http.MethodDelete, path, nil, http.StatusOK); err != nil {
		return fmt.Errorf("remove label: %w", err)
	}
	return nil
}

func (c *installationClient) do(ctx context.Context, method, path string, body any, wantStatus int) ([]byte, error) {
	token, err := c.app.tokens.get(ctx, c.installationID)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.app.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.app.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("github API error %d: %s", resp.StatusCode, string(data))
	}

	return data, nil
}
