package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// refreshMargin renews installation tokens this long before expiry.
const refreshMargin = 2 * time.Minute

type installationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// tokenCache exchanges App JWTs for installation access tokens and caches
// them per installation until near expiry.
type tokenCache struct {
	mu         sync.Mutex
	tokens     map[int64]installationToken
	auth       *appJWT
	baseURL    string
	httpClient *http.Client
	now        func() time.Time // for testing
}

func newTokenCache(auth *appJWT, baseURL string, httpClient *http.Client) *tokenCache {
	return &tokenCache{
		tokens:     make(map[int64]installationToken),
		auth:       auth,
		baseURL:    baseURL,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// get returns a valid installation token, exchanging a fresh App JWT when
// the cached one is missing or close to expiring.
func (tc *tokenCache) get(ctx context.Context, installationID int64) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tok, ok := tc.tokens[installationID]; ok && tc.now().Before(tok.ExpiresAt.Add(-refreshMargin)) {
		return tok.Token, nil
	}

	tok, err := tc.exchange(ctx, installationID)
	if err != nil {
		return "", err
	}
	tc.tokens[installationID] = tok
	return tok.Token, nil
}

func (tc *tokenCache) exchange(ctx context.Context, installationID int64) (installationToken, error) {
	appToken, err := tc.auth.sign()
	if err != nil {
		return installationToken{}, fmt.Errorf("app jwt: %w", err)
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", tc.baseURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return installationToken{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+appToken)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := tc.httpClient.Do(req)
	if err != nil {
		return installationToken{}, fmt.Errorf("exchange token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return installationToken{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		return installationToken{}, fmt.Errorf("token exchange failed %d: %s", resp.StatusCode, string(body))
	}

	var tok installationToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return installationToken{}, fmt.Errorf("parse token response: %w", err)
	}

	return tok, nil
}
