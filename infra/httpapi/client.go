// Package httpapi talks to the dispatch backend over HTTP: it exchanges the
// session for a channel token and fetches order snapshots.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/lastmile/core/model"
)

// ErrStatus is returned for non-2xx responses.
var ErrStatus = errors.New("unexpected http status")

// Config holds the backend endpoints.
type Config struct {
	CredentialsURL string        `json:"credentials_url"`
	SnapshotURL    string        `json:"snapshot_url"`
	APIKey         string        `json:"api_key"`
	Timeout        time.Duration `json:"timeout"`
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func do(ctx context.Context, c *http.Client, method, url, apiKey string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: %d %s", ErrStatus, method, url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// CredentialClient exchanges the service API key for a short-lived channel
// token.
type CredentialClient struct {
	url    string
	apiKey string
	http   *http.Client
}

// NewCredentialClient returns a client for cfg.CredentialsURL.
func NewCredentialClient(cfg Config) *CredentialClient {
	return &CredentialClient{url: cfg.CredentialsURL, apiKey: cfg.APIKey, http: newHTTPClient(cfg.Timeout)}
}

// Token posts to the token endpoint and returns access_token.
func (c *CredentialClient) Token(ctx context.Context) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
	}
	if err := do(ctx, c.http, http.MethodPost, c.url, c.apiKey, strings.NewReader("{}"), &out); err != nil {
		return "", err
	}
	tok := out.AccessToken
	if tok == "" {
		tok = out.Token
	}
	if tok == "" {
		return "", errors.New("token response missing access_token")
	}
	return tok, nil
}

// SnapshotClient fetches the full order collection.
type SnapshotClient struct {
	url    string
	apiKey string
	http   *http.Client
}

// NewSnapshotClient returns a client for cfg.SnapshotURL.
func NewSnapshotClient(cfg Config) *SnapshotClient {
	return &SnapshotClient{url: cfg.SnapshotURL, apiKey: cfg.APIKey, http: newHTTPClient(cfg.Timeout)}
}

// Fetch returns every order. Both a bare JSON array and {"orders": [...]} are
// accepted.
func (c *SnapshotClient) Fetch(ctx context.Context) ([]model.Order, error) {
	var raw json.RawMessage
	if err := do(ctx, c.http, http.MethodGet, c.url, c.apiKey, nil, &raw); err != nil {
		return nil, err
	}
	var orders []model.Order
	if err := json.Unmarshal(raw, &orders); err == nil {
		return orders, nil
	}
	var wrapped struct {
		Orders []model.Order `json:"orders"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return wrapped.Orders, nil
}
