package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yegors/whse-session/pkg/logger"
)

// Client sends session actions to the execution backend's redir/ endpoints.
// Requests are fire and forget: the response body is discarded and nothing is retried.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a backend client. A zero timeout leaves requests unbounded.
func NewClient(baseURL string, timeout time.Duration, logger *logger.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}

	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("backend-client"),
	}, nil
}

// ActionURL builds {base}{path}redir/?action=...&sessionID=...
func (c *Client) ActionURL(path, action, sessionID string) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.Trim(path, "/") + "/redir/"
	u.Path = strings.ReplaceAll(u.Path, "//", "/")

	q := url.Values{}
	q.Set("action", action)
	q.Set("sessionID", sessionID)
	u.RawQuery = q.Encode()

	return u.String()
}

// Notify issues the GET request for action. Transport errors are returned;
// non-2xx responses are only logged since the backend reports outcomes
// through the session status.
func (c *Client) Notify(ctx context.Context, path, action, sessionID string) error {
	target := c.ActionURL(path, action, sessionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("error creating backend request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request to backend: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Backend returned non-OK status",
			logger.String("action", action),
			logger.String("session_id", sessionID),
			logger.Int("status_code", resp.StatusCode))
		return nil
	}

	c.logger.Debug("Backend action sent",
		logger.String("action", action),
		logger.String("session_id", sessionID),
		logger.Duration("duration", time.Since(start)))

	return nil
}
