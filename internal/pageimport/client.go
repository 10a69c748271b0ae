package pageimport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tripmate-app/tripmate/internal/models"
)

// Client configuration defaults.
const (
	// DefaultFetchTimeout bounds one page fetch; a slow page is treated the
	// same as an unreachable one.
	DefaultFetchTimeout = 15 * time.Second
	// DefaultUserAgent identifies the bot to event platforms.
	DefaultUserAgent = "TripmateBot/1.0 (+https://tripmate.app/bot)"
	// maxBodyBytes caps how much of a page is read before parsing.
	maxBodyBytes = 2 << 20
)

// Client fetches event pages and extracts import candidates.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client, used by tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent overrides the identifying user-agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a page-import client with the default timeout and
// user agent.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultFetchTimeout},
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchEventPage fetches url and extracts a normalized event record.
// Any transport failure, non-2xx status, or unparsable body yields an error;
// callers treat every error identically as "could not extract event data".
func (c *Client) FetchEventPage(ctx context.Context, url string) (*models.ImportCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Error("Client.FetchEventPage: bad request", "error", err, "url", url)
		return nil, fmt.Errorf("invalid url %q: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("Client.FetchEventPage: fetch failed", "error", err, "url", url)
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("Client.FetchEventPage: non-2xx response", "status", resp.StatusCode, "url", url)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		slog.Warn("Client.FetchEventPage: body read failed", "error", err, "url", url)
		return nil, fmt.Errorf("read body failed: %w", err)
	}

	candidate, err := ParseEventPage(body)
	if err != nil {
		slog.Warn("Client.FetchEventPage: parse failed", "error", err, "url", url)
		return nil, err
	}
	candidate.SourceURL = url
	slog.Debug("Client.FetchEventPage succeeded", "url", url, "title", candidate.Title)
	return candidate, nil
}
