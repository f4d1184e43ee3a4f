// Package roblox implements the remote provider against the Roblox web APIs:
// Open Cloud for game passes and developer products, the badges and legacy
// publish endpoints for badges, and the asset delivery API for downloads.
package roblox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/rbxsync/rbxsync/pkg/engine"
	"github.com/rbxsync/rbxsync/pkg/icon"
)

const (
	apisBase   = "https://apis.roblox.com"
	badgesBase = "https://badges.roblox.com"

	maxAttempts = 4
)

// Client talks to the Roblox APIs for one universe. It implements
// engine.Provider.
//
// Transient failures (HTTP 429 and 5xx) are retried with exponential backoff,
// honoring the Retry-After header when present. Errors returned from Client
// methods are final.
type Client struct {
	http       *http.Client
	apiKey     string
	universeID int64

	// bleed applies alpha bleed to icons before upload.
	bleed bool

	// creatorIsGroup selects the badge creation payment source.
	creatorIsGroup bool

	apisBase   string
	badgesBase string

	log zerolog.Logger
}

var _ engine.Provider = (*Client)(nil)

// Options configures a Client.
type Options struct {
	APIKey         string
	UniverseID     int64
	Bleed          bool
	CreatorIsGroup bool
	Log            zerolog.Logger

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client

	// BaseURL overrides both API hosts, mainly for tests.
	BaseURL string
}

// NewClient returns a Client for one universe.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	c := &Client{
		http:           httpClient,
		apiKey:         opts.APIKey,
		universeID:     opts.UniverseID,
		bleed:          opts.Bleed,
		creatorIsGroup: opts.CreatorIsGroup,
		log:            opts.Log,
	}
	c.apisBase = apisBase
	c.badgesBase = badgesBase
	if opts.BaseURL != "" {
		c.apisBase = opts.BaseURL
		c.badgesBase = opts.BaseURL
	}
	return c
}

// processIcon runs the upload pipeline on raw icon bytes.
func (c *Client) processIcon(data []byte) ([]byte, error) {
	return icon.Process(data, c.bleed)
}

// do executes a request with retries. build is invoked once per attempt, so
// request bodies (multipart forms in particular) are rebuilt rather than
// replayed from a consumed reader.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	operation := func() ([]byte, error) {
		req, err := build()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("x-api-key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.log.Warn().Int("status", resp.StatusCode).Str("url", req.URL.Path).Msg("retrying transient api error")
			if after, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && after > 0 {
				return nil, backoff.RetryAfter(after)
			}
			return nil, apiErr
		}
		return nil, backoff.Permanent(apiErr)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxAttempts))
}

// get executes a plain GET with retries.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}
