// Package community is a client for the Plex community GraphQL API, used
// to read user reviews and the watch activity feed. The API is
// rate-limited; requests honor server-advised backoff for a bounded number
// of attempts before surfacing the failure.
package community

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const (
	defaultBaseURL    = "https://community.plex.tv/api"
	defaultRetryAfter = 2 * time.Second
	maxAttempts       = 3
)

// ErrRateLimited is returned when the API keeps rate-limiting after all
// backoff attempts.
var ErrRateLimited = errors.New("rate limited: retries exhausted")

const reviewQuery = `query GetReview($metadataID: ID!) {
  metadataReviewV2(metadata: {id: $metadataID}) {
    ... on ActivityReview { message }
    ... on ActivityWatchReview { message }
  }
}`

const activityQuery = `query ActivityFeed($uuid: ID!, $first: PaginationInt!, $afterCursor: String) {
  activityFeed(uuid: $uuid, first: $first, after: $afterCursor) {
    nodes { __typename }
    pageInfo { hasNextPage endCursor }
  }
}`

// Client is a Plex community API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log.With("component", "community")
	}
}

// New creates a community API client for the given account token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type graphqlRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// request executes one GraphQL operation, retrying on rate limits with the
// server-advised delay.
func (c *Client) request(ctx context.Context, query string, variables map[string]any, operation string) (json.RawMessage, error) {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables, OperationName: operation})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Plex-Token", c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("community request: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := retryAfter(resp.Header.Get("Retry-After"))
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if c.log != nil {
				c.log.Debug("community rate limited", "operation", operation, "attempt", attempt, "delay", delay)
			}
			if attempt == maxAttempts {
				return nil, ErrRateLimited
			}
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("community status %d: %s", resp.StatusCode, string(payload))
		}

		var decoded graphqlResponse
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if len(decoded.Errors) > 0 {
			return nil, fmt.Errorf("community query %s: %s", operation, decoded.Errors[0].Message)
		}
		return decoded.Data, nil
	}
	return nil, ErrRateLimited
}

// retryAfter parses a Retry-After header in seconds, falling back to the
// default delay when absent or unparseable.
func retryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	if seconds == 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// Review returns the user's review text for a metadata id, or "" when the
// item has not been reviewed.
func (c *Client) Review(ctx context.Context, metadataID string) (string, error) {
	data, err := c.request(ctx, reviewQuery, map[string]any{"metadataID": metadataID}, "GetReview")
	if err != nil {
		return "", err
	}

	var decoded struct {
		MetadataReviewV2 struct {
			Message string `json:"message"`
		} `json:"metadataReviewV2"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode review: %w", err)
	}
	return decoded.MetadataReviewV2.Message, nil
}

// WatchActivity returns the full activity feed for a user UUID, following
// cursor pagination until the last page.
func (c *Client) WatchActivity(ctx context.Context, userUUID string) ([]json.RawMessage, error) {
	var nodes []json.RawMessage
	var cursor *string

	for {
		variables := map[string]any{
			"uuid":  userUUID,
			"first": 50,
		}
		if cursor != nil {
			variables["afterCursor"] = *cursor
		}

		data, err := c.request(ctx, activityQuery, variables, "ActivityFeed")
		if err != nil {
			return nil, err
		}

		var decoded struct {
			ActivityFeed struct {
				Nodes    []json.RawMessage `json:"nodes"`
				PageInfo struct {
					HasNextPage bool    `json:"hasNextPage"`
					EndCursor   *string `json:"endCursor"`
				} `json:"pageInfo"`
			} `json:"activityFeed"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("decode activity feed: %w", err)
		}

		nodes = append(nodes, decoded.ActivityFeed.Nodes...)
		if !decoded.ActivityFeed.PageInfo.HasNextPage || decoded.ActivityFeed.PageInfo.EndCursor == nil {
			return nodes, nil
		}
		cursor = decoded.ActivityFeed.PageInfo.EndCursor
	}
}
