// Package plextv is a client for the plex.tv account API: authenticated
// account lookup, home-user enumeration, managed-user token exchange, and
// the account-scoped watchlist.
package plextv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
)

const (
	defaultBaseURL     = "https://plex.tv/api/v2"
	defaultDiscoverURL = "https://discover.provider.plex.tv"

	product       = "Anibridge"
	clientVersion = "1.0"
	clientID      = "anibridge-plex-provider"

	watchlistPageSize = 100
)

// ErrUnauthorized indicates an invalid or expired account token.
var ErrUnauthorized = errors.New("unauthorized: invalid or expired token")

// Account is the authenticated plex.tv account.
type Account struct {
	ID       int    `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Title    string `json:"title"`
}

// HomeUser is a managed or shared user visible to the account.
type HomeUser struct {
	ID       int    `json:"id"`
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Title    string `json:"title"`
}

// WatchlistItem is an entry in the account watchlist. Watchlist content may
// not exist in any local library, so GUID is the only stable key.
type WatchlistItem struct {
	RatingKey string `json:"ratingKey"`
	GUID      string `json:"guid"`
	Type      string `json:"type"`
	Title     string `json:"title"`
}

// Client talks to plex.tv on behalf of one account token. Calls are always
// certificate-verified; the token identifies, never the transport.
type Client struct {
	token       string
	baseURL     string
	discoverURL string
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom plex.tv base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithDiscoverURL sets a custom discover base URL (for testing).
func WithDiscoverURL(url string) Option {
	return func(c *Client) {
		c.discoverURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a plex.tv client for the given account token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:       token,
		baseURL:     defaultBaseURL,
		discoverURL: defaultDiscoverURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, rawURL, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", token)
	req.Header.Set("X-Plex-Client-Identifier", clientID)
	req.Header.Set("X-Plex-Product", product)
	req.Header.Set("X-Plex-Version", clientVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plex.tv request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("plex.tv status %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// User returns the account owning the client token.
func (c *Client) User(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/user", c.token, &account); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

// HomeUsers lists the managed and shared users of the account's home.
func (c *Client) HomeUsers(ctx context.Context) ([]HomeUser, error) {
	var home struct {
		Users []HomeUser `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/home/users", c.token, &home); err != nil {
		return nil, fmt.Errorf("get home users: %w", err)
	}
	return home.Users, nil
}

// SwitchUser exchanges a home user's UUID for a token scoped to that user.
func (c *Client) SwitchUser(ctx context.Context, uuid string) (string, error) {
	var switched struct {
		AuthToken string `json:"authToken"`
	}
	endpoint := c.baseURL + "/home/users/" + url.PathEscape(uuid) + "/switch"
	if err := c.do(ctx, http.MethodPost, endpoint, c.token, &switched); err != nil {
		return "", fmt.Errorf("switch user: %w", err)
	}
	if switched.AuthToken == "" {
		return "", errors.New("switch user: no token in response")
	}
	return switched.AuthToken, nil
}

// Watchlist returns the account's full watchlist, following pagination.
func (c *Client) Watchlist(ctx context.Context) ([]WatchlistItem, error) {
	var all []WatchlistItem
	offset := 0
	for {
		var page struct {
			MediaContainer struct {
				TotalSize int             `json:"totalSize"`
				Metadata  []WatchlistItem `json:"Metadata"`
			} `json:"MediaContainer"`
		}
		endpoint := fmt.Sprintf("%s/library/sections/watchlist/all?X-Plex-Container-Start=%d&X-Plex-Container-Size=%d",
			c.discoverURL, offset, watchlistPageSize)
		if err := c.do(ctx, http.MethodGet, endpoint, c.token, &page); err != nil {
			return nil, fmt.Errorf("get watchlist: %w", err)
		}

		all = append(all, page.MediaContainer.Metadata...)
		if len(page.MediaContainer.Metadata) == 0 || len(all) >= page.MediaContainer.TotalSize {
			return all, nil
		}
		offset += len(page.MediaContainer.Metadata)
	}
}
