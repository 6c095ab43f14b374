// Package plexapi is a client for the Plex Media Server HTTP API, covering
// the read-mostly surface the library provider needs: section enumeration,
// filtered search, hubs, watch history, and preference lookups.
package plexapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Sentinel errors for Plex server responses.
var (
	ErrUnauthorized = errors.New("unauthorized: invalid or expired token")
	ErrNotFound     = errors.New("item not found")
)

// Client is a Plex Media Server API client bound to one server and token.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log.With("component", "plexapi")
	}
}

// New creates a Plex server client. For https URLs the client tolerates a
// self-signed certificate on the server's own host; verification for every
// other host is untouched.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		transport := http.DefaultTransport
		if u, err := url.Parse(baseURL); err == nil && u.Scheme == "https" {
			transport = NewSelectiveVerifyTransport(u.Hostname())
		}
		c.httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		}
	}
	return c
}

// URL resolves a server-relative path (such as a thumb) to an absolute URL
// carrying the client's token.
func (c *Client) URL(path string) string {
	if path == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return c.baseURL + path + sep + "X-Plex-Token=" + url.QueryEscape(c.token)
}

func (c *Client) get(ctx context.Context, path, rawQuery string) (*MediaContainer, error) {
	reqURL := c.baseURL + path
	if rawQuery != "" {
		reqURL += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.token)

	if c.log != nil {
		c.log.Debug("plex request", "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var envelope container
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &envelope.MediaContainer, nil
}

// Sections returns all library sections.
func (c *Client) Sections(ctx context.Context) ([]Directory, error) {
	mc, err := c.get(ctx, "/library/sections", "")
	if err != nil {
		return nil, fmt.Errorf("get sections: %w", err)
	}
	return mc.Directory, nil
}

// Search lists items of one type in a section, optionally constrained by a
// filter tree.
func (c *Client) Search(ctx context.Context, sectionKey string, t ItemType, f *Filter) ([]Metadata, error) {
	query := "type=" + strconv.Itoa(int(t)) + "&includeGuids=1"
	if !f.Empty() {
		query += "&" + f.Encode()
	}
	mc, err := c.get(ctx, "/library/sections/"+url.PathEscape(sectionKey)+"/all", query)
	if err != nil {
		return nil, fmt.Errorf("search section %s: %w", sectionKey, err)
	}
	return mc.Metadata, nil
}

// ContinueWatching returns the Continue Watching hub items for a section.
func (c *Client) ContinueWatching(ctx context.Context, sectionKey string) ([]Metadata, error) {
	mc, err := c.get(ctx, "/hubs/sections/"+url.PathEscape(sectionKey)+"/continueWatching", "")
	if err != nil {
		return nil, fmt.Errorf("continue watching for section %s: %w", sectionKey, err)
	}
	if len(mc.Metadata) > 0 {
		return mc.Metadata, nil
	}
	for _, hub := range mc.Hub {
		if hub.HubIdentifier == "continueWatching" {
			return hub.Metadata, nil
		}
	}
	return nil, nil
}

// History returns the server's watch log, scoped by the filter's non-zero
// fields.
func (c *Client) History(ctx context.Context, f HistoryFilter) ([]Metadata, error) {
	params := url.Values{}
	if f.RatingKey != "" {
		params.Set("metadataItemID", f.RatingKey)
	}
	if f.AccountID != 0 {
		params.Set("accountID", strconv.Itoa(f.AccountID))
	}
	if f.SectionID != 0 {
		params.Set("librarySectionID", strconv.Itoa(f.SectionID))
	}
	mc, err := c.get(ctx, "/status/sessions/history/all", params.Encode())
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return mc.Metadata, nil
}

// Metadata fetches a single item by rating key.
func (c *Client) Metadata(ctx context.Context, ratingKey string) (*Metadata, error) {
	mc, err := c.get(ctx, "/library/metadata/"+url.PathEscape(ratingKey), "includeGuids=1")
	if err != nil {
		return nil, fmt.Errorf("get metadata %s: %w", ratingKey, err)
	}
	if len(mc.Metadata) == 0 {
		return nil, ErrNotFound
	}
	return &mc.Metadata[0], nil
}

// Children returns an item's direct children (a show's seasons, a season's
// episodes).
func (c *Client) Children(ctx context.Context, ratingKey string) ([]Metadata, error) {
	mc, err := c.get(ctx, "/library/metadata/"+url.PathEscape(ratingKey)+"/children", "")
	if err != nil {
		return nil, fmt.Errorf("get children of %s: %w", ratingKey, err)
	}
	return mc.Metadata, nil
}

// Episodes returns every episode under a show or season.
func (c *Client) Episodes(ctx context.Context, ratingKey string) ([]Metadata, error) {
	mc, err := c.get(ctx, "/library/metadata/"+url.PathEscape(ratingKey)+"/allLeaves", "")
	if err != nil {
		return nil, fmt.Errorf("get episodes of %s: %w", ratingKey, err)
	}
	return mc.Metadata, nil
}

// SectionSettings returns a section's preference entries.
func (c *Client) SectionSettings(ctx context.Context, sectionKey string) ([]Setting, error) {
	mc, err := c.get(ctx, "/library/sections/"+url.PathEscape(sectionKey)+"/prefs", "")
	if err != nil {
		return nil, fmt.Errorf("get section settings %s: %w", sectionKey, err)
	}
	return mc.Settings, nil
}

// ServerSetting looks up a single server preference by id. Returns
// ErrNotFound when the server does not expose it.
func (c *Client) ServerSetting(ctx context.Context, id string) (string, error) {
	mc, err := c.get(ctx, "/:/prefs", "")
	if err != nil {
		return "", fmt.Errorf("get server settings: %w", err)
	}
	for _, s := range mc.Settings {
		if s.ID == id {
			return s.Value, nil
		}
	}
	return "", ErrNotFound
}
