// Package provider implements the Plex library provider: a stateful
// session against one Plex Media Server, resolved to a configured
// identity, exposing sections, media items, watch history, reviews, and
// webhook-driven sync triggers through the library contracts.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/anibridge/plex-provider/internal/community"
	"github.com/anibridge/plex-provider/internal/webhook"
	"github.com/anibridge/plex-provider/pkg/library"
)

// Errors reported for contract violations and configuration problems.
var (
	ErrForeignSection = errors.New("section does not belong to this provider")
	ErrForeignItem    = errors.New("item does not belong to this provider")
	ErrMissingConfig  = errors.New("missing required plex configuration")
)

// syncEvents are the webhook events that trigger a sync of the item they
// reference.
var syncEvents = map[webhook.EventType]struct{}{
	webhook.EventMediaAdded: {},
	webhook.EventRate:       {},
	webhook.EventScrobble:   {},
}

// communityAPI is the community.plex.tv surface the provider consumes.
type communityAPI interface {
	Review(ctx context.Context, metadataID string) (string, error)
}

// Provider is the Plex implementation of library.Provider.
type Provider struct {
	cfg    Config
	log    *slog.Logger
	client *Client

	// Constructor hook, replaceable in tests.
	newCommunity func(token string) communityAPI

	community communityAPI
	user      library.User
	userSet   bool
	sections  []library.Section
}

func init() {
	library.Default.Register("plex", func(config map[string]any) (library.Provider, error) {
		cfg, err := configFromMap(config)
		if err != nil {
			return nil, err
		}
		return New(cfg, nil), nil
	})
}

// configFromMap builds a Config from generic provider settings. URL,
// token, and user are all required: an unresolved identity would silently
// scrobble as the server owner.
func configFromMap(m map[string]any) (Config, error) {
	cfg := Config{
		URL:   stringValue(m["url"]),
		Token: stringValue(m["token"]),
		User:  stringValue(m["user"]),
	}
	if cfg.URL == "" || cfg.Token == "" || cfg.User == "" {
		return Config{}, fmt.Errorf("%w: url, token, and user are required", ErrMissingConfig)
	}
	cfg.Sections = stringSlice(m["sections"])
	cfg.Genres = stringSlice(m["genres"])
	return cfg, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, val := range vals {
			if s, ok := val.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// New creates an uninitialized Plex provider.
func New(cfg Config, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		cfg:    cfg,
		log:    log.With("component", "plex-provider"),
		client: NewClient(cfg, log),
		newCommunity: func(token string) communityAPI {
			return community.New(token)
		},
	}
}

// Initialize resolves the configured identity and enumerates the visible
// sections. Must complete before any other method is used.
func (p *Provider) Initialize(ctx context.Context) error {
	if err := p.client.Initialize(ctx); err != nil {
		return err
	}

	p.user = library.User{
		Key:   strconv.Itoa(p.client.UserID()),
		Title: p.client.DisplayName(),
	}
	p.userSet = true
	p.community = p.newCommunity(p.cfg.Token)

	sections := make([]library.Section, 0, len(p.client.Sections()))
	for _, dir := range p.client.Sections() {
		sections = append(sections, newSection(p, dir))
	}
	p.sections = sections

	p.log.Info("plex provider initialized",
		"user", p.user.Title,
		"admin", p.client.IsAdmin(),
		"sections", len(sections),
	)
	return nil
}

// Close releases the session state.
func (p *Provider) Close(ctx context.Context) error {
	p.client.Close()
	p.community = nil
	p.user = library.User{}
	p.userSet = false
	p.sections = nil
	return nil
}

// User reports the resolved identity. Only valid after Initialize.
func (p *Provider) User() (library.User, bool) {
	return p.user, p.userSet
}

// Sections returns the enumerated library sections.
func (p *Provider) Sections(ctx context.Context) ([]library.Section, error) {
	if _, err := p.client.Bundle(); err != nil {
		return nil, err
	}
	return p.sections, nil
}

// ListItems lists a section's items, filtered per opts.
func (p *Provider) ListItems(ctx context.Context, sec library.Section, opts library.ListOptions) ([]library.Media, error) {
	s, ok := sec.(*section)
	if !ok || s.provider != p {
		return nil, fmt.Errorf("%w: section %q", ErrForeignSection, sec.Key())
	}
	raw, err := p.client.ListSectionItems(ctx, s.dir, opts)
	if err != nil {
		return nil, err
	}
	return p.wrapAll(s, raw), nil
}

// Review fetches the user's community review for an item. Reviews live on
// the account of the server owner only, and only items the user actually
// rated can carry one; anything else short-circuits to no review. Remote
// failures also report no review rather than failing a sync.
func (p *Provider) Review(ctx context.Context, item library.Media) (string, bool) {
	m, ok := item.(*mediaItem)
	if !ok || m.provider != p {
		return "", false
	}
	if !p.client.IsAdmin() || p.community == nil {
		return "", false
	}
	if m.raw.UserRating == 0 && m.raw.LastRatedAt == 0 {
		return "", false
	}
	if m.raw.GUID == "" {
		return "", false
	}

	metadataID := m.raw.GUID[strings.LastIndex(m.raw.GUID, "/")+1:]
	if metadataID == "" {
		return "", false
	}

	review, err := p.community.Review(ctx, metadataID)
	if err != nil {
		p.log.Warn("review fetch failed", "item", m.raw.RatingKey, "error", err)
		return "", false
	}
	if review == "" {
		return "", false
	}
	return review, true
}

// ParseWebhook decodes a Plex webhook and reports whether it should
// trigger a sync and for which item. Only events initiated by the resolved
// identity count; a payload without an account id or item key is rejected
// outright since nothing can be attributed or synced from it.
func (p *Provider) ParseWebhook(r *http.Request) (bool, []string, error) {
	payload, err := webhook.Parse(r)
	if err != nil {
		return false, nil, err
	}

	accountID, ok := payload.AccountID()
	if !ok {
		return false, nil, fmt.Errorf("%w: no account id", webhook.ErrMalformed)
	}
	ratingKey := payload.TopLevelRatingKey()
	if ratingKey == "" {
		return false, nil, fmt.Errorf("%w: no rating key", webhook.ErrMalformed)
	}

	if _, ok := syncEvents[payload.EventType()]; !ok {
		p.log.Debug("ignoring webhook event", "event", payload.Event)
		return false, nil, nil
	}
	if strconv.Itoa(accountID) != p.user.Key {
		p.log.Debug("ignoring webhook from other account",
			"event", payload.Event, "account", accountID)
		return false, nil, nil
	}

	p.log.Info("webhook triggers sync", "event", payload.Event, "item", ratingKey)
	return true, []string{ratingKey}, nil
}

// ClearCache drops the continue-watching, watchlist, and ordering caches.
func (p *Provider) ClearCache() {
	p.client.ClearCache()
}
