package provider

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anibridge/plex-provider/internal/plexapi"
	"github.com/anibridge/plex-provider/internal/plextv"
	"github.com/anibridge/plex-provider/pkg/library"
)

// Config holds the immutable provider configuration.
type Config struct {
	URL   string
	Token string
	User  string

	// Sections is a case-insensitive section-title allowlist; empty means
	// every movie and show section.
	Sections []string

	// Genres restricts listings to items carrying any of these genre tags.
	Genres []string
}

// serverAPI is the Plex Media Server surface the provider consumes.
type serverAPI interface {
	Sections(ctx context.Context) ([]plexapi.Directory, error)
	Search(ctx context.Context, sectionKey string, t plexapi.ItemType, f *plexapi.Filter) ([]plexapi.Metadata, error)
	ContinueWatching(ctx context.Context, sectionKey string) ([]plexapi.Metadata, error)
	History(ctx context.Context, f plexapi.HistoryFilter) ([]plexapi.Metadata, error)
	Metadata(ctx context.Context, ratingKey string) (*plexapi.Metadata, error)
	Children(ctx context.Context, ratingKey string) ([]plexapi.Metadata, error)
	Episodes(ctx context.Context, ratingKey string) ([]plexapi.Metadata, error)
	SectionSettings(ctx context.Context, sectionKey string) ([]plexapi.Setting, error)
	ServerSetting(ctx context.Context, id string) (string, error)
	URL(path string) string
}

// accountAPI is the plex.tv surface the provider consumes.
type accountAPI interface {
	User(ctx context.Context) (*plextv.Account, error)
	HomeUsers(ctx context.Context) ([]plextv.HomeUser, error)
	SwitchUser(ctx context.Context, uuid string) (string, error)
	Watchlist(ctx context.Context) ([]plextv.WatchlistItem, error)
}

// adminHistoryAccountID is the fixed account id of the server owner in the
// server's local watch log.
const adminHistoryAccountID = 1

// watchlistCacheKey is the single cache key of the account-scoped
// watchlist entry.
const watchlistCacheKey = "watchlist"

// Client is the stateful Plex session used by the library provider. It
// owns the resolved identity bundle, the enumerated sections, and the
// time-bounded membership caches. Lifecycle is initialize-then-serve:
// Initialize must complete before any other method is used.
type Client struct {
	cfg Config
	log *slog.Logger

	// Constructor hooks, replaceable in tests.
	newServer  func(url, token string) serverAPI
	newAccount func(token string) accountAPI

	account accountAPI
	bundle  *Bundle

	sections     []plexapi.Directory
	onDeckWindow time.Duration

	continueCache  *keyCache
	watchlistCache *keyCache
	ordering       *orderingCache

	sectionAllow map[string]struct{}
}

// NewClient creates an uninitialized client for the given configuration.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	allow := make(map[string]struct{}, len(cfg.Sections))
	for _, title := range cfg.Sections {
		allow[foldCaser.String(title)] = struct{}{}
	}
	return &Client{
		cfg: cfg,
		log: log.With("component", "plex-client"),
		newServer: func(url, token string) serverAPI {
			return plexapi.New(url, token, plexapi.WithLogger(log))
		},
		newAccount: func(token string) accountAPI {
			return plextv.New(token)
		},
		continueCache:  newKeyCache(cacheTTL),
		watchlistCache: newKeyCache(cacheTTL),
		ordering:       newOrderingCache(),
		sectionAllow:   allow,
	}
}

// Initialize establishes the Plex session, resolves the identity, and
// enumerates the visible sections. Safe to call again to replace all
// resolved state.
func (c *Client) Initialize(ctx context.Context) error {
	bundle, err := c.resolveIdentity(ctx)
	if err != nil {
		return err
	}
	c.bundle = bundle
	c.account = c.newAccount(c.cfg.Token)

	var sections []plexapi.Directory
	var window time.Duration

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := bundle.UserServer.Sections(gctx)
		if err != nil {
			return err
		}
		for _, dir := range raw {
			if dir.Type != "movie" && dir.Type != "show" {
				continue
			}
			if !c.matchesSectionFilter(dir.Title) {
				continue
			}
			sections = append(sections, dir)
		}
		return nil
	})
	g.Go(func() error {
		// The on-deck window is informational; a server without the
		// setting simply reports a zero window.
		value, err := bundle.Server.ServerSetting(gctx, "onDeckWindow")
		if err != nil {
			return nil
		}
		weeks, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil
		}
		window = time.Duration(weeks * float64(7*24) * float64(time.Hour))
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.sections = sections
	c.onDeckWindow = window
	c.ClearCache()
	return nil
}

// Close releases the resolved session state.
func (c *Client) Close() {
	c.bundle = nil
	c.account = nil
	c.sections = nil
	c.onDeckWindow = 0
	c.ClearCache()
}

// ClearCache drops the continue-watching, watchlist, and ordering caches.
func (c *Client) ClearCache() {
	c.continueCache.clear()
	c.watchlistCache.clear()
	c.ordering.clear()
}

// Bundle returns the resolved identity bundle.
func (c *Client) Bundle() (*Bundle, error) {
	if c.bundle == nil {
		return nil, ErrNotInitialized
	}
	return c.bundle, nil
}

// IsAdmin reports whether the provider operates as the server owner.
func (c *Client) IsAdmin() bool {
	return c.bundle != nil && c.bundle.IsAdmin
}

// UserID returns the numeric id of the resolved identity.
func (c *Client) UserID() int {
	if c.bundle == nil {
		return 0
	}
	return c.bundle.UserID
}

// DisplayName returns the display name of the resolved identity.
func (c *Client) DisplayName() string {
	if c.bundle == nil {
		return ""
	}
	return c.bundle.DisplayName
}

// Sections returns the enumerated library sections.
func (c *Client) Sections() []plexapi.Directory {
	return c.sections
}

// OnDeckWindow returns the server's on-deck time window, zero when the
// server does not expose it.
func (c *Client) OnDeckWindow() time.Duration {
	return c.onDeckWindow
}

// ListSectionItems searches a section with the options translated into the
// server's filter syntax. A failed search yields an empty result: listing
// partial data on a transient failure beats aborting a sync cycle.
func (c *Client) ListSectionItems(ctx context.Context, section plexapi.Directory, opts library.ListOptions) ([]plexapi.Metadata, error) {
	bundle, err := c.Bundle()
	if err != nil {
		return nil, err
	}

	kind := plexapi.TypeMovie
	if section.Type == "show" {
		kind = plexapi.TypeShow
	}

	var filter plexapi.Filter
	if !opts.MinLastModified.IsZero() {
		filter.Add(plexapi.ModifiedSince(kind, opts.MinLastModified))
	}
	if opts.RequireWatched {
		filter.Add(plexapi.Watched(kind))
	}
	if len(c.cfg.Genres) > 0 {
		filter.Add(plexapi.GenreAnyOf(c.cfg.Genres))
	}

	results, err := bundle.UserServer.Search(ctx, section.Key, kind, &filter)
	if err != nil {
		c.log.Warn("section search failed", "section", section.Key, "error", err)
		return nil, nil
	}

	var keyAllow map[string]struct{}
	if len(opts.Keys) > 0 {
		keyAllow = make(map[string]struct{}, len(opts.Keys))
		for _, k := range opts.Keys {
			keyAllow[k] = struct{}{}
		}
	}

	items := results[:0:0]
	for _, item := range results {
		if item.Type != "movie" && item.Type != "show" {
			continue
		}
		if keyAllow != nil {
			if _, ok := keyAllow[item.RatingKey]; !ok {
				continue
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// IsOnContinueWatching reports whether an item appears in a section's
// Continue Watching hub, from cache when fresh.
func (c *Client) IsOnContinueWatching(ctx context.Context, sectionKey, ratingKey string) bool {
	bundle, err := c.Bundle()
	if err != nil {
		return false
	}
	return c.continueCache.contains(sectionKey, ratingKey, func() (map[string]struct{}, error) {
		items, err := bundle.UserServer.ContinueWatching(ctx, sectionKey)
		if err != nil {
			c.log.Warn("continue watching fetch failed", "section", sectionKey, "error", err)
			return nil, err
		}
		keys := make(map[string]struct{}, len(items))
		for _, item := range items {
			if item.RatingKey != "" {
				keys[item.RatingKey] = struct{}{}
			}
		}
		return keys, nil
	})
}

// IsOnWatchlist reports whether an item's GUID appears on the account
// watchlist. Impersonated identities cannot see the owner's watchlist and
// always get a negative answer without a remote call. GUIDs are used
// because watchlist items may not exist in any local library.
func (c *Client) IsOnWatchlist(ctx context.Context, guid string) bool {
	if !c.IsAdmin() || guid == "" {
		return false
	}
	return c.watchlistCache.contains(watchlistCacheKey, guid, func() (map[string]struct{}, error) {
		items, err := c.account.Watchlist(ctx)
		if err != nil {
			c.log.Warn("watchlist fetch failed", "error", err)
			return nil, err
		}
		keys := make(map[string]struct{}, len(items))
		for _, item := range items {
			if item.GUID != "" {
				keys[item.GUID] = struct{}{}
			}
		}
		return keys, nil
	})
}

// historyRecord is one authoritative watch-log entry.
type historyRecord struct {
	Key      string
	ViewedAt time.Time
}

// FetchHistory returns the server's watch log for an item, scoped to the
// resolved identity. A failed fetch yields no records.
func (c *Client) FetchHistory(ctx context.Context, ratingKey string, sectionID int) []historyRecord {
	bundle, err := c.Bundle()
	if err != nil {
		return nil
	}

	accountID := bundle.UserID
	if bundle.IsAdmin {
		accountID = adminHistoryAccountID
	}

	items, err := bundle.Server.History(ctx, plexapi.HistoryFilter{
		RatingKey: ratingKey,
		AccountID: accountID,
		SectionID: sectionID,
	})
	if err != nil {
		c.log.Warn("history fetch failed", "item", ratingKey, "error", err)
		return nil
	}

	records := make([]historyRecord, 0, len(items))
	for _, item := range items {
		if item.ViewedAt == 0 {
			continue
		}
		records = append(records, historyRecord{Key: item.RatingKey, ViewedAt: item.Viewed()})
	}
	return records
}

// mapOrdering translates a server ordering tag into the provider's
// episode-numbering scheme name.
func mapOrdering(value string) string {
	switch value {
	case "tmdbAiring":
		return "tmdb"
	case "tvdbAiring", "aired":
		return "tvdb"
	default:
		return ""
	}
}

// Ordering resolves the preferred episode ordering for a show. A per-show
// override wins and is never cached (it is already in hand); the
// section-level setting is fetched once per section and cached for the
// process lifetime.
func (c *Client) Ordering(ctx context.Context, show plexapi.Metadata) string {
	if show.ShowOrdering != "" {
		return mapOrdering(show.ShowOrdering)
	}

	sectionKey := show.LibrarySectionKey
	if sectionKey == "" {
		sectionKey = strconv.Itoa(show.LibrarySectionID)
	}
	if cached, ok := c.ordering.get(sectionKey); ok {
		return cached
	}

	bundle, err := c.Bundle()
	if err != nil {
		return ""
	}
	settings, err := bundle.UserServer.SectionSettings(ctx, sectionKey)
	if err != nil {
		c.log.Warn("section settings fetch failed", "section", sectionKey, "error", err)
		return ""
	}

	resolved := ""
	for _, setting := range settings {
		if setting.ID == "showOrdering" {
			resolved = mapOrdering(setting.Value)
			break
		}
	}
	c.ordering.set(sectionKey, resolved)
	return resolved
}

// matchesSectionFilter reports whether a section title passes the
// configured allowlist.
func (c *Client) matchesSectionFilter(title string) bool {
	if len(c.sectionAllow) == 0 {
		return true
	}
	_, ok := c.sectionAllow[foldCaser.String(strings.TrimSpace(title))]
	return ok
}
