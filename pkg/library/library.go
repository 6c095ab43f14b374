// Package library defines the uniform media-library contracts consumed by
// Anibridge sync engines. A provider exposes sections, media items, watch
// history, and webhook-driven sync triggers for one backing media server.
package library

import (
	"context"
	"net/http"
	"time"
)

// MediaKind identifies the kind of a section or media item.
type MediaKind int

const (
	KindMovie MediaKind = iota
	KindShow
	KindSeason
	KindEpisode
)

func (k MediaKind) String() string {
	switch k {
	case KindMovie:
		return "movie"
	case KindShow:
		return "show"
	case KindSeason:
		return "season"
	case KindEpisode:
		return "episode"
	default:
		return "unknown"
	}
}

// User identifies the account a provider operates as.
type User struct {
	Key   string
	Title string
}

// HistoryEntry is a single watch event for a media item.
type HistoryEntry struct {
	Key      string
	ViewedAt time.Time
}

// Section is a top-level library partition (e.g. "Movies", "Anime").
type Section interface {
	Key() string
	Title() string
	Kind() MediaKind
}

// ListOptions filters a section listing. The zero value lists everything.
type ListOptions struct {
	// MinLastModified, when non-zero, restricts results to items modified
	// (viewed, rated, added, or updated) at or after this instant.
	MinLastModified time.Time

	// RequireWatched restricts results to items watched at least once.
	RequireWatched bool

	// Keys, when non-empty, restricts results to these item keys.
	Keys []string
}

// Media is a library item. The kind set is closed: relation accessors that
// do not apply to an item's kind return their zero value.
type Media interface {
	Key() string
	Title() string
	Kind() MediaKind
	Section() Section

	// IDs maps external-identifier namespaces (imdb, tmdb_movie, tvdb_show,
	// plex, ...) to their values.
	IDs() map[string]string

	// UserRating reports the user's rating on a 0-100 scale.
	UserRating() (int, bool)
	ViewCount() int
	PosterURL() string

	// Index is the season or episode number; SeasonIndex is the parent
	// season number of an episode.
	Index() int
	SeasonIndex() int

	OnContinueWatching(ctx context.Context) bool
	OnWatchlist(ctx context.Context) bool

	History(ctx context.Context) ([]HistoryEntry, error)
	Review(ctx context.Context) (string, bool)

	// Ordering reports the preferred episode-numbering scheme for a show:
	// "tmdb", "tvdb", or "" when unknown.
	Ordering(ctx context.Context) string

	Seasons(ctx context.Context) ([]Media, error)
	Episodes(ctx context.Context) ([]Media, error)
	Season(ctx context.Context) (Media, error)
	Show(ctx context.Context) (Media, error)
}

// Provider is the uniform library interface. Lifecycle is
// initialize-then-serve: Initialize must complete before any other call,
// and concurrent use during Initialize is unsupported.
type Provider interface {
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error

	// User reports the resolved identity. Only valid after Initialize.
	User() (User, bool)

	Sections(ctx context.Context) ([]Section, error)
	ListItems(ctx context.Context, section Section, opts ListOptions) ([]Media, error)

	History(ctx context.Context, item Media) ([]HistoryEntry, error)
	Review(ctx context.Context, item Media) (string, bool)

	// ParseWebhook decodes a push notification from the media server and
	// reports whether a sync should run and which item keys it covers.
	ParseWebhook(r *http.Request) (bool, []string, error)

	// ClearCache drops any cached remote state.
	ClearCache()
}
