package provider

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/anibridge/plex-provider/internal/plexapi"
	"github.com/anibridge/plex-provider/pkg/library"
)

// guidNamespaces maps GUID schemes, including legacy longform agent
// identifiers, to canonical namespace tags.
var guidNamespaces = map[string]string{
	// Plex Movie/Series agents
	"imdb": "imdb",
	"tmdb": "tmdb",
	"tvdb": "tvdb",
	// Legacy Plex agents
	"com.plexapp.agents.imdb":       "imdb",
	"com.plexapp.agents.thetvdb":    "tvdb",
	"com.plexapp.agents.themoviedb": "tmdb",
	"com.plexapp.agents.tmdb":       "tmdb",
}

// section is a library.Section backed by a Plex library section.
type section struct {
	provider *Provider
	dir      plexapi.Directory
	kind     library.MediaKind
}

func newSection(p *Provider, dir plexapi.Directory) *section {
	kind := library.KindMovie
	if dir.Type == "show" {
		kind = library.KindShow
	}
	return &section{provider: p, dir: dir, kind: kind}
}

func (s *section) Key() string            { return s.dir.Key }
func (s *section) Title() string          { return s.dir.Title }
func (s *section) Kind() library.MediaKind { return s.kind }

// mediaItem is a library.Media backed by one Plex item. The kind set is
// closed; relation accessors dispatch on the kind tag. A wrapper is scoped
// to one listing call: parent and child wrappers are resolved lazily,
// cached per instance, and owned exclusively by it.
type mediaItem struct {
	provider *Provider
	section  *section
	raw      plexapi.Metadata
	kind     library.MediaKind

	mu     sync.Mutex
	show   *mediaItem
	season *mediaItem
}

// wrapMedia wraps a raw Plex item in the kind matching its metadata type.
func (p *Provider) wrapMedia(sec *section, raw plexapi.Metadata) (*mediaItem, error) {
	var kind library.MediaKind
	switch raw.Type {
	case "movie":
		kind = library.KindMovie
	case "show":
		kind = library.KindShow
	case "season":
		kind = library.KindSeason
	case "episode":
		kind = library.KindEpisode
	default:
		return nil, fmt.Errorf("unsupported plex media type %q", raw.Type)
	}
	return &mediaItem{provider: p, section: sec, raw: raw, kind: kind}, nil
}

// wrapAll wraps a batch of raw items, skipping unsupported types.
func (p *Provider) wrapAll(sec *section, raw []plexapi.Metadata) []library.Media {
	items := make([]library.Media, 0, len(raw))
	for _, md := range raw {
		item, err := p.wrapMedia(sec, md)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

func (m *mediaItem) Key() string             { return m.raw.RatingKey }
func (m *mediaItem) Title() string           { return m.raw.Title }
func (m *mediaItem) Kind() library.MediaKind { return m.kind }
func (m *mediaItem) Section() library.Section { return m.section }
func (m *mediaItem) ViewCount() int          { return m.raw.ViewCount }

// Index is the season or episode number.
func (m *mediaItem) Index() int { return m.raw.Index }

// SeasonIndex is the parent season number of an episode.
func (m *mediaItem) SeasonIndex() int { return m.raw.ParentIndex }

// UserRating reports the user's rating normalized to a 0-100 scale.
func (m *mediaItem) UserRating() (int, bool) {
	if m.raw.UserRating == 0 {
		return 0, false
	}
	return int(math.Round(m.raw.UserRating * 10)), true
}

// IDs extracts external identifiers from the item's GUID tags. The
// ambiguous tmdb/tvdb schemes are disambiguated by the item's own kind
// since the same database serves movies and shows with incompatible id
// spaces. The first tag per namespace wins.
func (m *mediaItem) IDs() map[string]string {
	ids := make(map[string]string)

	for _, guid := range m.raw.Guids {
		scheme, suffix, found := strings.Cut(guid.ID, "://")
		if !found {
			continue
		}
		namespace := guidNamespaces[scheme]
		if namespace == "" {
			continue
		}

		if namespace == "tmdb" || namespace == "tvdb" {
			if m.kind == library.KindMovie {
				namespace += "_movie"
			} else {
				namespace += "_show"
			}
		}

		value, _, _ := strings.Cut(suffix, "?")
		if _, taken := ids[namespace]; !taken && value != "" {
			ids[namespace] = value
		}
	}

	if m.raw.GUID != "" {
		value := m.raw.GUID[strings.LastIndex(m.raw.GUID, "/")+1:]
		if _, taken := ids["plex"]; !taken && value != "" {
			ids["plex"] = value
		}
	}

	return ids
}

// PosterURL returns the full URL of the item's poster artwork, empty when
// none is set.
func (m *mediaItem) PosterURL() string {
	if m.raw.Thumb == "" {
		return ""
	}
	bundle, err := m.provider.client.Bundle()
	if err != nil {
		return ""
	}
	return bundle.UserServer.URL(m.raw.Thumb)
}

func (m *mediaItem) OnContinueWatching(ctx context.Context) bool {
	return m.provider.client.IsOnContinueWatching(ctx, m.section.Key(), m.raw.RatingKey)
}

func (m *mediaItem) OnWatchlist(ctx context.Context) bool {
	return m.provider.client.IsOnWatchlist(ctx, m.raw.GUID)
}

func (m *mediaItem) History(ctx context.Context) ([]library.HistoryEntry, error) {
	return m.provider.History(ctx, m)
}

func (m *mediaItem) Review(ctx context.Context) (string, bool) {
	return m.provider.Review(ctx, m)
}

// Ordering reports the preferred episode-numbering scheme for a show.
func (m *mediaItem) Ordering(ctx context.Context) string {
	if m.kind != library.KindShow {
		return ""
	}
	return m.provider.client.Ordering(ctx, m.raw)
}

// Seasons returns a show's seasons.
func (m *mediaItem) Seasons(ctx context.Context) ([]library.Media, error) {
	if m.kind != library.KindShow {
		return nil, nil
	}
	bundle, err := m.provider.client.Bundle()
	if err != nil {
		return nil, err
	}
	raw, err := bundle.UserServer.Children(ctx, m.raw.RatingKey)
	if err != nil {
		return nil, err
	}
	seasons := make([]library.Media, 0, len(raw))
	for _, md := range raw {
		item, err := m.provider.wrapMedia(m.section, md)
		if err != nil {
			continue
		}
		item.show = m
		seasons = append(seasons, item)
	}
	return seasons, nil
}

// Episodes returns every episode under a show or season.
func (m *mediaItem) Episodes(ctx context.Context) ([]library.Media, error) {
	raw, err := m.childEpisodes(ctx)
	if err != nil {
		return nil, err
	}
	episodes := make([]library.Media, 0, len(raw))
	for _, md := range raw {
		item, err := m.provider.wrapMedia(m.section, md)
		if err != nil {
			continue
		}
		switch m.kind {
		case library.KindShow:
			item.show = m
		case library.KindSeason:
			item.season = m
			item.show = m.show
		}
		episodes = append(episodes, item)
	}
	return episodes, nil
}

// childEpisodes fetches the raw episodes of a show or season. Movies and
// episodes have none.
func (m *mediaItem) childEpisodes(ctx context.Context) ([]plexapi.Metadata, error) {
	bundle, err := m.provider.client.Bundle()
	if err != nil {
		return nil, err
	}
	switch m.kind {
	case library.KindShow:
		return bundle.UserServer.Episodes(ctx, m.raw.RatingKey)
	case library.KindSeason:
		return bundle.UserServer.Children(ctx, m.raw.RatingKey)
	default:
		return nil, nil
	}
}

// Season resolves an episode's parent season.
func (m *mediaItem) Season(ctx context.Context) (library.Media, error) {
	if m.kind != library.KindEpisode {
		return nil, nil
	}
	m.mu.Lock()
	cached := m.season
	m.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	parent, err := m.resolveByKey(ctx, m.raw.ParentRatingKey)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.season = parent
	m.mu.Unlock()
	return parent, nil
}

// Show resolves a season's or episode's parent show.
func (m *mediaItem) Show(ctx context.Context) (library.Media, error) {
	if m.kind != library.KindSeason && m.kind != library.KindEpisode {
		return nil, nil
	}
	m.mu.Lock()
	cached := m.show
	m.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	key := m.raw.ParentRatingKey
	if m.kind == library.KindEpisode {
		key = m.raw.GrandparentRatingKey
	}
	parent, err := m.resolveByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.show = parent
	m.mu.Unlock()
	return parent, nil
}

// resolveByKey fetches and wraps a related item by rating key.
func (m *mediaItem) resolveByKey(ctx context.Context, ratingKey string) (*mediaItem, error) {
	if ratingKey == "" {
		return nil, fmt.Errorf("item %s has no parent reference", m.raw.RatingKey)
	}
	bundle, err := m.provider.client.Bundle()
	if err != nil {
		return nil, err
	}
	raw, err := bundle.UserServer.Metadata(ctx, ratingKey)
	if err != nil {
		return nil, err
	}
	return m.provider.wrapMedia(m.section, *raw)
}
