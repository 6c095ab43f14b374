package provider

import (
	"context"
	"fmt"

	"github.com/anibridge/plex-provider/internal/plexapi"
	"github.com/anibridge/plex-provider/pkg/library"
)

// History reconciles the server's watch log for an item with per-episode
// view timestamps. The history endpoint misses plays imported from other
// sources or trimmed by retention, so any episode carrying a last-viewed
// timestamp without a matching log entry contributes a derived entry.
// Derived entries come first; authoritative log entries follow and win on
// key collisions by never being displaced.
func (p *Provider) History(ctx context.Context, item library.Media) ([]library.HistoryEntry, error) {
	m, ok := item.(*mediaItem)
	if !ok || m.provider != p {
		return nil, fmt.Errorf("%w: item %q", ErrForeignItem, item.Key())
	}

	authoritative := p.client.FetchHistory(ctx, m.raw.RatingKey, m.raw.LibrarySectionID)

	var children []plexapi.Metadata
	switch m.kind {
	case library.KindShow, library.KindSeason:
		var err error
		children, err = m.childEpisodes(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching episodes of %s: %w", m.raw.RatingKey, err)
		}
	default:
		children = []plexapi.Metadata{m.raw}
	}

	logged := make(map[string]struct{}, len(authoritative))
	for _, rec := range authoritative {
		logged[rec.Key] = struct{}{}
	}

	entries := make([]library.HistoryEntry, 0, len(authoritative)+len(children))
	for _, child := range children {
		if child.LastViewedAt == 0 {
			continue
		}
		if _, ok := logged[child.RatingKey]; ok {
			continue
		}
		entries = append(entries, library.HistoryEntry{
			Key:      child.RatingKey,
			ViewedAt: child.LastViewed(),
		})
	}
	for _, rec := range authoritative {
		entries = append(entries, library.HistoryEntry{Key: rec.Key, ViewedAt: rec.ViewedAt})
	}
	return entries, nil
}
