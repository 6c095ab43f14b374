package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anibridge/plex-provider/internal/plexapi"
	"github.com/anibridge/plex-provider/pkg/library"
)

func guids(ids ...string) []plexapi.Guid {
	out := make([]plexapi.Guid, len(ids))
	for i, id := range ids {
		out[i] = plexapi.Guid{ID: id}
	}
	return out
}

func TestWrapMedia_Kinds(t *testing.T) {
	p := &Provider{}
	for raw, want := range map[string]library.MediaKind{
		"movie":   library.KindMovie,
		"show":    library.KindShow,
		"season":  library.KindSeason,
		"episode": library.KindEpisode,
	} {
		m, err := p.wrapMedia(nil, plexapi.Metadata{Type: raw})
		require.NoError(t, err)
		assert.Equal(t, want, m.Kind())
	}

	_, err := p.wrapMedia(nil, plexapi.Metadata{Type: "clip"})
	assert.Error(t, err)
}

func TestIDs_NamespacesByKind(t *testing.T) {
	p := &Provider{}

	movie, err := p.wrapMedia(nil, plexapi.Metadata{
		Type:  "movie",
		GUID:  "plex://movie/5d776b",
		Guids: guids("imdb://tt1234567", "tmdb://603", "tvdb://77"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"imdb":       "tt1234567",
		"tmdb_movie": "603",
		"tvdb_movie": "77",
		"plex":       "5d776b",
	}, movie.IDs())

	show, err := p.wrapMedia(nil, plexapi.Metadata{
		Type:  "show",
		GUID:  "plex://show/5d9c08",
		Guids: guids("tmdb://1429", "tvdb://289882"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"tmdb_show": "1429",
		"tvdb_show": "289882",
		"plex":      "5d9c08",
	}, show.IDs())
}

func TestIDs_LegacyAgents(t *testing.T) {
	p := &Provider{}
	m, err := p.wrapMedia(nil, plexapi.Metadata{
		Type: "show",
		Guids: guids(
			"com.plexapp.agents.thetvdb://289882?lang=en",
			"com.plexapp.agents.themoviedb://1429",
			"com.plexapp.agents.imdb://tt2560140",
		),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"tvdb_show": "289882",
		"tmdb_show": "1429",
		"imdb":      "tt2560140",
	}, m.IDs())
}

func TestIDs_FirstTagWinsAndUnknownSkipped(t *testing.T) {
	p := &Provider{}
	m, err := p.wrapMedia(nil, plexapi.Metadata{
		Type: "movie",
		Guids: guids(
			"tmdb://603",
			"tmdb://999",
			"anidb://1",
			"garbage",
		),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tmdb_movie": "603"}, m.IDs())
}

func TestUserRating_Scale(t *testing.T) {
	p := &Provider{}

	m, err := p.wrapMedia(nil, plexapi.Metadata{Type: "movie", UserRating: 8.5})
	require.NoError(t, err)
	rating, ok := m.UserRating()
	assert.True(t, ok)
	assert.Equal(t, 85, rating)

	m, err = p.wrapMedia(nil, plexapi.Metadata{Type: "movie"})
	require.NoError(t, err)
	_, ok = m.UserRating()
	assert.False(t, ok)
}

func TestMediaRelations(t *testing.T) {
	server := &fakeServer{
		metadata: map[string]plexapi.Metadata{
			"101": {RatingKey: "101", Type: "show", Title: "Frieren"},
			"201": {RatingKey: "201", Type: "season", Title: "Season 1", ParentRatingKey: "101", Index: 1},
		},
		children: map[string][]plexapi.Metadata{
			"101": {{RatingKey: "201", Type: "season", ParentRatingKey: "101", Index: 1}},
			"201": {{RatingKey: "301", Type: "episode", ParentRatingKey: "201", GrandparentRatingKey: "101", Index: 7, ParentIndex: 1}},
		},
		episodes: map[string][]plexapi.Metadata{
			"101": {{RatingKey: "301", Type: "episode", ParentRatingKey: "201", GrandparentRatingKey: "101", Index: 7, ParentIndex: 1}},
		},
	}
	p := newTestProvider(t, Config{URL: "http://plex:32400", Token: "tok"}, server, &fakeAccount{})

	ctx := context.Background()
	sec := newSection(p, plexapi.Directory{Key: "2", Title: "Anime", Type: "show"})

	show, err := p.wrapMedia(sec, plexapi.Metadata{RatingKey: "101", Type: "show"})
	require.NoError(t, err)

	seasons, err := show.Seasons(ctx)
	require.NoError(t, err)
	require.Len(t, seasons, 1)
	assert.Equal(t, library.KindSeason, seasons[0].Kind())

	episodes, err := show.Episodes(ctx)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	ep := episodes[0]
	assert.Equal(t, 7, ep.Index())
	assert.Equal(t, 1, ep.SeasonIndex())

	// The episode resolves its parents back through the wrapping show.
	gotShow, err := ep.Show(ctx)
	require.NoError(t, err)
	assert.Equal(t, "101", gotShow.Key())

	season, err := ep.Season(ctx)
	require.NoError(t, err)
	assert.Equal(t, "201", season.Key())

	// A movie has no relations.
	movie, err := p.wrapMedia(sec, plexapi.Metadata{RatingKey: "5", Type: "movie"})
	require.NoError(t, err)
	none, err := movie.Seasons(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPosterURL(t *testing.T) {
	server := &fakeServer{}
	p := newTestProvider(t, Config{URL: "http://plex:32400", Token: "tok"}, server, &fakeAccount{})

	sec := newSection(p, plexapi.Directory{Key: "1", Title: "Movies", Type: "movie"})
	m, err := p.wrapMedia(sec, plexapi.Metadata{RatingKey: "5", Type: "movie", Thumb: "/library/metadata/5/thumb/1"})
	require.NoError(t, err)

	assert.Equal(t, "http://plex:32400/library/metadata/5/thumb/1?X-Plex-Token=tok", m.PosterURL())

	m, err = p.wrapMedia(sec, plexapi.Metadata{RatingKey: "6", Type: "movie"})
	require.NoError(t, err)
	assert.Empty(t, m.PosterURL())
}
