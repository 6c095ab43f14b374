package plexapi

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModifiedSince_MovieClauseCount(t *testing.T) {
	g := ModifiedSince(TypeMovie, time.Unix(1700000000, 0))

	require.Len(t, g.Conditions, 4)
	assert.Equal(t, "or", g.Op)
	for _, c := range g.Conditions {
		assert.Equal(t, OpAtLeast, c.Op)
		assert.Equal(t, "1700000000", c.Value)
	}
}

func TestModifiedSince_ShowCoversAllLevels(t *testing.T) {
	g := ModifiedSince(TypeShow, time.Unix(1700000000, 0))

	require.Len(t, g.Conditions, 12)
	for _, prefix := range []string{"show.", "season.", "episode."} {
		count := 0
		for _, c := range g.Conditions {
			if strings.HasPrefix(c.Attribute, prefix) {
				count++
			}
		}
		assert.Equal(t, 4, count, "level %s", prefix)
	}
}

func TestWatched_ClauseCounts(t *testing.T) {
	movie := Watched(TypeMovie)
	show := Watched(TypeShow)

	assert.Len(t, movie.Conditions, 3)
	assert.Len(t, show.Conditions, 9)
	for _, c := range append(movie.Conditions, show.Conditions...) {
		assert.Equal(t, OpGreater, c.Op)
		assert.Equal(t, "0", c.Value)
	}
}

func TestFilter_EncodeDeterministic(t *testing.T) {
	build := func() string {
		var f Filter
		f.Add(ModifiedSince(TypeShow, time.Unix(1700000000, 0)))
		f.Add(Watched(TypeShow))
		f.Add(GenreAnyOf([]string{"Anime", "Animation"}))
		return f.Encode()
	}

	first := build()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, build())
	}
}

func TestFilter_EncodeWireFormat(t *testing.T) {
	var f Filter
	f.Add(Group{Op: "or", Conditions: []Condition{
		{"lastViewedAt", OpAtLeast, "100"},
		{"viewCount", OpGreater, "0"},
	}})
	f.Add(GenreAnyOf([]string{"Anime"}))

	encoded := f.Encode()

	// >= encodes as attribute>>, > as attribute>, = as bare attribute.
	assert.Equal(t,
		"push=1&lastViewedAt%3E%3E=100&or=1&viewCount%3E=0&pop=1"+
			"&push=1&genre=Anime&pop=1",
		encoded)
}

func TestFilter_Empty(t *testing.T) {
	var f Filter
	assert.True(t, f.Empty())
	assert.Equal(t, "", f.Encode())

	var nilFilter *Filter
	assert.True(t, nilFilter.Empty())

	f.Add(GenreAnyOf([]string{"Anime"}))
	assert.False(t, f.Empty())
}

func TestGenreAnyOf_SingleJoinedCondition(t *testing.T) {
	g := GenreAnyOf([]string{"Anime", "Animation"})

	require.Len(t, g.Conditions, 1)
	assert.Equal(t, "genre", g.Conditions[0].Attribute)
	assert.Equal(t, OpEquals, g.Conditions[0].Op)
	assert.Equal(t, "Anime,Animation", g.Conditions[0].Value)
}
