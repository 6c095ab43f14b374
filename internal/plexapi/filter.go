package plexapi

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Operator compares an attribute against a value in a search filter.
type Operator string

const (
	OpEquals  Operator = "="
	OpAtLeast Operator = ">>=" // attribute >= value
	OpGreater Operator = ">>"  // attribute > value
)

// wire returns the operator suffix appended to the attribute name in the
// encoded query string.
func (o Operator) wire() string {
	switch o {
	case OpAtLeast:
		return ">>"
	case OpGreater:
		return ">"
	default:
		return ""
	}
}

// Condition is a single attribute comparison.
type Condition struct {
	Attribute string
	Op        Operator
	Value     string
}

// Group combines conditions with one boolean operator.
type Group struct {
	Op         string // "or" or "and"
	Conditions []Condition
}

// Filter is a top-level conjunction of groups. Group order is preserved by
// the encoder so repeated builds produce identical query strings.
type Filter struct {
	Groups []Group
}

// Add appends a group to the filter.
func (f *Filter) Add(g Group) {
	f.Groups = append(f.Groups, g)
}

// Empty reports whether the filter carries no conditions.
func (f *Filter) Empty() bool {
	return f == nil || len(f.Groups) == 0
}

// Encode renders the filter as a raw query fragment. Nested groups are
// bracketed with push/pop markers and joined by their boolean operator,
// matching the server's advanced-filter syntax.
func (f *Filter) Encode() string {
	if f.Empty() {
		return ""
	}
	var b strings.Builder
	for i, g := range f.Groups {
		if i > 0 {
			b.WriteString("&")
		}
		b.WriteString("push=1")
		for j, c := range g.Conditions {
			if j > 0 {
				b.WriteString("&" + g.Op + "=1")
			}
			b.WriteString("&")
			b.WriteString(url.QueryEscape(c.Attribute + c.Op.wire()))
			b.WriteString("=")
			b.WriteString(url.QueryEscape(c.Value))
		}
		b.WriteString("&pop=1")
	}
	return b.String()
}

// modifiedAttrs are the per-item timestamps that mark an item as changed.
var modifiedAttrs = [...]string{"lastViewedAt", "lastRatedAt", "addedAt", "updatedAt"}

// showLevels are the hierarchy prefixes a show query must cover: a show is
// modified or watched if any of its descendants is.
var showLevels = [...]string{"show.", "season.", "episode."}

// ModifiedSince builds a disjunction matching items whose watch, rating,
// added, or updated timestamp is at or after the reference instant. Movie
// sections compare 4 direct attributes; show sections repeat them across
// the show/season/episode levels.
func ModifiedSince(t ItemType, since time.Time) Group {
	value := strconv.FormatInt(since.Unix(), 10)
	g := Group{Op: "or"}
	if t == TypeMovie {
		for _, attr := range modifiedAttrs {
			g.Conditions = append(g.Conditions, Condition{attr, OpAtLeast, value})
		}
		return g
	}
	for _, level := range showLevels {
		for _, attr := range modifiedAttrs {
			g.Conditions = append(g.Conditions, Condition{level + attr, OpAtLeast, value})
		}
	}
	return g
}

// Watched builds a disjunction matching items watched at least once,
// approximated as a positive view count or a set last-viewed or last-rated
// timestamp.
func Watched(t ItemType) Group {
	g := Group{Op: "or"}
	levels := []string{""}
	if t != TypeMovie {
		levels = showLevels[:]
	}
	for _, level := range levels {
		g.Conditions = append(g.Conditions,
			Condition{level + "viewCount", OpGreater, "0"},
			Condition{level + "lastViewedAt", OpGreater, "0"},
			Condition{level + "lastRatedAt", OpGreater, "0"},
		)
	}
	return g
}

// GenreAnyOf builds a clause matching items tagged with any listed genre.
func GenreAnyOf(genres []string) Group {
	return Group{
		Op:         "or",
		Conditions: []Condition{{"genre", OpEquals, strings.Join(genres, ",")}},
	}
}
