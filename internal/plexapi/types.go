package plexapi

import "time"

// ItemType is the numeric Plex metadata type used by search endpoints.
type ItemType int

const (
	TypeMovie   ItemType = 1
	TypeShow    ItemType = 2
	TypeSeason  ItemType = 3
	TypeEpisode ItemType = 4
)

// container is the envelope wrapping every Plex server response.
type container struct {
	MediaContainer MediaContainer `json:"MediaContainer"`
}

// MediaContainer is the root payload of a Plex server response.
type MediaContainer struct {
	Size      int         `json:"size"`
	TotalSize int         `json:"totalSize,omitempty"`
	Directory []Directory `json:"Directory,omitempty"`
	Metadata  []Metadata  `json:"Metadata,omitempty"`
	Settings  []Setting   `json:"Setting,omitempty"`
	Hub       []Hub       `json:"Hub,omitempty"`
}

// Directory is a library section.
type Directory struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"` // "movie" or "show"
}

// Guid is an external identifier tag, e.g. "tmdb://4194".
type Guid struct {
	ID string `json:"id"`
}

// Tag is a named attribute such as a genre.
type Tag struct {
	Tag string `json:"tag"`
}

// Metadata is a media item: movie, show, season, or episode.
type Metadata struct {
	RatingKey            string  `json:"ratingKey"`
	Key                  string  `json:"key"`
	ParentRatingKey      string  `json:"parentRatingKey,omitempty"`
	GrandparentRatingKey string  `json:"grandparentRatingKey,omitempty"`
	GUID                 string  `json:"guid,omitempty"`
	Guids                []Guid  `json:"Guid,omitempty"`
	Type                 string  `json:"type"`
	Title                string  `json:"title"`
	Index                int     `json:"index,omitempty"`
	ParentIndex          int     `json:"parentIndex,omitempty"`
	LibrarySectionID     int     `json:"librarySectionID,omitempty"`
	LibrarySectionKey    string  `json:"librarySectionKey,omitempty"`
	Thumb                string  `json:"thumb,omitempty"`
	UserRating           float64 `json:"userRating,omitempty"`
	ViewCount            int     `json:"viewCount,omitempty"`
	LastViewedAt         int64   `json:"lastViewedAt,omitempty"`
	LastRatedAt          int64   `json:"lastRatedAt,omitempty"`
	AddedAt              int64   `json:"addedAt,omitempty"`
	UpdatedAt            int64   `json:"updatedAt,omitempty"`
	ViewedAt             int64   `json:"viewedAt,omitempty"`
	AccountID            int     `json:"accountID,omitempty"`
	ShowOrdering         string  `json:"showOrdering,omitempty"`
	Genre                []Tag   `json:"Genre,omitempty"`
}

// LastViewed reports lastViewedAt as a local time, zero when unset.
func (m Metadata) LastViewed() time.Time {
	if m.LastViewedAt == 0 {
		return time.Time{}
	}
	return time.Unix(m.LastViewedAt, 0)
}

// Viewed reports viewedAt as a local time, zero when unset.
func (m Metadata) Viewed() time.Time {
	if m.ViewedAt == 0 {
		return time.Time{}
	}
	return time.Unix(m.ViewedAt, 0)
}

// Hub is a server-curated row such as Continue Watching.
type Hub struct {
	HubIdentifier string     `json:"hubIdentifier"`
	Title         string     `json:"title"`
	Metadata      []Metadata `json:"Metadata,omitempty"`
}

// Setting is a server or section preference entry.
type Setting struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// HistoryFilter scopes a watch-history query.
type HistoryFilter struct {
	RatingKey string
	AccountID int
	SectionID int
}
