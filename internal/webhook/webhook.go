// Package webhook decodes Plex push notifications. Plex posts webhooks as
// multipart form data with a JSON document in the "payload" field; some
// proxies re-deliver them as a plain JSON body, so both shapes are
// accepted.
package webhook

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// maxPayloadBytes bounds how much of a webhook body is read.
const maxPayloadBytes = 1 << 20

// EventType identifies a webhook event.
type EventType string

const (
	EventPlay       EventType = "media.play"
	EventPause      EventType = "media.pause"
	EventResume     EventType = "media.resume"
	EventStop       EventType = "media.stop"
	EventScrobble   EventType = "media.scrobble"
	EventRate       EventType = "media.rate"
	EventMediaAdded EventType = "library.new"
	EventOnDeck     EventType = "library.on.deck"
)

// ErrMalformed indicates a request that could not be decoded as a webhook.
var ErrMalformed = errors.New("malformed webhook payload")

// Account identifies the account that triggered the event.
type Account struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// Server identifies the originating media server.
type Server struct {
	Title string `json:"title"`
	UUID  string `json:"uuid"`
}

// Player identifies the playback device, when one is involved.
type Player struct {
	Title string `json:"title"`
	UUID  string `json:"uuid"`
	Local bool   `json:"local"`
}

// Metadata carries the item keys of the affected media.
type Metadata struct {
	RatingKey            string `json:"ratingKey"`
	ParentRatingKey      string `json:"parentRatingKey"`
	GrandparentRatingKey string `json:"grandparentRatingKey"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
}

// Payload is a decoded webhook notification.
type Payload struct {
	Event    string    `json:"event"`
	User     bool      `json:"user"`
	Owner    bool      `json:"owner"`
	Account  *Account  `json:"Account"`
	Server   *Server   `json:"Server"`
	Player   *Player   `json:"Player"`
	Metadata *Metadata `json:"Metadata"`
}

// EventType returns the typed event tag.
func (p *Payload) EventType() EventType {
	return EventType(p.Event)
}

// AccountID returns the triggering account id when present.
func (p *Payload) AccountID() (int, bool) {
	if p.Account == nil || p.Account.ID == 0 {
		return 0, false
	}
	return p.Account.ID, true
}

// TopLevelRatingKey resolves the key of the topmost ancestor the event
// concerns: the show for an episode, the show for a season, else the item
// itself.
func (p *Payload) TopLevelRatingKey() string {
	if p.Metadata == nil {
		return ""
	}
	if p.Metadata.GrandparentRatingKey != "" {
		return p.Metadata.GrandparentRatingKey
	}
	if p.Metadata.ParentRatingKey != "" {
		return p.Metadata.ParentRatingKey
	}
	return p.Metadata.RatingKey
}

// Parse decodes a webhook request body.
func Parse(r *http.Request) (*Payload, error) {
	raw, err := rawPayload(r)
	if err != nil {
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if payload.Event == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrMalformed)
	}
	return &payload, nil
}

func rawPayload(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(maxPayloadBytes); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		field := r.FormValue("payload")
		if field == "" {
			return nil, fmt.Errorf("%w: missing payload field", ErrMalformed)
		}
		return []byte(field), nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}
	return body, nil
}
