package webhook

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scrobblePayload = `{
	"event": "media.scrobble",
	"user": true,
	"Account": {"id": 12, "title": "kid"},
	"Server": {"title": "plex", "uuid": "srv-1"},
	"Metadata": {
		"ratingKey": "301",
		"parentRatingKey": "201",
		"grandparentRatingKey": "101",
		"type": "episode",
		"title": "Episode 7"
	}
}`

func TestParse_Multipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("payload", scrobblePayload))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/webhook", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	payload, err := Parse(req)
	require.NoError(t, err)

	assert.Equal(t, EventScrobble, payload.EventType())
	id, ok := payload.AccountID()
	assert.True(t, ok)
	assert.Equal(t, 12, id)
	assert.Equal(t, "101", payload.TopLevelRatingKey())
}

func TestParse_PlainJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(scrobblePayload))
	req.Header.Set("Content-Type", "application/json")

	payload, err := Parse(req)
	require.NoError(t, err)
	assert.Equal(t, "media.scrobble", payload.Event)
}

func TestParse_MissingEvent(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{"Account":{"id":1}}`))

	_, err := Parse(req)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{nope`))

	_, err := Parse(req)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_EmptyBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(""))

	_, err := Parse(req)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_MultipartWithoutPayloadField(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("thumb", "binary-poster"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/webhook", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	_, err := Parse(req)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestAccountID_Missing(t *testing.T) {
	p := &Payload{Event: "media.play"}
	_, ok := p.AccountID()
	assert.False(t, ok)

	p.Account = &Account{ID: 0}
	_, ok = p.AccountID()
	assert.False(t, ok)
}

func TestTopLevelRatingKey_Precedence(t *testing.T) {
	p := &Payload{Metadata: &Metadata{RatingKey: "3"}}
	assert.Equal(t, "3", p.TopLevelRatingKey())

	p.Metadata.ParentRatingKey = "2"
	assert.Equal(t, "2", p.TopLevelRatingKey())

	p.Metadata.GrandparentRatingKey = "1"
	assert.Equal(t, "1", p.TopLevelRatingKey())

	assert.Equal(t, "", (&Payload{}).TopLevelRatingKey())
}
