package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/anibridge/plex-provider/internal/plexapi"
	"github.com/anibridge/plex-provider/internal/plextv"
)

// fakeServer implements serverAPI with canned responses and call counters.
type fakeServer struct {
	url   string
	token string

	sections        []plexapi.Directory
	sectionsErr     error
	searchResults   []plexapi.Metadata
	searchErr       error
	lastSearchKey   string
	lastSearchType  plexapi.ItemType
	lastFilter      *plexapi.Filter
	continueItems   map[string][]plexapi.Metadata
	continueErr     error
	continueCalls   int
	history         []plexapi.Metadata
	historyErr      error
	lastHistory     plexapi.HistoryFilter
	metadata        map[string]plexapi.Metadata
	children        map[string][]plexapi.Metadata
	episodes        map[string][]plexapi.Metadata
	sectionSettings map[string][]plexapi.Setting
	settingsCalls   int
	serverSettings  map[string]string
}

func (f *fakeServer) Sections(ctx context.Context) ([]plexapi.Directory, error) {
	return f.sections, f.sectionsErr
}

func (f *fakeServer) Search(ctx context.Context, sectionKey string, t plexapi.ItemType, fl *plexapi.Filter) ([]plexapi.Metadata, error) {
	f.lastSearchKey = sectionKey
	f.lastSearchType = t
	f.lastFilter = fl
	return f.searchResults, f.searchErr
}

func (f *fakeServer) ContinueWatching(ctx context.Context, sectionKey string) ([]plexapi.Metadata, error) {
	f.continueCalls++
	return f.continueItems[sectionKey], f.continueErr
}

func (f *fakeServer) History(ctx context.Context, hf plexapi.HistoryFilter) ([]plexapi.Metadata, error) {
	f.lastHistory = hf
	return f.history, f.historyErr
}

func (f *fakeServer) Metadata(ctx context.Context, ratingKey string) (*plexapi.Metadata, error) {
	md, ok := f.metadata[ratingKey]
	if !ok {
		return nil, plexapi.ErrNotFound
	}
	return &md, nil
}

func (f *fakeServer) Children(ctx context.Context, ratingKey string) ([]plexapi.Metadata, error) {
	return f.children[ratingKey], nil
}

func (f *fakeServer) Episodes(ctx context.Context, ratingKey string) ([]plexapi.Metadata, error) {
	return f.episodes[ratingKey], nil
}

func (f *fakeServer) SectionSettings(ctx context.Context, sectionKey string) ([]plexapi.Setting, error) {
	f.settingsCalls++
	settings, ok := f.sectionSettings[sectionKey]
	if !ok {
		return nil, errors.New("no settings")
	}
	return settings, nil
}

func (f *fakeServer) ServerSetting(ctx context.Context, id string) (string, error) {
	value, ok := f.serverSettings[id]
	if !ok {
		return "", plexapi.ErrNotFound
	}
	return value, nil
}

func (f *fakeServer) URL(path string) string {
	if path == "" {
		return ""
	}
	return f.url + path + "?X-Plex-Token=" + f.token
}

// fakeAccount implements accountAPI.
type fakeAccount struct {
	token string

	account        *plextv.Account
	accountErr     error
	homeUsers      []plextv.HomeUser
	homeUsersErr   error
	switchToken    string
	switchErr      error
	lastSwitchUUID string
	watchlist      []plextv.WatchlistItem
	watchlistErr   error
	watchlistCalls int
}

func (f *fakeAccount) User(ctx context.Context) (*plextv.Account, error) {
	return f.account, f.accountErr
}

func (f *fakeAccount) HomeUsers(ctx context.Context) ([]plextv.HomeUser, error) {
	return f.homeUsers, f.homeUsersErr
}

func (f *fakeAccount) SwitchUser(ctx context.Context, uuid string) (string, error) {
	f.lastSwitchUUID = uuid
	return f.switchToken, f.switchErr
}

func (f *fakeAccount) Watchlist(ctx context.Context) ([]plextv.WatchlistItem, error) {
	f.watchlistCalls++
	return f.watchlist, f.watchlistErr
}

// newTestClient wires a Client to the given fakes.
func newTestClient(cfg Config, server *fakeServer, account *fakeAccount) *Client {
	c := NewClient(cfg, nil)
	c.newServer = func(url, token string) serverAPI {
		server.url = url
		server.token = token
		return server
	}
	c.newAccount = func(token string) accountAPI {
		account.token = token
		return account
	}
	return c
}

// fakeCommunity implements communityAPI.
type fakeCommunity struct {
	review     string
	reviewErr  error
	lastID     string
	reviewCall int
}

func (f *fakeCommunity) Review(ctx context.Context, metadataID string) (string, error) {
	f.reviewCall++
	f.lastID = metadataID
	return f.review, f.reviewErr
}

// newTestProvider wires an initialized Provider to the given fakes.
func newTestProvider(t *testing.T, cfg Config, server *fakeServer, account *fakeAccount) *Provider {
	t.Helper()
	if account.account == nil {
		account.account = ownerAccount()
	}
	p := New(cfg, nil)
	p.client = newTestClient(cfg, server, account)
	p.newCommunity = func(token string) communityAPI {
		return &fakeCommunity{}
	}
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize provider: %v", err)
	}
	return p
}

// ownerAccount is a plex.tv account fixture for the server owner.
func ownerAccount() *plextv.Account {
	return &plextv.Account{ID: 7, UUID: "owner-uuid", Username: "owner", Email: "owner@example.com", Title: "Owner"}
}
