package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/anibridge/plex-provider/internal/plextv"
)

// Sentinel errors for identity resolution. All of them are fatal at
// initialization.
var (
	ErrUserNotFound      = errors.New("user not found in plex account")
	ErrNoLoginIdentifier = errors.New("no username, email, or title available to switch user")
	ErrSwitchFailed      = errors.New("failed to switch plex user")
	ErrNotInitialized    = errors.New("plex client has not been initialized")
)

// Bundle is an immutable snapshot of the resolved connection state,
// produced once per initialization and replaced wholesale on
// re-initialization. IsAdmin is true exactly when no impersonated user was
// resolved.
type Bundle struct {
	Server     serverAPI // admin connection
	UserServer serverAPI // same as Server unless impersonating
	Account    *plextv.Account
	TargetUser *plextv.HomeUser // nil unless impersonating

	UserID      int
	DisplayName string
	IsAdmin     bool
}

var foldCaser = cases.Fold()

// foldEqual compares two strings under Unicode case folding.
func foldEqual(a, b string) bool {
	return foldCaser.String(a) == foldCaser.String(b)
}

// resolveIdentity authenticates against plex.tv and the server, optionally
// switches to a requested secondary user, and derives the stable identity
// triple (id, display name, admin flag).
func (c *Client) resolveIdentity(ctx context.Context) (*Bundle, error) {
	account := c.newAccount(c.cfg.Token)
	admin := c.newServer(c.cfg.URL, c.cfg.Token)

	acct, err := account.User(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticate plex account: %w", err)
	}

	requested := strings.TrimSpace(c.cfg.User)

	var target *plextv.HomeUser
	if requested != "" && !matchesAny(requested, acct.Username, acct.Email, acct.Title) {
		users, err := account.HomeUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list plex home users: %w", err)
		}
		for i := range users {
			if matchesAny(requested, users[i].Username, users[i].Email, users[i].Title) {
				target = &users[i]
				break
			}
		}
		if target == nil {
			return nil, fmt.Errorf("%w: %q", ErrUserNotFound, requested)
		}
	}

	userServer := admin
	if target != nil {
		login := firstNonEmpty(target.Username, target.Email, target.Title)
		if login == "" {
			return nil, ErrNoLoginIdentifier
		}
		token, err := account.SwitchUser(ctx, target.UUID)
		if err != nil {
			return nil, fmt.Errorf("%w: user %q: %w", ErrSwitchFailed, login, err)
		}
		userServer = c.newServer(c.cfg.URL, token)
	}

	bundle := &Bundle{
		Server:     admin,
		UserServer: userServer,
		Account:    acct,
		TargetUser: target,
		IsAdmin:    target == nil,
	}

	if target != nil {
		bundle.UserID = target.ID
		bundle.DisplayName = firstNonEmpty(target.Username, target.Email, target.Title, requested, "Plex User")
	} else {
		bundle.UserID = acct.ID
		bundle.DisplayName = firstNonEmpty(acct.Username, acct.Email, acct.Title, requested, "Plex Admin")
	}

	return bundle, nil
}

// matchesAny reports whether requested matches any candidate under case
// folding, skipping empty candidates.
func matchesAny(requested string, candidates ...string) bool {
	for _, candidate := range candidates {
		if candidate != "" && foldEqual(candidate, requested) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
