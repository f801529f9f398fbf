package auth

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrProfileNotFound = errors.New("profile not found")
	ErrSessionNotFound = errors.New("session not found")
)

type (
	// Provider is the external identity provider of a single browser session.
	Provider interface {
		SignUp(ctx context.Context, acc NewAccount) error
		// SignIn authenticates and emits EventSignedIn on success.
		SignIn(ctx context.Context, email, password string) error
		// SignOut terminates the session and emits EventSignedOut, even when the remote call fails.
		SignOut(ctx context.Context) error
		ResetPassword(ctx context.Context, email string) error
		// Refresh renews the session tokens (and the cached Identity) and emits EventTokenRefreshed.
		Refresh(ctx context.Context) error
		// Session returns the current session or nil when signed out. It never emits events.
		Session(ctx context.Context) (*Session, error)
		// Subscribe returns the channel of session changes; unsubscribe stops the delivery.
		Subscribe() (events <-chan Event, unsubscribe func())
	}

	ProfileRepository interface {
		// GetProfile returns ErrProfileNotFound when the profile is not provisioned yet.
		GetProfile(ctx context.Context, id string) (Profile, error)
	}

	// SessionRepository persists sessions across restarts, keyed by browser session.
	SessionRepository interface {
		// LoadSession returns ErrSessionNotFound when nothing is stored under key.
		LoadSession(ctx context.Context, key string) (Session, error)
		SaveSession(ctx context.Context, key string, sess Session) error
		DeleteSession(ctx context.Context, key string) error
	}
)

type accessTokenKey struct{}

// ContextWithAccessToken returns a copy of ctx carrying the signed-in user's access token.
// Record stores use it to query on behalf of the user.
func ContextWithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

func AccessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenKey{}).(string)
	return token, ok && token != ""
}
