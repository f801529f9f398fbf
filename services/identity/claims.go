package identitysvc

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/trezcool/academia/core/auth"
)

// Claims are the claims GoTrue puts in access tokens.
type Claims struct {
	jwt.StandardClaims
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// parseClaims reads the claims of an access token without verifying its signature:
// the token comes straight from the provider and is only used for scheduling.
func parseClaims(token string) (*Claims, error) {
	var claims Claims
	if _, _, err := new(jwt.Parser).ParseUnverified(token, &claims); err != nil {
		return nil, errors.Wrap(err, "parsing access token")
	}
	return &claims, nil
}

// expiry resolves when the access token of sess expires, falling back on its exp claim.
func expiry(sess types.Session, now time.Time) time.Time {
	switch {
	case sess.ExpiresAt > 0:
		return time.Unix(sess.ExpiresAt, 0)
	case sess.ExpiresIn > 0:
		return now.Add(time.Duration(sess.ExpiresIn) * time.Second)
	}
	if claims, err := parseClaims(sess.AccessToken); err == nil && claims.ExpiresAt > 0 {
		return time.Unix(claims.ExpiresAt, 0)
	}
	return time.Time{}
}

func toIdentity(u types.User) auth.Identity {
	identity := auth.Identity{
		ID:       u.ID.String(),
		Email:    u.Email,
		Metadata: u.UserMetadata,
	}
	if u.EmailConfirmedAt != nil && !u.EmailConfirmedAt.IsZero() {
		at := *u.EmailConfirmedAt
		identity.EmailConfirmedAt = &at
	}
	return identity
}

func toSession(sess types.Session, now time.Time) *auth.Session {
	return &auth.Session{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenType:    sess.TokenType,
		ExpiresAt:    expiry(sess, now),
		Identity:     toIdentity(sess.User),
	}
}
