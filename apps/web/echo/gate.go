package echoweb

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/gate"
)

const (
	ctxStateKey = "authState"

	defaultSettleTimeout = 3 * time.Second
)

// settledState waits, for at most timeout, until the Store is done loading.
func settledState(ctx echo.Context, timeout time.Duration) auth.State {
	store := getContextStore(ctx)
	if timeout <= 0 {
		timeout = defaultSettleTimeout
	}
	c, cancel := context.WithTimeout(ctx.Request().Context(), timeout)
	defer cancel()
	return store.AwaitSettled(c)
}

// getContextState returns the state the gate let through.
func getContextState(ctx echo.Context) auth.State {
	if st, ok := ctx.Get(ctxStateKey).(auth.State); ok {
		return st
	}
	return getContextStore(ctx).Snapshot()
}

// protectedMiddleware renders the page only for verified identities with a profile of requiredRole (any role when empty).
func (p *pages) protectedMiddleware(requiredRole auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			st := settledState(ctx, p.deps.Conf.Server.SettleTimeout)
			d := gate.Protected(st, requiredRole)
			if d.Kind == gate.Render {
				ctx.Set(ctxStateKey, st)
				return next(ctx)
			}
			return p.decide(ctx, d, st)
		}
	}
}

// publicMiddleware sends signed in users to their dashboard.
func (p *pages) publicMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		st := settledState(ctx, p.deps.Conf.Server.SettleTimeout)
		d := gate.Public(st)
		if d.Kind == gate.Render {
			ctx.Set(ctxStateKey, st)
			return next(ctx)
		}
		return p.decide(ctx, d, st)
	}
}

// decide renders the interstitial of d or redirects.
func (p *pages) decide(ctx echo.Context, d gate.Decision, st auth.State) error {
	switch d.Kind {
	case gate.Redirect:
		code := http.StatusFound
		if ctx.Request().Method != http.MethodGet {
			code = http.StatusSeeOther
		}
		return ctx.Redirect(code, d.Location)
	case gate.Loading:
		return p.render(ctx, http.StatusOK, "loading", "Loading", st, nil)
	case gate.VerifyEmail:
		return p.render(ctx, http.StatusForbidden, "verify-email", "Email Verification Required", st, nil)
	case gate.ProfileSetup:
		return p.render(ctx, http.StatusForbidden, "profile-setup", "Profile Setup Required", st, nil)
	case gate.InvalidRole:
		return p.render(ctx, http.StatusForbidden, "invalid-role", "Invalid user role", st, nil)
	}
	return errHttpNotFound
}

// accessContext returns the request context carrying the access token of the signed in user, for row level security.
func accessContext(ctx echo.Context, st auth.State) context.Context {
	c := ctx.Request().Context()
	if st.Session != nil && st.Session.AccessToken != "" {
		c = auth.ContextWithAccessToken(c, st.Session.AccessToken)
	}
	return c
}
