// Package identitysvc implements auth.Provider on top of Supabase Auth (GoTrue).
package identitysvc

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
)

const (
	defaultRefreshMargin = time.Minute
	retryDelay           = 30 * time.Second
	backgroundTimeout    = 15 * time.Second
)

// Provider is the identity provider of one browser session, identified by key.
// Its session is persisted under key so that it survives restarts.
type Provider struct {
	hub      *auth.Hub
	client   gotrue.Client
	key      string
	sessions auth.SessionRepository
	logger   core.Logger
	margin   time.Duration
	nowFunc  func() time.Time

	mu      sync.Mutex
	session *auth.Session
	loaded  bool // session read from the repository
	timer   *time.Timer
	closed  bool
}

var _ auth.Provider = (*Provider)(nil)

func (p *Provider) Subscribe() (<-chan auth.Event, func()) {
	return p.hub.Subscribe()
}

func (p *Provider) SignUp(ctx context.Context, acc auth.NewAccount) error {
	req := types.SignupRequest{
		Email:    acc.Email,
		Password: acc.Password,
		Data: map[string]interface{}{
			"full_name": acc.Name,
			"role":      acc.Role.String(),
		},
	}
	resp, err := call(ctx, func() (*types.SignupResponse, error) { return p.client.Signup(req) })
	if err != nil {
		return err
	}
	// with email confirmations off, sign-up signs in right away
	if resp.Session.AccessToken != "" {
		sess := resp.Session
		if sess.User.ID == uuid.Nil {
			sess.User = resp.User
		}
		p.signedIn(ctx, sess)
	}
	return nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	resp, err := call(ctx, func() (*types.TokenResponse, error) { return p.client.SignInWithEmailPassword(email, password) })
	if err != nil {
		return err
	}
	p.signedIn(ctx, resp.Session)
	return nil
}

func (p *Provider) signedIn(ctx context.Context, s types.Session) {
	sess := p.store(ctx, s)
	p.hub.Emit(auth.Event{Kind: auth.EventSignedIn, Session: sess})
	p.schedule(sess.ExpiresAt)
}

// SignOut revokes the refresh tokens. The local session is dropped whatever the provider answered.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()

	var err error
	if sess != nil {
		client := p.client.WithToken(sess.AccessToken)
		_, err = call(ctx, func() (struct{}, error) { return struct{}{}, client.Logout() })
		if err != nil && auth.IsRejected(err) {
			err = nil // token already expired or revoked
		}
	}
	p.clear(ctx)
	p.hub.Emit(auth.Event{Kind: auth.EventSignedOut})
	return err
}

func (p *Provider) ResetPassword(ctx context.Context, email string) error {
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, p.client.Recover(types.RecoverRequest{Email: email})
	})
	return err
}

// Refresh exchanges the refresh token for a new session and emits TOKEN_REFRESHED.
// A rejected refresh token signs the session out.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	sess := p.session
	p.mu.Unlock()
	if sess == nil {
		return &auth.ProviderError{Status: 401, Code: "session_not_found", Message: "Auth session missing!"}
	}

	refreshed, err := p.refresh(ctx, sess.RefreshToken)
	if err != nil {
		if auth.IsRejected(err) {
			p.logger.Info("identity: refresh token rejected, signing out", sess.Identity, err)
			p.clear(ctx)
			p.hub.Emit(auth.Event{Kind: auth.EventSignedOut})
		}
		return err
	}
	p.hub.Emit(auth.Event{Kind: auth.EventTokenRefreshed, Session: refreshed})
	p.schedule(refreshed.ExpiresAt)
	return nil
}

func (p *Provider) refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	resp, err := call(ctx, func() (*types.TokenResponse, error) { return p.client.RefreshToken(refreshToken) })
	if err != nil {
		return nil, err
	}
	return p.store(ctx, resp.Session), nil
}

// Session restores the persisted session on first use and renews it when expired.
// It never emits events.
func (p *Provider) Session(ctx context.Context) (*auth.Session, error) {
	p.mu.Lock()
	loaded, sess := p.loaded, p.session
	p.mu.Unlock()

	if !loaded {
		stored, err := p.sessions.LoadSession(ctx, p.key)
		switch {
		case err == nil:
			sess = &stored
		case errors.Cause(err) == auth.ErrSessionNotFound:
			sess = nil
		default:
			return nil, errors.Wrap(err, "loading session")
		}
		p.mu.Lock()
		if !p.loaded { // a concurrent sign in wins
			p.session, p.loaded = sess, true
		}
		sess = p.session
		p.mu.Unlock()
	}
	if sess == nil {
		return nil, nil
	}

	if sess.ExpiresWithin(p.nowFunc(), p.margin) {
		refreshed, err := p.refresh(ctx, sess.RefreshToken)
		if err != nil {
			if auth.IsRejected(err) {
				p.clear(ctx)
				return nil, nil
			}
			return nil, err
		}
		sess = refreshed
	}
	p.schedule(sess.ExpiresAt)

	c := *sess
	return &c, nil
}

// store makes s the current session and persists it. The caller schedules the refresh once the change is notified.
func (p *Provider) store(ctx context.Context, s types.Session) *auth.Session {
	sess := toSession(s, p.nowFunc())

	p.mu.Lock()
	p.session, p.loaded = sess, true
	p.mu.Unlock()

	if err := p.sessions.SaveSession(ctx, p.key, *sess); err != nil {
		p.logger.Warn("identity: could not persist session", errors.Wrap(err, "saving session"), sess.Identity)
	}

	c := *sess
	return &c
}

func (p *Provider) clear(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	p.mu.Lock()
	p.session, p.loaded = nil, true
	p.stopTimerLocked()
	p.mu.Unlock()

	if err := p.sessions.DeleteSession(ctx, p.key); err != nil {
		p.logger.Warn("identity: could not delete session", errors.Wrap(err, "deleting session"))
	}
}

// schedule arms the background refresh ahead of expiresAt.
func (p *Provider) schedule(expiresAt time.Time) {
	if expiresAt.IsZero() {
		return
	}
	p.scheduleIn(expiresAt.Sub(p.nowFunc()) - p.margin)
}

func (p *Provider) scheduleIn(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.stopTimerLocked()
	p.timer = time.AfterFunc(d, p.autoRefresh)
}

func (p *Provider) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Provider) autoRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	err := p.Refresh(ctx)
	if err != nil && auth.IsNetwork(err) {
		p.logger.Warn("identity: background refresh failed, retrying", err)
		p.scheduleIn(retryDelay)
	}
}

// Close stops the background refresh. The persisted session is kept.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.stopTimerLocked()
	return nil
}

// call runs fn, which cannot be cancelled, until it returns or ctx is done.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn()
		done <- result{val, err}
	}()

	select {
	case res := <-done:
		return res.val, translateErr(res.err)
	case <-ctx.Done():
		var zero T
		return zero, &auth.NetworkError{Err: ctx.Err()}
	}
}
