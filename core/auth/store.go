package auth

import (
	"context"
	"sync"

	"github.com/trezcool/academia/core"
)

// StoreDeps are the collaborators of a Store.
// A Store without Provider, or with Demo set, runs in demo mode.
type StoreDeps struct {
	Provider Provider
	Profiles ProfileRepository
	Logger   core.Logger
	Demo     bool
}

// Store holds the auth state of one browser session.
// It is written by its Synchronizer only (and by SignOut clearing the profile); any goroutine may read it.
type Store struct {
	provider Provider
	demo     bool
	syncer   *Synchronizer

	mu      sync.RWMutex
	state   State
	gen     uint64 // bumped whenever pending profile fetches become stale
	changed chan struct{}
	closed  bool

	closeOnce sync.Once
}

// NewStore returns a Store subscribed to deps.Provider. Close must be called to unsubscribe.
func NewStore(deps StoreDeps) *Store {
	s := &Store{
		provider: deps.Provider,
		demo:     deps.Demo || deps.Provider == nil,
		changed:  make(chan struct{}),
	}
	if s.demo {
		return s
	}

	s.state.SessionLoading = true // until the initial session check is done
	logger := deps.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	s.syncer = newSynchronizer(s, deps.Provider, deps.Profiles, logger)
	s.syncer.start()
	return s
}

func (s *Store) IsDemo() bool { return s.demo }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Changed returns a channel closed on the next state change.
func (s *Store) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// AwaitSettled waits until nothing is loading, or ctx is done, and returns the state at that point.
func (s *Store) AwaitSettled(ctx context.Context) State {
	for {
		s.mu.RLock()
		st := s.state.clone()
		changed := s.changed
		s.mu.RUnlock()

		if !st.Loading() {
			return st
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return st
		}
	}
}

// SignUp requests account creation. The state changes only once the provider notifies a sign in.
func (s *Store) SignUp(ctx context.Context, acc NewAccount) error {
	if s.demo {
		return ErrDemoAuth
	}
	return friendly(s.provider.SignUp(ctx, acc))
}

// SignIn requests authentication. The session is loading until the provider notifies the sign in.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	if s.demo {
		return ErrDemoAuth
	}

	if err := s.startLoading(); err != nil {
		return err
	}
	if err := s.provider.SignIn(ctx, email, password); err != nil {
		s.update(func(st *State) { st.SessionLoading = false })
		return friendly(err)
	}
	return nil
}

// SignOut terminates the session. The profile is cleared on return whatever the provider answered.
func (s *Store) SignOut(ctx context.Context) error {
	var err error
	if !s.demo {
		err = s.provider.SignOut(ctx)
	}
	s.clearProfile()
	if err != nil {
		return friendly(err)
	}
	return nil
}

func (s *Store) ResetPassword(ctx context.Context, email string) error {
	if s.demo {
		return ErrDemoPasswordReset
	}
	return friendly(s.provider.ResetPassword(ctx, email))
}

// RefreshProfile fetches the profile of the current identity again and waits for it to land.
// It does nothing when signed out.
func (s *Store) RefreshProfile(ctx context.Context) error {
	if s.demo {
		return nil
	}
	s.mu.RLock()
	st, closed := s.state.clone(), s.closed
	s.mu.RUnlock()
	if closed {
		return ErrStoreClosed
	}
	if st.Identity == nil || st.Session == nil {
		return nil
	}

	select {
	case <-s.syncer.fetchProfile(*st.Session):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload asks the provider for fresh tokens, which also re-reads the identity (e.g. a newly confirmed email).
// The session is loading until the provider notifies the refresh.
func (s *Store) Reload(ctx context.Context) error {
	if s.demo {
		return nil
	}
	if st := s.Snapshot(); st.Session == nil {
		return nil
	}

	if err := s.startLoading(); err != nil {
		return err
	}
	if err := s.provider.Refresh(ctx); err != nil {
		s.update(func(st *State) { st.SessionLoading = false })
		return friendly(err)
	}
	return nil
}

// Close unsubscribes from the provider and waits for pending work. It is safe to call more than once.
// Loading flags left by calls in progress are cleared since no event can settle them anymore.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.syncer != nil {
			s.syncer.close()
		}
		s.update(func(st *State) {
			st.SessionLoading = false
			st.ProfileLoading = false
		})
	})
	return nil
}

// startLoading marks the session loading until the provider notifies the outcome.
func (s *Store) startLoading() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.updateLocked(func(st *State) { st.SessionLoading = true })
	return nil
}

// state mutators

// update applies fn under the write lock and notifies watchers.
func (s *Store) update(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateLocked(fn)
}

func (s *Store) updateLocked(fn func(st *State)) {
	fn(&s.state)
	close(s.changed)
	s.changed = make(chan struct{})
}

// applySession stores sess (nil when signed out). It reports whether the identity changed,
// in which case the profile is dropped and pending fetches become stale, and whether a profile
// fetch must follow. The profile is marked loading in the same step so readers never see a
// verified identity without profile between the two.
func (s *Store) applySession(sess *Session, forceFetch bool) (identityChanged, fetch bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevID := ""
	if s.state.Identity != nil {
		prevID = s.state.Identity.ID
	}
	newID := ""
	if sess != nil {
		newID = sess.Identity.ID
	}
	identityChanged = prevID != newID

	s.updateLocked(func(st *State) {
		st.SessionLoading = false
		if sess == nil {
			st.Identity, st.Session = nil, nil
		} else {
			c := State{Session: sess}.clone()
			st.Session = c.Session
			identity := c.Session.Identity
			st.Identity = &identity
		}
		if identityChanged || sess == nil || !sess.Identity.IsVerified() {
			s.gen++
			st.Profile = nil
			st.ProfileLoading = false
		}
		if sess != nil && sess.Identity.IsVerified() && (forceFetch || (st.Profile == nil && !st.ProfileLoading)) {
			fetch = true
			st.ProfileLoading = true
		}
	})
	return identityChanged, fetch
}

// beginProfileFetch marks the profile as loading for identityID and returns the fetch tag.
// ok is false when identityID is no longer current.
func (s *Store) beginProfileFetch(identityID string) (gen uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Identity == nil || s.state.Identity.ID != identityID {
		return 0, false
	}
	s.gen++
	s.updateLocked(func(st *State) { st.ProfileLoading = true })
	return s.gen, true
}

// finishProfileFetch stores the result of the fetch tagged (identityID, gen).
// Results of stale fetches are discarded and false is returned.
func (s *Store) finishProfileFetch(identityID string, gen uint64, profile *Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen || s.state.Identity == nil || s.state.Identity.ID != identityID {
		return false
	}
	s.updateLocked(func(st *State) {
		st.Profile = profile
		st.ProfileLoading = false
	})
	return true
}

func (s *Store) clearProfile() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.updateLocked(func(st *State) {
		st.Profile = nil
		st.ProfileLoading = false
	})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
