package auth

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// Synchronizer keeps a Store in line with the provider's session events
// and loads the profile of verified identities.
type Synchronizer struct {
	store    *Store
	provider Provider
	profiles ProfileRepository
	logger   core.Logger

	events      <-chan Event
	unsubscribe func()

	ctx    context.Context // cancelled on close
	cancel context.CancelFunc
	done   chan struct{}   // closed when the event loop exits

	mu          sync.Mutex // serialises fetch starts
	fetchCancel context.CancelFunc
	fetches     sync.WaitGroup
}

// newSynchronizer subscribes to provider right away.
func newSynchronizer(store *Store, provider Provider, profiles ProfileRepository, logger core.Logger) *Synchronizer {
	events, unsubscribe := provider.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		store:       store,
		provider:    provider,
		profiles:    profiles,
		logger:      logger,
		events:      events,
		unsubscribe: unsubscribe,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

func (sy *Synchronizer) start() {
	go sy.run()
}

func (sy *Synchronizer) run() {
	defer close(sy.done)

	sess, err := sy.provider.Session(sy.ctx)
	if err != nil {
		if sy.ctx.Err() != nil {
			return
		}
		sy.logger.Warn("auth: initial session check failed", errors.Wrap(err, "reading session"))
		sess = nil
	}
	sy.handle(Event{Kind: EventInitialSession, Session: sess})

	for {
		select {
		case <-sy.ctx.Done():
			return
		case ev, ok := <-sy.events:
			if !ok {
				return
			}
			sy.handle(ev)
		}
	}
}

func (sy *Synchronizer) handle(ev Event) {
	sess := ev.Session
	if ev.Kind == EventSignedOut {
		sess = nil
	}

	force := ev.Kind == EventInitialSession || ev.Kind == EventSignedIn
	changed, fetch := sy.store.applySession(sess, force)
	if changed {
		sy.cancelFetch()
	}
	if fetch {
		sy.fetchProfile(*sess)
	}
}

// fetchProfile loads the profile of sess's identity in the background; the returned channel is closed once done.
// A newer fetch, an identity change or close makes it stale: its result is then dropped.
func (sy *Synchronizer) fetchProfile(sess Session) <-chan struct{} {
	done := make(chan struct{})
	identity := sess.Identity

	sy.mu.Lock()
	if sy.ctx.Err() != nil {
		sy.mu.Unlock()
		close(done)
		return done
	}
	gen, ok := sy.store.beginProfileFetch(identity.ID)
	if !ok {
		sy.mu.Unlock()
		close(done)
		return done
	}
	if sy.fetchCancel != nil {
		sy.fetchCancel()
	}
	ctx, cancel := context.WithCancel(sy.ctx)
	sy.fetchCancel = cancel
	sy.fetches.Add(1)
	sy.mu.Unlock()

	go func() {
		defer sy.fetches.Done()
		defer close(done)
		defer cancel()

		var profile *Profile
		p, err := sy.profiles.GetProfile(ContextWithAccessToken(ctx, sess.AccessToken), identity.ID)
		switch {
		case err == nil:
			profile = &p
		case ctx.Err() != nil:
			sy.logger.Debug("auth: profile fetch cancelled", identity)
			return
		case errors.Cause(err) == ErrProfileNotFound:
			sy.logger.Info("auth: profile not provisioned yet", identity)
		default:
			sy.logger.Warn("auth: profile fetch failed", errors.Wrap(err, "getting profile"), identity)
		}

		if !sy.store.finishProfileFetch(identity.ID, gen, profile) {
			sy.logger.Debug("auth: stale profile fetch discarded", identity)
		}
	}()
	return done
}

func (sy *Synchronizer) cancelFetch() {
	sy.mu.Lock()
	defer sy.mu.Unlock()
	if sy.fetchCancel != nil {
		sy.fetchCancel()
		sy.fetchCancel = nil
	}
}

// close unsubscribes, stops the event loop and waits for in-flight fetches.
func (sy *Synchronizer) close() {
	sy.unsubscribe()

	sy.mu.Lock()
	sy.cancel()
	sy.mu.Unlock()

	<-sy.done
	sy.fetches.Wait()
}
