package metricsvc

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/academia/core/auth"
)

type provider struct {
	next auth.Provider
	m    *Metrics
}

// InstrumentProvider counts and times the calls made to p.
func InstrumentProvider(p auth.Provider, m *Metrics) auth.Provider {
	return &provider{next: p, m: m}
}

func (p *provider) SignUp(ctx context.Context, acc auth.NewAccount) error {
	start := time.Now()
	err := p.next.SignUp(ctx, acc)
	p.m.observeAuth("sign_up", start, err)
	return err
}

func (p *provider) SignIn(ctx context.Context, email, password string) error {
	start := time.Now()
	err := p.next.SignIn(ctx, email, password)
	p.m.observeAuth("sign_in", start, err)
	return err
}

func (p *provider) SignOut(ctx context.Context) error {
	start := time.Now()
	err := p.next.SignOut(ctx)
	p.m.observeAuth("sign_out", start, err)
	return err
}

func (p *provider) ResetPassword(ctx context.Context, email string) error {
	start := time.Now()
	err := p.next.ResetPassword(ctx, email)
	p.m.observeAuth("reset_password", start, err)
	return err
}

func (p *provider) Refresh(ctx context.Context) error {
	start := time.Now()
	err := p.next.Refresh(ctx)
	p.m.observeAuth("refresh", start, err)
	return err
}

func (p *provider) Session(ctx context.Context) (*auth.Session, error) {
	start := time.Now()
	sess, err := p.next.Session(ctx)
	p.m.observeAuth("session", start, err)
	return sess, err
}

// Subscribe counts the events as they are delivered.
func (p *provider) Subscribe() (<-chan auth.Event, func()) {
	events, unsubscribe := p.next.Subscribe()
	out := make(chan auth.Event)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				p.m.AuthEvents.WithLabelValues(string(ev.Kind)).Inc()
				select {
				case out <- ev:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			unsubscribe()
			close(done)
		})
	}
}

type profiles struct {
	next auth.ProfileRepository
	m    *Metrics
}

// InstrumentProfiles counts and times the lookups made to repo.
func InstrumentProfiles(repo auth.ProfileRepository, m *Metrics) auth.ProfileRepository {
	return &profiles{next: repo, m: m}
}

func (p *profiles) GetProfile(ctx context.Context, id string) (auth.Profile, error) {
	start := time.Now()
	profile, err := p.next.GetProfile(ctx, id)
	p.m.ProfileLatency.Observe(time.Since(start).Seconds())
	p.m.ProfileFetches.WithLabelValues(outcome(err)).Inc()
	return profile, err
}
