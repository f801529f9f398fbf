package echoweb

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/academia/core/auth"
)

const (
	ctxStoreKey     = "store"
	ctxSessionIDKey = "sessionID"

	minSweepInterval = time.Second
)

var errSessionsClosed = errors.New("browser sessions are closed")

// NewStoreFunc builds the Store of the browser session id.
// release, when not nil, frees the Store's collaborators and is called once the Store is closed.
type NewStoreFunc func(id string) (store *auth.Store, release func())

// Sessions holds the Store of every active browser session and closes those left idle.
type Sessions struct {
	newStore NewStoreFunc
	idle     time.Duration
	active   prometheus.Gauge // optional
	nowFunc  func() time.Time

	mu      sync.Mutex
	entries map[string]*sessionEntry
	closed  bool

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type sessionEntry struct {
	store    *auth.Store
	release  func()
	lastSeen time.Time
}

// NewSessions returns a registry sweeping sessions idle for longer than idle (never when idle is 0).
func NewSessions(newStore NewStoreFunc, idle time.Duration, active prometheus.Gauge) *Sessions {
	s := &Sessions{
		newStore: newStore,
		idle:     idle,
		active:   active,
		nowFunc:  time.Now,
		entries:  make(map[string]*sessionEntry),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if idle > 0 {
		go s.sweep()
	} else {
		close(s.done)
	}
	return s
}

// Get returns the Store of the browser session id, creating it on first use.
func (s *Sessions) Get(id string) (*auth.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errSessionsClosed
	}
	entry, ok := s.entries[id]
	if !ok {
		store, release := s.newStore(id)
		entry = &sessionEntry{store: store, release: release}
		s.entries[id] = entry
		s.setActive()
	}
	entry.lastSeen = s.nowFunc()
	return entry.store, nil
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Evict closes the sessions not used since before now-idle and returns how many were closed.
func (s *Sessions) Evict(now time.Time) int {
	s.mu.Lock()
	var stale []*sessionEntry
	for id, entry := range s.entries {
		if now.Sub(entry.lastSeen) > s.idle {
			stale = append(stale, entry)
			delete(s.entries, id)
		}
	}
	s.setActive()
	s.mu.Unlock()

	for _, entry := range stale {
		entry.close()
	}
	return len(stale)
}

// Close stops the sweeper and closes every session. It is safe to call more than once.
func (s *Sessions) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done

		s.mu.Lock()
		s.closed = true
		entries := s.entries
		s.entries = make(map[string]*sessionEntry)
		s.setActive()
		s.mu.Unlock()

		for _, entry := range entries {
			entry.close()
		}
	})
	return nil
}

func (s *Sessions) sweep() {
	defer close(s.done)

	interval := s.idle / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Evict(s.nowFunc())
		}
	}
}

// setActive must be called with the lock held.
func (s *Sessions) setActive() {
	if s.active != nil {
		s.active.Set(float64(len(s.entries)))
	}
}

func (e *sessionEntry) close() {
	_ = e.store.Close()
	if e.release != nil {
		e.release()
	}
}

// sessionMiddleware attaches the Store of the browser session to the request, issuing a session cookie when missing.
func sessionMiddleware(sessions *Sessions, cookieName string, secure bool, maxAge time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			var id string
			if cookie, err := ctx.Cookie(cookieName); err == nil {
				if uid, err := uuid.Parse(cookie.Value); err == nil {
					id = uid.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				ctx.SetCookie(&http.Cookie{
					Name:     cookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(maxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			store, err := sessions.Get(id)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "server is shutting down").SetInternal(err)
			}
			ctx.Set(ctxSessionIDKey, id)
			ctx.Set(ctxStoreKey, store)
			return next(ctx)
		}
	}
}

func getContextStore(ctx echo.Context) *auth.Store {
	store, _ := ctx.Get(ctxStoreKey).(*auth.Store)
	return store
}
