package echoweb

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/auth"
)

type released struct {
	mu  sync.Mutex
	ids []string
}

func (r *released) add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *released) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func newTestSessions(idle time.Duration, gauge prometheus.Gauge) (*Sessions, *released) {
	rel := new(released)
	newStore := func(id string) (*auth.Store, func()) {
		return auth.NewStore(auth.StoreDeps{Demo: true}), func() { rel.add(id) }
	}
	return NewSessions(newStore, idle, gauge), rel
}

func TestSessions_Get(t *testing.T) {
	sessions, _ := newTestSessions(0, nil)
	defer func() { _ = sessions.Close() }()

	s1, err := sessions.Get("one")
	require.NoError(t, err)
	again, err := sessions.Get("one")
	require.NoError(t, err)
	s2, err := sessions.Get("two")
	require.NoError(t, err)

	assert.Same(t, s1, again)
	assert.NotSame(t, s1, s2)
	assert.Equal(t, 2, sessions.Len())
}

func TestSessions_Evict(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_browser_sessions"})
	sessions, rel := newTestSessions(time.Hour, gauge)
	defer func() { _ = sessions.Close() }()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions.nowFunc = func() time.Time { return now }
	_, _ = sessions.Get("stale")
	now = now.Add(50 * time.Minute)
	_, _ = sessions.Get("fresh")
	assert.Equal(t, float64(2), testutil.ToFloat64(gauge))

	tests := []struct {
		name      string
		at        time.Time
		wantCount int
		wantLen   int
	}{
		{name: "nothing idle yet", at: now, wantCount: 0, wantLen: 2},
		{name: "one idle", at: now.Add(20 * time.Minute), wantCount: 1, wantLen: 1},
		{name: "already evicted", at: now.Add(20 * time.Minute), wantCount: 0, wantLen: 1},
		{name: "all idle", at: now.Add(2 * time.Hour), wantCount: 1, wantLen: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCount, sessions.Evict(tt.at))
			assert.Equal(t, tt.wantLen, sessions.Len())
			assert.Equal(t, float64(tt.wantLen), testutil.ToFloat64(gauge))
		})
	}
	assert.Equal(t, []string{"stale", "fresh"}, rel.get())

	// an evicted session starts over
	_, _ = sessions.Get("stale")
	assert.Equal(t, 1, sessions.Len())
}

func TestSessions_sweep(t *testing.T) {
	sessions, rel := newTestSessions(10*time.Millisecond, nil)
	defer func() { _ = sessions.Close() }()

	_, err := sessions.Get("one")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return sessions.Len() == 0 }, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{"one"}, rel.get())
}

func TestSessions_Close(t *testing.T) {
	sessions, rel := newTestSessions(time.Hour, nil)
	_, _ = sessions.Get("one")
	_, _ = sessions.Get("two")

	require.NoError(t, sessions.Close())
	assert.ElementsMatch(t, []string{"one", "two"}, rel.get())
	assert.Equal(t, 0, sessions.Len())

	_, err := sessions.Get("three")
	assert.ErrorIs(t, err, errSessionsClosed)
	require.NoError(t, sessions.Close()) // idempotent
	assert.Len(t, rel.get(), 2)
}
