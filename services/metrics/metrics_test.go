package metricsvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/auth/authtest"
)

func TestInstrumentProvider(t *testing.T) {
	m := NewMetrics()
	fake := authtest.NewProvider()
	fake.AddAccount(authtest.Identity("u1", "ada@school.test", true), "Secret#2024x")
	p := InstrumentProvider(fake, m)

	events, unsubscribe := p.Subscribe()
	defer unsubscribe()

	ctx := context.Background()
	require.NoError(t, p.SignIn(ctx, "ada@school.test", "Secret#2024x"))
	assert.Error(t, p.SignIn(ctx, "ada@school.test", "wrong"))
	fake.SignOutErr = &auth.NetworkError{}
	assert.Error(t, p.SignOut(ctx))

	for _, want := range []auth.EventKind{auth.EventSignedIn, auth.EventSignedOut} {
		select {
		case ev := <-events:
			assert.Equal(t, want, ev.Kind)
		case <-time.After(time.Second):
			t.Fatalf("%s not relayed", want)
		}
	}

	tests := []struct {
		op, outcome string
		want        float64
	}{
		{"sign_in", outcomeOK, 1},
		{"sign_in", outcomeRejected, 1},
		{"sign_out", outcomeNetwork, 1},
		{"sign_up", outcomeOK, 0},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.AuthCalls.WithLabelValues(tt.op, tt.outcome)); got != tt.want {
			t.Errorf("AuthCalls(%s, %s) = %v; want %v", tt.op, tt.outcome, got, tt.want)
		}
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthEvents.WithLabelValues(string(auth.EventSignedIn))))

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, fake.Subscribers())
}

func TestInstrumentProfiles(t *testing.T) {
	m := NewMetrics()
	identity := authtest.Identity("u1", "ada@school.test", true)
	repo := InstrumentProfiles(authtest.NewProfiles(authtest.Profile(identity, "Ada", auth.RoleTeacher)), m)

	_, err := repo.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	_, err = repo.GetProfile(context.Background(), "nobody")
	assert.ErrorIs(t, err, auth.ErrProfileNotFound)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProfileFetches.WithLabelValues(outcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProfileFetches.WithLabelValues(outcomeNotFound)))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ActiveSessions.Set(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "academia_browser_sessions 3")
}
