package identitysvc

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/auth/authtest"
	"github.com/trezcool/academia/storage/session/inmem"
)

const (
	baseURL  = "https://project.supabase.co"
	tokenURL = baseURL + "/auth/v1/token"
	userID   = "6f1c2b9e-3c4d-4e5f-8a9b-0c1d2e3f4a5b"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	mock     *httpmock.MockTransport
	sessions auth.SessionRepository
	logger   *authtest.Logger
	factory  *Factory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		mock:     httpmock.NewMockTransport(),
		sessions: inmemstore.NewSessionRepository(),
		logger:   authtest.NewLogger(),
	}
	fx.factory = NewFactory(Options{
		URL:           baseURL + "/",
		AnonKey:       "anon-key",
		Sessions:      fx.sessions,
		Logger:        fx.logger,
		Transport:     fx.mock,
		RefreshMargin: time.Minute,
		NowFunc:       func() time.Time { return now },
	})
	return fx
}

func (fx *fixture) provider(t *testing.T, key string) *Provider {
	t.Helper()
	p := fx.factory.New(key)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func accessToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := Claims{
		StandardClaims: jwt.StandardClaims{Subject: userID, ExpiresAt: exp.Unix(), Audience: "authenticated"},
		Email:          "ada@school.test",
		Role:           "authenticated",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func tokenBody(t *testing.T, access, refresh string, exp time.Time, confirmed bool) map[string]interface{} {
	t.Helper()
	usr := map[string]interface{}{
		"id":            userID,
		"email":         "ada@school.test",
		"user_metadata": map[string]interface{}{"full_name": "Ada Lovelace", "role": "teacher"},
	}
	if confirmed {
		usr["email_confirmed_at"] = "2024-01-01T00:00:00Z"
	}
	return map[string]interface{}{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    3600,
		"expires_at":    exp.Unix(),
		"user":          usr,
	}
}

func errorResponder(status int, code, msg string) httpmock.Responder {
	body, _ := json.Marshal(map[string]interface{}{"code": status, "error_code": code, "msg": msg})
	return httpmock.NewBytesResponder(status, body)
}

func nextEvent(t *testing.T, events <-chan auth.Event) auth.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event emitted")
	}
	return auth.Event{}
}

func TestProvider_SignIn(t *testing.T) {
	fx := newFixture(t)
	exp := now.Add(time.Hour)
	fx.mock.RegisterResponderWithQuery(http.MethodPost, tokenURL, "grant_type=password",
		func(req *http.Request) (*http.Response, error) {
			var body map[string]interface{}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return nil, err
			}
			if body["email"] != "ada@school.test" || body["password"] != "Secret#2024x" {
				return errorResponder(400, "invalid_credentials", "Invalid login credentials")(req)
			}
			assert.Equal(t, "anon-key", req.Header.Get("apiKey"))
			return httpmock.NewJsonResponse(200, tokenBody(t, "access-1", "refresh-1", exp, true))
		},
	)

	p := fx.provider(t, "browser-1")
	events, unsubscribe := p.Subscribe()
	defer unsubscribe()

	err := p.SignIn(context.Background(), "ada@school.test", "wrong")
	require.Error(t, err)
	assert.True(t, auth.IsRejected(err))
	assert.Equal(t, "Invalid login credentials", auth.UserMessage(err))

	require.NoError(t, p.SignIn(context.Background(), "ada@school.test", "Secret#2024x"))
	ev := nextEvent(t, events)
	assert.Equal(t, auth.EventSignedIn, ev.Kind)
	if assert.NotNil(t, ev.Session) {
		assert.Equal(t, "access-1", ev.Session.AccessToken)
		assert.Equal(t, userID, ev.Session.Identity.ID)
		assert.True(t, ev.Session.Identity.IsVerified())
		assert.Equal(t, "Ada Lovelace", ev.Session.Identity.DisplayName())
		assert.True(t, exp.Truncate(time.Second).Equal(ev.Session.ExpiresAt))
	}

	stored, err := fx.sessions.LoadSession(context.Background(), "browser-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
}

func TestProvider_SignUp(t *testing.T) {
	fx := newFixture(t)
	fx.mock.RegisterResponder(http.MethodPost, baseURL+"/auth/v1/signup",
		func(req *http.Request) (*http.Response, error) {
			var body struct {
				Email string                 `json:"email"`
				Data  map[string]interface{} `json:"data"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return nil, err
			}
			if body.Email == "taken@school.test" {
				return errorResponder(422, "user_already_exists", "User already registered")(req)
			}
			assert.Equal(t, map[string]interface{}{"full_name": "Ada Lovelace", "role": "teacher"}, body.Data)
			// confirmation required: no session
			return httpmock.NewJsonResponse(200, map[string]interface{}{"id": userID, "email": body.Email})
		},
	)

	p := fx.provider(t, "browser-1")
	events, unsubscribe := p.Subscribe()
	defer unsubscribe()

	acc := auth.NewAccount{Name: "Ada Lovelace", Email: "ada@school.test", Password: "Secret#2024x", Role: auth.RoleTeacher}
	require.NoError(t, p.SignUp(context.Background(), acc))
	select {
	case ev := <-events:
		t.Errorf("unexpected event %v", ev.Kind)
	default:
	}

	acc.Email = "taken@school.test"
	err := p.SignUp(context.Background(), acc)
	var pErr *auth.ProviderError
	if assert.ErrorAs(t, err, &pErr) {
		assert.Equal(t, 422, pErr.Status)
		assert.Equal(t, "user_already_exists", pErr.Code)
		assert.Equal(t, "User already registered", pErr.Message)
	}
}

func TestProvider_SignOut(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		wantErr   bool
	}{
		{name: "success", responder: httpmock.NewStringResponder(204, "")},
		{name: "token already revoked", responder: errorResponder(401, "bad_jwt", "invalid JWT")},
		{name: "unreachable", responder: httpmock.ConnectionFailure, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.mock.RegisterResponder(http.MethodPost, baseURL+"/auth/v1/logout", tt.responder)
			require.NoError(t, fx.sessions.SaveSession(context.Background(), "browser-1", *authtest.NewSession(authtest.Identity(userID, "ada@school.test", true))))

			p := fx.provider(t, "browser-1")
			sess, err := p.Session(context.Background())
			require.NoError(t, err)
			require.NotNil(t, sess)

			events, unsubscribe := p.Subscribe()
			defer unsubscribe()

			err = p.SignOut(context.Background())
			if tt.wantErr {
				assert.True(t, auth.IsNetwork(err))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, auth.EventSignedOut, nextEvent(t, events).Kind)

			sess, err = p.Session(context.Background())
			assert.NoError(t, err)
			assert.Nil(t, sess)
			_, err = fx.sessions.LoadSession(context.Background(), "browser-1")
			assert.Equal(t, auth.ErrSessionNotFound, err)
		})
	}
}

func TestProvider_Session(t *testing.T) {
	identity := authtest.Identity(userID, "ada@school.test", true)

	tests := []struct {
		name        string
		stored      *auth.Session
		refresh     httpmock.Responder
		wantToken   string
		wantErr     bool
		wantCleared bool
	}{
		{name: "nothing stored"},
		{
			name:      "valid",
			stored:    &auth.Session{AccessToken: "access-0", RefreshToken: "refresh-0", ExpiresAt: now.Add(time.Hour), Identity: identity},
			wantToken: "access-0",
		},
		{
			name:      "expired is refreshed",
			stored:    &auth.Session{AccessToken: "access-0", RefreshToken: "refresh-0", ExpiresAt: now.Add(-time.Minute), Identity: identity},
			wantToken: "access-1",
		},
		{
			name:        "expired and revoked",
			stored:      &auth.Session{AccessToken: "access-0", RefreshToken: "refresh-0", ExpiresAt: now.Add(30 * time.Second), Identity: identity},
			refresh:     errorResponder(400, "refresh_token_not_found", "Invalid Refresh Token: Refresh Token Not Found"),
			wantCleared: true,
		},
		{
			name:    "expired and unreachable",
			stored:  &auth.Session{AccessToken: "access-0", RefreshToken: "refresh-0", ExpiresAt: now.Add(-time.Minute), Identity: identity},
			refresh: httpmock.ConnectionFailure,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			refresh := tt.refresh
			if refresh == nil {
				refresh = httpmock.NewJsonResponderOrPanic(200, tokenBody(t, "access-1", "refresh-1", now.Add(time.Hour), true))
			}
			fx.mock.RegisterResponderWithQuery(http.MethodPost, tokenURL, "grant_type=refresh_token", refresh)
			if tt.stored != nil {
				require.NoError(t, fx.sessions.SaveSession(context.Background(), "browser-1", *tt.stored))
			}

			p := fx.provider(t, "browser-1")
			events, unsubscribe := p.Subscribe()
			defer unsubscribe()

			sess, err := p.Session(context.Background())
			if tt.wantErr {
				assert.True(t, auth.IsNetwork(err))
				return
			}
			require.NoError(t, err)
			if tt.wantToken == "" {
				assert.Nil(t, sess)
			} else if assert.NotNil(t, sess) {
				assert.Equal(t, tt.wantToken, sess.AccessToken)
			}

			if tt.wantCleared {
				_, err = fx.sessions.LoadSession(context.Background(), "browser-1")
				assert.Equal(t, auth.ErrSessionNotFound, err)
			}
			select {
			case ev := <-events:
				t.Errorf("Session() emitted %v", ev.Kind)
			default:
			}
		})
	}
}

func TestProvider_Refresh(t *testing.T) {
	fx := newFixture(t)
	fx.mock.RegisterResponderWithQuery(http.MethodPost, tokenURL, "grant_type=refresh_token",
		httpmock.NewJsonResponderOrPanic(200, tokenBody(t, "access-2", "refresh-2", now.Add(time.Hour), true)).
			Then(errorResponder(400, "refresh_token_already_used", "Invalid Refresh Token: Already Used")),
	)
	unverified := authtest.Identity(userID, "ada@school.test", false)
	require.NoError(t, fx.sessions.SaveSession(context.Background(), "browser-1",
		auth.Session{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresAt: now.Add(time.Hour), Identity: unverified}))

	p := fx.provider(t, "browser-1")
	_, err := p.Session(context.Background())
	require.NoError(t, err)

	events, unsubscribe := p.Subscribe()
	defer unsubscribe()

	// email confirmed since: the refreshed session carries the verified identity
	require.NoError(t, p.Refresh(context.Background()))
	ev := nextEvent(t, events)
	assert.Equal(t, auth.EventTokenRefreshed, ev.Kind)
	assert.True(t, ev.Session.Identity.IsVerified())

	err = p.Refresh(context.Background())
	assert.True(t, auth.IsRejected(err))
	assert.Equal(t, auth.EventSignedOut, nextEvent(t, events).Kind)

	err = p.Refresh(context.Background())
	assert.True(t, auth.IsRejected(err), "no session left to refresh")
}

func TestProvider_autoRefresh(t *testing.T) {
	fx := newFixture(t)
	fx.mock.RegisterResponderWithQuery(http.MethodPost, tokenURL, "grant_type=refresh_token",
		httpmock.NewJsonResponderOrPanic(200, tokenBody(t, "access-2", "refresh-2", now.Add(time.Hour), true)),
	)
	// expires within the refresh margin: refreshed right away
	exp := now.Add(30 * time.Second)
	fx.mock.RegisterResponderWithQuery(http.MethodPost, tokenURL, "grant_type=password",
		httpmock.NewJsonResponderOrPanic(200, tokenBody(t, accessToken(t, exp), "refresh-1", exp, true)),
	)

	p := fx.provider(t, "browser-1")
	events, unsubscribe := p.Subscribe()
	defer unsubscribe()

	require.NoError(t, p.SignIn(context.Background(), "ada@school.test", "Secret#2024x"))
	assert.Equal(t, auth.EventSignedIn, nextEvent(t, events).Kind)

	ev := nextEvent(t, events)
	assert.Equal(t, auth.EventTokenRefreshed, ev.Kind)
	assert.Equal(t, "access-2", ev.Session.AccessToken)
}

func TestProvider_ResetPassword(t *testing.T) {
	fx := newFixture(t)
	fx.mock.RegisterResponder(http.MethodPost, baseURL+"/auth/v1/recover", httpmock.NewStringResponder(200, "{}"))

	p := fx.provider(t, "browser-1")
	assert.NoError(t, p.ResetPassword(context.Background(), "ada@school.test"))
	assert.Equal(t, 1, fx.mock.GetTotalCallCount())
}

func TestProvider_ResetPassword_redirect(t *testing.T) {
	mock := httpmock.NewMockTransport()
	var redirect string
	mock.RegisterResponder(http.MethodPost, baseURL+"/auth/v1/recover",
		func(req *http.Request) (*http.Response, error) {
			redirect = req.URL.Query().Get("redirect_to")
			return httpmock.NewStringResponse(200, "{}"), nil
		})

	factory := NewFactory(Options{
		URL:       baseURL,
		AnonKey:   "anon-key",
		SiteURL:   "https://learn.school.test/",
		Sessions:  inmemstore.NewSessionRepository(),
		Logger:    authtest.NewLogger(),
		Transport: mock,
	})
	p := factory.New("browser-1")
	defer func() { _ = p.Close() }()

	require.NoError(t, p.ResetPassword(context.Background(), "ada@school.test"))
	assert.Equal(t, "https://learn.school.test/reset-password", redirect)
}

func TestProvider_contextDone(t *testing.T) {
	fx := newFixture(t)
	fx.mock.RegisterResponder(http.MethodPost, baseURL+"/auth/v1/recover",
		httpmock.NewStringResponder(200, "{}").Delay(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := fx.provider(t, "browser-1").ResetPassword(ctx, "ada@school.test")
	assert.True(t, auth.IsNetwork(err))
}
