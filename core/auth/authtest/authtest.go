// Package authtest provides in-memory auth collaborators for tests.
package authtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/academia/core/auth"
)

// Provider is a scriptable auth.Provider. Sign in succeeds for the accounts added with AddAccount.
type Provider struct {
	*auth.Hub

	mu       sync.Mutex
	accounts map[string]account // by email
	current  *auth.Session
	calls    map[string]int

	// SessionErr is returned by Session; SignOutErr by SignOut.
	SessionErr error
	SignOutErr error
	SignUpErr  error
	ResetErr   error
}

type account struct {
	password string
	identity auth.Identity
}

var _ auth.Provider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{
		Hub:      auth.NewHub(),
		accounts: make(map[string]account),
		calls:    make(map[string]int),
	}
}

// Identity returns an identity, verified unless verified is false.
func Identity(id, email string, verified bool) auth.Identity {
	ident := auth.Identity{ID: id, Email: email}
	if verified {
		at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		ident.EmailConfirmedAt = &at
	}
	return ident
}

// NewSession returns a session for identity that expires in an hour.
func NewSession(identity auth.Identity) *auth.Session {
	return &auth.Session{
		AccessToken:  "access-" + identity.ID,
		RefreshToken: "refresh-" + identity.ID,
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
		Identity:     identity,
	}
}

func (p *Provider) AddAccount(identity auth.Identity, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[identity.Email] = account{password: password, identity: identity}
}

// SetSession sets the session returned by the initial session check.
func (p *Provider) SetSession(sess *auth.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = sess
}

// Calls returns how many times the named method was called.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// TotalCalls returns the number of calls to every method but Subscribe.
func (p *Provider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *Provider) called(method string) {
	p.mu.Lock()
	p.calls[method]++
	p.mu.Unlock()
}

func (p *Provider) SignUp(_ context.Context, acc auth.NewAccount) error {
	p.called("SignUp")
	if p.SignUpErr != nil {
		return p.SignUpErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.accounts[acc.Email]; exists {
		return &auth.ProviderError{Status: 422, Code: "user_already_exists", Message: "User already registered"}
	}
	id := fmt.Sprintf("user-%d", len(p.accounts)+1)
	identity := Identity(id, acc.Email, false)
	identity.Metadata = map[string]interface{}{"full_name": acc.Name, "role": string(acc.Role)}
	p.accounts[acc.Email] = account{password: acc.Password, identity: identity}
	return nil
}

func (p *Provider) SignIn(_ context.Context, email, password string) error {
	p.called("SignIn")

	p.mu.Lock()
	acc, ok := p.accounts[email]
	if !ok || acc.password != password {
		p.mu.Unlock()
		return &auth.ProviderError{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}
	}
	if !acc.identity.IsVerified() {
		p.mu.Unlock()
		return &auth.ProviderError{Status: 400, Code: "email_not_confirmed", Message: "Email not confirmed"}
	}
	sess := NewSession(acc.identity)
	p.current = sess
	p.mu.Unlock()

	p.Emit(auth.Event{Kind: auth.EventSignedIn, Session: sess})
	return nil
}

func (p *Provider) SignOut(_ context.Context) error {
	p.called("SignOut")

	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	p.Emit(auth.Event{Kind: auth.EventSignedOut})
	return p.SignOutErr
}

func (p *Provider) ResetPassword(_ context.Context, _ string) error {
	p.called("ResetPassword")
	return p.ResetErr
}

func (p *Provider) Refresh(_ context.Context) error {
	p.called("Refresh")

	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return &auth.ProviderError{Status: 401, Message: "Auth session missing!"}
	}
	sess := *p.current
	if acc, ok := p.accounts[sess.Identity.Email]; ok {
		sess.Identity = acc.identity
	}
	sess.ExpiresAt = time.Now().Add(time.Hour)
	p.current = &sess
	p.mu.Unlock()

	p.Emit(auth.Event{Kind: auth.EventTokenRefreshed, Session: &sess})
	return nil
}

// Verify confirms the email of the account.
func (p *Provider) Verify(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if acc, ok := p.accounts[email]; ok {
		verified := Identity(acc.identity.ID, acc.identity.Email, true)
		verified.Metadata = acc.identity.Metadata
		acc.identity = verified
		p.accounts[email] = acc
	}
}

func (p *Provider) Session(_ context.Context) (*auth.Session, error) {
	p.called("Session")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SessionErr != nil {
		return nil, p.SessionErr
	}
	if p.current == nil {
		return nil, nil
	}
	sess := *p.current
	return &sess, nil
}

// Profiles is an auth.ProfileRepository whose lookups can be held until released.
type Profiles struct {
	mu       sync.Mutex
	profiles map[string]auth.Profile
	errs     map[string]error
	gates    map[string]chan struct{}
	tokens   []string
	calls    int
}

var _ auth.ProfileRepository = (*Profiles)(nil)

func NewProfiles(profiles ...auth.Profile) *Profiles {
	repo := &Profiles{
		profiles: make(map[string]auth.Profile),
		errs:     make(map[string]error),
		gates:    make(map[string]chan struct{}),
	}
	for _, p := range profiles {
		repo.profiles[p.ID] = p
	}
	return repo
}

// Profile returns a profile for identity with the given role.
func Profile(identity auth.Identity, name string, role auth.Role) auth.Profile {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return auth.Profile{ID: identity.ID, Name: name, Email: identity.Email, Role: role, CreatedAt: now, UpdatedAt: now}
}

func (r *Profiles) Put(p auth.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
}

// Fail makes lookups of id return err.
func (r *Profiles) Fail(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[id] = err
}

// Hold blocks lookups of id until the returned release func is called.
func (r *Profiles) Hold(id string) (release func()) {
	gate := make(chan struct{})
	r.mu.Lock()
	r.gates[id] = gate
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if r.gates[id] == gate {
				delete(r.gates, id)
			}
			r.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns the number of lookups.
func (r *Profiles) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Tokens returns the access tokens seen by lookups.
func (r *Profiles) Tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...)
}

// GetProfile ignores ctx cancellation while held, like a slow backend would.
func (r *Profiles) GetProfile(ctx context.Context, id string) (auth.Profile, error) {
	r.mu.Lock()
	r.calls++
	token, _ := auth.AccessTokenFromContext(ctx)
	r.tokens = append(r.tokens, token)
	gate := r.gates[id]
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[id]; err != nil {
		return auth.Profile{}, err
	}
	p, ok := r.profiles[id]
	if !ok {
		return auth.Profile{}, auth.ErrProfileNotFound
	}
	return p, nil
}

// Logger records messages by level.
type Logger struct {
	mu       sync.Mutex
	Messages map[string][]string
}

func NewLogger() *Logger {
	return &Logger{Messages: make(map[string][]string)}
}

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages[level] = append(l.Messages[level], msg)
}

// Logged returns the messages logged at level.
func (l *Logger) Logged(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Messages[level]...)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("fatal", msg) }
