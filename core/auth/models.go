package auth

import (
	"strings"
	"time"
)

// Roles
const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

var Roles = []Role{RoleStudent, RoleTeacher}

type Role string

func (r Role) IsValid() bool {
	return r == RoleTeacher || r == RoleStudent
}

func (r Role) String() string { return string(r) }

// Title is the role name as displayed to users.
func (r Role) Title() string {
	switch r {
	case RoleTeacher:
		return "Teacher"
	case RoleStudent:
		return "Student"
	}
	return ""
}

// Identity is the principal authenticated by the identity provider.
type Identity struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	EmailConfirmedAt *time.Time             `json:"email_confirmed_at,omitempty"`
	Metadata         map[string]interface{} `json:"user_metadata,omitempty"`
}

func (i Identity) IsVerified() bool {
	return i.EmailConfirmedAt != nil && !i.EmailConfirmedAt.IsZero()
}

// DisplayName returns the full name given at sign-up, falling back on the email's local part.
func (i Identity) DisplayName() string {
	if name, ok := i.Metadata["full_name"].(string); ok && strings.TrimSpace(name) != "" {
		return name
	}
	if at := strings.IndexByte(i.Email, '@'); at > 0 {
		return i.Email[:at]
	}
	return i.Email
}

// Session is the token bundle proving Identity is currently signed in.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     Identity  `json:"user"`
}

// ExpiresWithin reports whether the access token expires before now+d.
func (s Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(s.ExpiresAt)
}

// Profile is the application record attached to an Identity (same ID).
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// State is a point-in-time copy of a Store.
type State struct {
	Identity       *Identity `json:"identity"`
	Session        *Session  `json:"-"`
	Profile        *Profile  `json:"profile"`
	SessionLoading bool      `json:"session_loading"`
	ProfileLoading bool      `json:"profile_loading"`
}

func (s State) Loading() bool {
	return s.SessionLoading || s.ProfileLoading
}

// IsVerified reports whether an identity is present with a confirmed email.
func (s State) IsVerified() bool {
	return s.Identity != nil && s.Identity.IsVerified()
}

func (s State) clone() State {
	c := s
	if s.Identity != nil {
		id := cloneIdentity(*s.Identity)
		c.Identity = &id
	}
	if s.Session != nil {
		sess := *s.Session
		sess.Identity = cloneIdentity(sess.Identity)
		c.Session = &sess
	}
	if s.Profile != nil {
		p := *s.Profile
		c.Profile = &p
	}
	return c
}

func cloneIdentity(i Identity) Identity {
	if i.EmailConfirmedAt != nil {
		t := *i.EmailConfirmedAt
		i.EmailConfirmedAt = &t
	}
	if i.Metadata != nil {
		md := make(map[string]interface{}, len(i.Metadata))
		for k, v := range i.Metadata {
			md[k] = v
		}
		i.Metadata = md
	}
	return i
}

// EventKind
const (
	EventInitialSession EventKind = "INITIAL_SESSION"
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

type EventKind string

// Event is a session change notified by the identity provider.
// Session is nil for EventSignedOut.
type Event struct {
	Kind    EventKind
	Session *Session
}
