package auth

import (
	"strings"

	"github.com/pkg/errors"
)

const demoModeStatus = 400

var (
	// returned by every authentication operation while the backend is not configured
	ErrDemoAuth          = &DemoModeError{Message: "Demo mode: Please set up Supabase to enable authentication"}
	ErrDemoPasswordReset = &DemoModeError{Message: "Demo mode: Please set up Supabase to enable password reset"}

	// returned by operations that change the session of a closed Store
	ErrStoreClosed = errors.New("auth store closed")

	networkMessage    = "Unable to reach the authentication service. Please check your connection and try again."
	unexpectedMessage = "An unexpected error occurred"

	// provider message -> friendlier text
	friendlyMessages = []struct{ match, text string }{
		{"Email not confirmed", "Please verify your email address before signing in. Check your inbox for the verification link."},
		{"Invalid login credentials", "Invalid email or password. Please check your credentials and try again."},
	}
)

// DemoModeError is a configuration error: the identity provider is not set up.
type DemoModeError struct {
	Message string
}

func (e *DemoModeError) Error() string { return e.Message }
func (e *DemoModeError) Name() string  { return "DemoModeError" }
func (e *DemoModeError) Status() int   { return demoModeStatus }

// ProviderError is a request rejected by the identity provider.
type ProviderError struct {
	Status  int
	Code    string
	Message string
	// Raw is the message as sent by the provider when Message was made friendlier.
	Raw string
}

func (e *ProviderError) Error() string { return e.Message }

// NetworkError is a transport failure while talking to the identity provider.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return "network error"
	}
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// FriendlyMessage maps the provider messages users commonly hit to actionable text.
func FriendlyMessage(msg string) string {
	for _, fm := range friendlyMessages {
		if strings.Contains(msg, fm.match) {
			return fm.text
		}
	}
	return msg
}

// friendly returns err with a friendlier message when it is a known provider rejection.
func friendly(err error) error {
	pErr, ok := errors.Cause(err).(*ProviderError)
	if !ok {
		return err
	}
	msg := FriendlyMessage(pErr.Message)
	if msg == pErr.Message {
		return pErr
	}
	raw := pErr.Raw
	if raw == "" {
		raw = pErr.Message
	}
	return &ProviderError{Status: pErr.Status, Code: pErr.Code, Message: msg, Raw: raw}
}

// UserMessage returns the text to display for an error returned by a Store operation.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch origErr := errors.Cause(err).(type) {
	case *DemoModeError:
		return origErr.Message
	case *ProviderError:
		return origErr.Message
	case *NetworkError:
		return networkMessage
	}
	return unexpectedMessage
}

func IsDemoMode(err error) bool {
	_, ok := errors.Cause(err).(*DemoModeError)
	return ok
}

func IsRejected(err error) bool {
	_, ok := errors.Cause(err).(*ProviderError)
	return ok
}

func IsNetwork(err error) bool {
	_, ok := errors.Cause(err).(*NetworkError)
	return ok
}
