package auth

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestFriendlyMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{
			name: "unconfirmed email", msg: "Email not confirmed",
			want: "Please verify your email address before signing in. Check your inbox for the verification link.",
		},
		{
			name: "invalid credentials", msg: "Invalid login credentials",
			want: "Invalid email or password. Please check your credentials and try again.",
		},
		{name: "other", msg: "User already registered", want: "User already registered"},
		{name: "empty", msg: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FriendlyMessage(tt.msg))
		})
	}
}

func TestUserMessage(t *testing.T) {
	rejected := &ProviderError{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "demo", err: ErrDemoAuth, want: "Demo mode: Please set up Supabase to enable authentication"},
		{name: "demo reset", err: ErrDemoPasswordReset, want: "Demo mode: Please set up Supabase to enable password reset"},
		{name: "rejected (wrapped)", err: errors.Wrap(friendly(rejected), "signing in"), want: FriendlyMessage(rejected.Message)},
		{name: "network", err: &NetworkError{Err: context.DeadlineExceeded}, want: networkMessage},
		{name: "unknown", err: errors.New("boom"), want: unexpectedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func Test_friendly(t *testing.T) {
	rejected := &ProviderError{Status: 400, Code: "email_not_confirmed", Message: "Email not confirmed"}
	err := friendly(rejected)

	pErr, ok := err.(*ProviderError)
	if assert.True(t, ok) {
		assert.Equal(t, 400, pErr.Status)
		assert.Equal(t, "email_not_confirmed", pErr.Code)
		assert.Equal(t, "Email not confirmed", pErr.Raw)
		assert.Contains(t, pErr.Message, "Please verify your email address")
	}
	assert.Equal(t, "Email not confirmed", rejected.Message, "original error must be left untouched")

	netErr := &NetworkError{Err: context.Canceled}
	assert.Same(t, netErr, friendly(netErr))
	assert.Nil(t, friendly(nil))
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, IsDemoMode(ErrDemoAuth))
	assert.Equal(t, "DemoModeError", ErrDemoAuth.Name())
	assert.Equal(t, 400, ErrDemoAuth.Status())
	assert.True(t, IsRejected(errors.Wrap(&ProviderError{Message: "nope"}, "signing up")))
	assert.True(t, IsNetwork(&NetworkError{}))
	assert.False(t, IsNetwork(ErrDemoAuth))
	assert.False(t, IsRejected(nil))
}
