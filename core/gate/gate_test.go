package gate

import (
	"testing"
	"time"

	"github.com/trezcool/academia/core/auth"
)

var (
	confirmedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	verified    = &auth.Identity{ID: "1", Email: "t@school.test", EmailConfirmedAt: &confirmedAt}
	unverified  = &auth.Identity{ID: "2", Email: "s@school.test"}
	teacher     = &auth.Profile{ID: "1", Name: "T", Role: auth.RoleTeacher}
	student     = &auth.Profile{ID: "1", Name: "S", Role: auth.RoleStudent}
	admin       = &auth.Profile{ID: "1", Name: "A", Role: "admin"}
)

func TestProtected(t *testing.T) {
	tests := []struct {
		name string
		st   auth.State
		role auth.Role
		want Decision
	}{
		{name: "session loading", st: auth.State{SessionLoading: true}, want: Decision{Kind: Loading}},
		{name: "profile loading", st: auth.State{Identity: verified, ProfileLoading: true}, want: Decision{Kind: Loading}},
		{name: "signed out", st: auth.State{}, want: redirect(LoginPath)},
		{name: "signed out (role)", st: auth.State{}, role: auth.RoleTeacher, want: redirect(LoginPath)},
		{name: "unverified", st: auth.State{Identity: unverified}, want: Decision{Kind: VerifyEmail}},
		{name: "unverified (role)", st: auth.State{Identity: unverified}, role: auth.RoleTeacher, want: Decision{Kind: VerifyEmail}},
		{name: "unverified (profile)", st: auth.State{Identity: unverified, Profile: student}, role: auth.RoleTeacher, want: Decision{Kind: VerifyEmail}},
		{name: "no profile", st: auth.State{Identity: verified}, want: Decision{Kind: ProfileSetup}},
		{name: "no profile (role)", st: auth.State{Identity: verified}, role: auth.RoleStudent, want: Decision{Kind: ProfileSetup}},
		{name: "any role", st: auth.State{Identity: verified, Profile: student}, want: Decision{Kind: Render}},
		{name: "invalid role", st: auth.State{Identity: verified, Profile: admin}, role: auth.RoleStudent, want: Decision{Kind: InvalidRole}},
		{name: "role match", st: auth.State{Identity: verified, Profile: teacher}, role: auth.RoleTeacher, want: Decision{Kind: Render}},
		{
			name: "student on teacher page", st: auth.State{Identity: verified, Profile: student}, role: auth.RoleTeacher,
			want: redirect(StudentDashboardPath),
		},
		{
			name: "teacher on student page", st: auth.State{Identity: verified, Profile: teacher}, role: auth.RoleStudent,
			want: redirect(TeacherDashboardPath),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Protected(tt.st, tt.role); got != tt.want {
				t.Errorf("Protected() = %+v; want %+v", got, tt.want)
			}
		})
	}
}

func TestPublic(t *testing.T) {
	tests := []struct {
		name string
		st   auth.State
		want Decision
	}{
		{name: "session loading", st: auth.State{SessionLoading: true}, want: Decision{Kind: Loading}},
		{name: "profile loading", st: auth.State{Identity: verified, ProfileLoading: true}, want: Decision{Kind: Loading}},
		{name: "signed out", st: auth.State{}, want: Decision{Kind: Render}},
		{name: "unverified", st: auth.State{Identity: unverified}, want: Decision{Kind: Render}},
		{name: "unverified (profile)", st: auth.State{Identity: unverified, Profile: teacher}, want: Decision{Kind: Render}},
		{name: "no profile", st: auth.State{Identity: verified}, want: Decision{Kind: Render}},
		{name: "teacher", st: auth.State{Identity: verified, Profile: teacher}, want: redirect(TeacherDashboardPath)},
		{name: "student", st: auth.State{Identity: verified, Profile: student}, want: redirect(StudentDashboardPath)},
		{name: "invalid role", st: auth.State{Identity: verified, Profile: admin}, want: Decision{Kind: Render}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Public(tt.st); got != tt.want {
				t.Errorf("Public() = %+v; want %+v", got, tt.want)
			}
		})
	}
}

func TestRoleHome(t *testing.T) {
	tests := []struct {
		name string
		st   auth.State
		want Decision
	}{
		{name: "signed out", st: auth.State{}, want: redirect(LoginPath)},
		{name: "teacher", st: auth.State{Identity: verified, Profile: teacher}, want: redirect(TeacherDashboardPath)},
		{name: "student", st: auth.State{Identity: verified, Profile: student}, want: redirect(StudentDashboardPath)},
		{name: "no profile", st: auth.State{Identity: verified}, want: Decision{Kind: ProfileSetup}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleHome(tt.st); got != tt.want {
				t.Errorf("RoleHome() = %+v; want %+v", got, tt.want)
			}
		})
	}
}
