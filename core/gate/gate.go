// Package gate decides what a page shows given the auth state of the visitor.
package gate

import "github.com/trezcool/academia/core/auth"

const (
	LoginPath            = "/login"
	TeacherDashboardPath = "/teacher-dashboard"
	StudentDashboardPath = "/student-dashboard"
)

// Kind of decision
const (
	Render Kind = iota
	Loading
	VerifyEmail
	ProfileSetup
	InvalidRole
	Redirect
)

type Kind int

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case VerifyEmail:
		return "verify-email"
	case ProfileSetup:
		return "profile-setup"
	case InvalidRole:
		return "invalid-role"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Decision tells a page what to do. Location is set for Redirect only.
type Decision struct {
	Kind     Kind
	Location string
}

func redirect(location string) Decision {
	return Decision{Kind: Redirect, Location: location}
}

// DashboardPath returns the home page of role.
func DashboardPath(role auth.Role) string {
	if role == auth.RoleTeacher {
		return TeacherDashboardPath
	}
	return StudentDashboardPath
}

// Protected guards a page that needs a verified identity with a profile.
// An empty requiredRole admits any role.
func Protected(st auth.State, requiredRole auth.Role) Decision {
	switch {
	case st.Loading():
		return Decision{Kind: Loading}
	case st.Identity == nil:
		return redirect(LoginPath)
	case !st.Identity.IsVerified():
		return Decision{Kind: VerifyEmail}
	case st.Profile == nil:
		return Decision{Kind: ProfileSetup}
	case !st.Profile.Role.IsValid():
		return Decision{Kind: InvalidRole}
	case requiredRole != "" && st.Profile.Role != requiredRole:
		return redirect(DashboardPath(st.Profile.Role))
	}
	return Decision{Kind: Render}
}

// Public guards a page meant for visitors, such as the login form.
// Signed in users with a profile are sent to their dashboard.
func Public(st auth.State) Decision {
	switch {
	case st.SessionLoading, st.Identity != nil && st.ProfileLoading:
		return Decision{Kind: Loading}
	case st.IsVerified() && st.Profile != nil && st.Profile.Role.IsValid():
		return redirect(DashboardPath(st.Profile.Role))
	}
	return Decision{Kind: Render}
}

// RoleHome resolves the generic dashboard to the role dashboard of the signed in user.
func RoleHome(st auth.State) Decision {
	d := Protected(st, "")
	if d.Kind != Render {
		return d
	}
	return redirect(DashboardPath(st.Profile.Role))
}
