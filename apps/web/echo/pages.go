package echoweb

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/gate"
)

const (
	msgRegistered   = "Registration successful! Please check your email for verification."
	msgResetSent    = "Password reset email sent! Check your inbox for the reset link."
	defaultNextPath = "/dashboard"
)

type pages struct {
	deps ServerDeps
}

func registerPages(g *echo.Group, deps ServerDeps) {
	p := &pages{deps: deps}

	g.GET("/", p.landing)

	// visitors only
	g.GET("/login", p.loginForm, p.publicMiddleware)
	g.POST("/login", p.login, p.publicMiddleware)
	g.GET("/register", p.registerForm, p.publicMiddleware)
	g.POST("/register", p.register, p.publicMiddleware)
	g.GET("/password-reset", p.passwordResetForm, p.publicMiddleware)
	g.POST("/password-reset", p.passwordReset, p.publicMiddleware)

	g.POST("/logout", p.logout)
	g.POST("/profile/refresh", p.refreshProfile)
	g.POST("/session/reload", p.reloadSession)

	// signed in users only
	g.GET("/dashboard", p.dashboard, p.protectedMiddleware(""))
	g.GET(gate.TeacherDashboardPath, p.teacherDashboard, p.protectedMiddleware(auth.RoleTeacher))
	g.GET(gate.StudentDashboardPath, p.studentDashboard, p.protectedMiddleware(auth.RoleStudent))
}

func (p *pages) newPage(ctx echo.Context, title string, st auth.State) page {
	return page{
		AppName:  p.deps.Conf.AppName,
		Title:    title,
		Path:     ctx.Request().URL.Path,
		Demo:     getContextStore(ctx).IsDemo(),
		Identity: st.Identity,
		Profile:  st.Profile,
		Fields:   map[string]string{},
	}
}

func (p *pages) render(ctx echo.Context, code int, name, title string, st auth.State, data interface{}) error {
	pg := p.newPage(ctx, title, st)
	pg.Data = data
	return ctx.Render(code, name, pg)
}

// renderForm renders a form page with the outcome of its submission: a field/auth error or a success message.
func (p *pages) renderForm(ctx echo.Context, name, title string, form interface{}, err error, success string) error {
	pg := p.newPage(ctx, title, getContextState(ctx))
	pg.Form = form
	pg.Success = success

	code := http.StatusOK
	if err != nil {
		if flds, ok := core.FieldErrors(err, p.deps.Translator); ok {
			code = http.StatusBadRequest
			pg.Fields = flds
			if vErr, ok := errors.Cause(err).(*core.ValidationError); ok && len(vErr.Fields) == 0 {
				pg.Error = vErr.Error()
			}
		} else {
			code = authErrorStatus(err)
			pg.Error = auth.UserMessage(err)
			if code == http.StatusInternalServerError {
				p.deps.Logger.Error(name+": unexpected error", errors.Wrap(err, name))
			}
		}
	}
	return ctx.Render(code, name, pg)
}

func (p *pages) landing(ctx echo.Context) error {
	return p.render(ctx, http.StatusOK, "landing", "", getContextStore(ctx).Snapshot(), nil)
}

// Sign in

func (p *pages) loginForm(ctx echo.Context) error {
	return p.renderForm(ctx, "login", "Sign In", auth.Credentials{}, nil, "")
}

func (p *pages) login(ctx echo.Context) error {
	var data auth.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := data.Validate(p.deps.Validate); err != nil {
		return p.renderForm(ctx, "login", "Sign In", data, err, "")
	}

	if err := getContextStore(ctx).SignIn(ctx.Request().Context(), data.Email, data.Password); err != nil {
		data.Password = ""
		return p.renderForm(ctx, "login", "Sign In", data, err, "")
	}
	// the dashboard gate shows what comes next: loading, email verification or the role dashboard
	return ctx.Redirect(http.StatusSeeOther, defaultNextPath)
}

// Sign up

func (p *pages) registerForm(ctx echo.Context) error {
	return p.renderForm(ctx, "register", "Create Account", auth.NewAccount{Role: auth.RoleStudent}, nil, "")
}

func (p *pages) register(ctx echo.Context) error {
	var data auth.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	err := data.Validate(p.deps.Validate)
	if err == nil {
		err = getContextStore(ctx).SignUp(ctx.Request().Context(), data)
	}
	data.Password, data.PasswordConfirm = "", ""
	if err != nil {
		return p.renderForm(ctx, "register", "Create Account", data, err, "")
	}
	return p.renderForm(ctx, "register", "Create Account", data, nil, msgRegistered)
}

// Password reset

func (p *pages) passwordResetForm(ctx echo.Context) error {
	return p.renderForm(ctx, "password-reset", "Reset Password", auth.PasswordResetRequest{}, nil, "")
}

func (p *pages) passwordReset(ctx echo.Context) error {
	var data auth.PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	err := data.Validate(p.deps.Validate)
	if err == nil {
		err = getContextStore(ctx).ResetPassword(ctx.Request().Context(), data.Email)
	}
	if err != nil {
		return p.renderForm(ctx, "password-reset", "Reset Password", data, err, "")
	}
	return p.renderForm(ctx, "password-reset", "Reset Password", data, nil, msgResetSent)
}

// Session

func (p *pages) logout(ctx echo.Context) error {
	store := getContextStore(ctx)
	identity := store.Snapshot().Identity
	if err := store.SignOut(ctx.Request().Context()); err != nil {
		args := []interface{}{errors.Wrap(err, "signing out")}
		if identity != nil {
			args = append(args, *identity)
		}
		p.deps.Logger.Warn("sign out failed", args...)
	}
	awaitSignedOut(ctx.Request().Context(), store, p.deps.Conf.Server.SettleTimeout)
	return ctx.Redirect(http.StatusSeeOther, gate.LoginPath)
}

// awaitSignedOut waits, for at most timeout, for the provider's SIGNED_OUT event
// so that the next page does not see the old identity.
func awaitSignedOut(ctx context.Context, store *auth.Store, timeout time.Duration) {
	if store.IsDemo() {
		return
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		changed := store.Changed()
		if store.Snapshot().Identity == nil {
			return
		}
		select {
		case <-changed:
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *pages) refreshProfile(ctx echo.Context) error {
	if err := getContextStore(ctx).RefreshProfile(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "refreshing profile")
	}
	return ctx.Redirect(http.StatusSeeOther, nextPath(ctx))
}

// reloadSession re-reads the identity, e.g. once the email is verified.
func (p *pages) reloadSession(ctx echo.Context) error {
	if err := getContextStore(ctx).Reload(ctx.Request().Context()); err != nil {
		if auth.IsNetwork(err) {
			return err
		}
		// a rejected refresh signs out: the gate sends the visitor to the login page
		p.deps.Logger.Info("session reload rejected", errors.Wrap(err, "reloading session"))
	}
	return ctx.Redirect(http.StatusSeeOther, nextPath(ctx))
}

// nextPath returns the local path to go back to after a POST.
func nextPath(ctx echo.Context) string {
	next := ctx.FormValue("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return defaultNextPath
	}
	return next
}

// Dashboards

func (p *pages) dashboard(ctx echo.Context) error {
	st := getContextState(ctx)
	return p.decide(ctx, gate.RoleHome(st), st)
}

func (p *pages) teacherDashboard(ctx echo.Context) error {
	st := getContextState(ctx)
	data, err := p.deps.Courses.TeacherDashboard(accessContext(ctx, st), *st.Profile)
	if err != nil {
		return errors.Wrap(err, "loading teacher dashboard")
	}
	return p.render(ctx, http.StatusOK, "teacher-dashboard", "Teacher Dashboard", st, data)
}

func (p *pages) studentDashboard(ctx echo.Context) error {
	st := getContextState(ctx)
	data, err := p.deps.Courses.StudentDashboard(accessContext(ctx, st), *st.Profile)
	if err != nil {
		return errors.Wrap(err, "loading student dashboard")
	}
	return p.render(ctx, http.StatusOK, "student-dashboard", "Student Dashboard", st, data)
}
