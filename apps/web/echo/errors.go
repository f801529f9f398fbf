package echoweb

import (
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
)

var errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")

// authErrorStatus returns the HTTP status of an error returned by a Store operation.
func authErrorStatus(err error) int {
	switch origErr := errors.Cause(err).(type) {
	case *auth.DemoModeError:
		return origErr.Status()
	case *auth.ProviderError:
		if origErr.Status >= 400 && origErr.Status < 500 {
			return origErr.Status
		}
		return http.StatusBadRequest
	case *auth.NetworkError:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
// Pages get an HTML error page, /api paths a JSON body.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, appName string, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if flds, ok := core.FieldErrors(err, translator); ok {
			code = http.StatusBadRequest
			message = flds
			if origErr, ok := errors.Cause(err).(*core.ValidationError); ok && len(origErr.Fields) == 0 {
				message = origErr.Error()
			}
		} else {
			switch origErr := errors.Cause(err).(type) {
			case *echo.HTTPError:
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case *auth.DemoModeError, *auth.ProviderError, *auth.NetworkError:
				code = authErrorStatus(origErr)
				message = auth.UserMessage(origErr)
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				args := []interface{}{errors.Wrap(err, msg)}
				if store := getContextStore(ctx); store != nil {
					if st := store.Snapshot(); st.Identity != nil {
						args = append(args, *st.Identity)
					}
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}

		// Send response
		if ctx.Response().Committed {
			return
		}
		switch {
		case ctx.Request().Method == http.MethodHead: // Issue #608
			err = ctx.NoContent(code)
		case strings.HasPrefix(ctx.Request().URL.Path, "/api/"):
			if m, ok := message.(string); ok {
				message = echo.Map{"error": m}
			}
			err = ctx.JSON(code, message)
		default:
			err = ctx.Render(code, "error", page{
				AppName: appName,
				Title:   http.StatusText(code),
				Path:    ctx.Request().URL.Path,
				Data:    errorText(message),
			})
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

func errorText(message interface{}) string {
	switch m := message.(type) {
	case string:
		return m
	case map[string]string:
		parts := make([]string, 0, len(m))
		for fld, msg := range m {
			parts = append(parts, fld+": "+msg)
		}
		return strings.Join(parts, "; ")
	}
	return http.StatusText(http.StatusInternalServerError)
}
