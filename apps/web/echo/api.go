package echoweb

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/gate"
)

type (
	decisionResponse struct {
		Kind     string `json:"kind"`
		Location string `json:"location,omitempty"`
	}

	sessionResponse struct {
		Demo  bool             `json:"demo"`
		State auth.State       `json:"state"`
		Home  decisionResponse `json:"home"`
	}
)

func registerAPI(g *echo.Group, deps ServerDeps) {
	g.GET("/session", getSession(deps))
}

// getSession returns the auth state of the browser session.
// With ?wait=true it waits until the session is done loading.
func getSession(deps ServerDeps) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		store := getContextStore(ctx)

		st := store.Snapshot()
		if w := ctx.QueryParam("wait"); w != "" {
			wait, err := strconv.ParseBool(w)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid wait flag").SetInternal(errors.Wrap(err, "parsing wait"))
			}
			if wait {
				st = settledState(ctx, deps.Conf.Server.SettleTimeout)
			}
		}

		d := gate.RoleHome(st)
		return ctx.JSON(http.StatusOK, sessionResponse{
			Demo:  store.IsDemo(),
			State: st,
			Home:  decisionResponse{Kind: d.Kind.String(), Location: d.Location},
		})
	}
}
