package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core/machine"
)

// registerPortalAPI serves the public machine pages behind printed QR codes. No auth.
func registerPortalAPI(g *echo.Group, svc machine.Service) {
	g.GET("/:token", func(ctx echo.Context) error {
		p, err := svc.Portal(ctx.Request().Context(), ctx.Param("token"))
		if err != nil {
			return errors.Wrap(err, "loading machine portal")
		}
		return ctx.JSON(http.StatusOK, p)
	})
}
