package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core/dashboard"
)

func dashboardHandler(svc dashboard.Service) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		d, err := svc.Get(ctx.Request().Context(), actor)
		if err != nil {
			return errors.Wrap(err, "building dashboard")
		}
		return ctx.JSON(http.StatusOK, d)
	}
}
