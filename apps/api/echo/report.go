package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/report"
)

const formatCSV = "csv"

func registerReportAPI(g *echo.Group, svc report.Service) {
	g.Use(adminMiddleware)

	g.GET("", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, report.Names)
	})

	// `?format=csv` downloads the report instead.
	g.GET("/:name", func(ctx echo.Context) error {
		actor, err := getContextUser(ctx)
		if err != nil {
			return err
		}

		var filter report.Filter
		if err = ctx.Bind(&filter); err != nil {
			return core.NewValidationError(err)
		}

		rep, err := svc.Run(ctx.Request().Context(), actor, ctx.Param("name"), filter)
		if err != nil {
			return errors.Wrap(err, "running report")
		}

		if ctx.QueryParam("format") != formatCSV {
			return ctx.JSON(http.StatusOK, rep)
		}
		var buf bytes.Buffer
		if err = report.WriteCSV(&buf, rep); err != nil {
			return err
		}
		ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", rep.Name+".csv"))
		return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	})
}
