package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/checksheet"
	"github.com/thinkquality/thinkquality/core/user"
)

const maxImportBytes = 1 << 20

var checkSheetOrderings = map[string]string{
	"title":      "title",
	"frequency":  "frequency",
	"created_at": "created_at",
}

type checkSheetApi struct {
	svc      checksheet.Service
	validate *validator.Validate
}

func registerCheckSheetAPI(g *echo.Group, svc checksheet.Service, validate *validator.Validate) {
	api := checkSheetApi{svc: svc, validate: validate}

	g.GET("", api.query)
	g.POST("", api.create, adminMiddleware)
	g.POST("/import", api.importYAML, adminMiddleware)
	g.GET("/completions", api.queryCompletions)
	g.GET("/completions/:cid", api.retrieveCompletion)

	dg := g.Group("/:id", api.checkSheetMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware)
	dg.DELETE("", api.destroy, adminMiddleware)
	dg.POST("/completions", api.complete)
}

func (api *checkSheetApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	filter := new(checksheet.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []checksheet.CheckSheet{})
	}
	filter.Search = core.CleanString(filter.Search)

	sheets, err := api.svc.Query(ctx.Request().Context(), actor, filter, bindOrdering(ctx, checkSheetOrderings))
	if err != nil {
		return errors.Wrap(err, "querying check sheets")
	}
	if sheets == nil {
		sheets = []checksheet.CheckSheet{}
	}
	return ctx.JSON(http.StatusOK, sheets)
}

func (api *checkSheetApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data checksheet.NewCheckSheet
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cs, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating check sheet")
	}
	return ctx.JSON(http.StatusCreated, cs)
}

// importYAML creates every check sheet of a YAML import file, see checksheet.ParseYAML.
// Super admins choose the company with `?company_id=`.
func (api *checkSheetApi) importYAML(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	companyID := companyScope(actor, ctx.QueryParam("company_id"))
	if companyID == "" {
		return core.NewFieldError("company_id", "this field is required")
	}

	sheets, err := checksheet.ParseYAML(io.LimitReader(ctx.Request().Body, maxImportBytes), api.validate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	created, err := api.svc.Import(ctx.Request().Context(), companyID, sheets)
	if err != nil {
		return errors.Wrap(err, "importing check sheets")
	}
	return ctx.JSON(http.StatusCreated, created)
}

func (api *checkSheetApi) retrieve(ctx echo.Context) error {
	cs, err := contextObject[checksheet.CheckSheet](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cs)
}

func (api *checkSheetApi) update(ctx echo.Context) error {
	cs, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}

	var data checksheet.UpdateCheckSheet
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cs, err = api.svc.Update(ctx.Request().Context(), actor, cs, data)
	if err != nil {
		return errors.Wrap(err, "updating check sheet")
	}
	return ctx.JSON(http.StatusOK, cs)
}

func (api *checkSheetApi) destroy(ctx echo.Context) error {
	cs, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, cs); err != nil {
		return errors.Wrap(err, "deleting check sheet")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *checkSheetApi) complete(ctx echo.Context) error {
	cs, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}

	var data checksheet.NewCompletion
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	data.JobCardID = core.CleanString(data.JobCardID, true /* lower */)
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	c, err := api.svc.Complete(ctx.Request().Context(), actor, cs, data)
	if err != nil {
		return errors.Wrap(err, "completing check sheet")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *checkSheetApi) queryCompletions(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	filter := new(checksheet.CompletionFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []checksheet.Completion{})
	}

	completions, err := api.svc.QueryCompletions(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying completions")
	}
	if completions == nil {
		completions = []checksheet.Completion{}
	}
	return ctx.JSON(http.StatusOK, completions)
}

func (api *checkSheetApi) retrieveCompletion(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.GetCompletion(ctx.Request().Context(), actor, ctx.Param("cid"))
	if err != nil {
		return errors.Wrap(err, "finding completion by ID")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *checkSheetApi) objectAndActor(ctx echo.Context) (checksheet.CheckSheet, user.User, error) {
	cs, err := contextObject[checksheet.CheckSheet](ctx)
	if err != nil {
		return cs, user.User{}, err
	}
	actor, err := getContextUser(ctx)
	return cs, actor, err
}

func (api *checkSheetApi) checkSheetMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		cs, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding check sheet by ID")
		}
		ctx.Set(contextObjKey, cs)
		return next(ctx)
	}
}
