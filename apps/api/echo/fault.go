package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core/fault"
	"github.com/thinkquality/thinkquality/core/user"
)

var faultOrderings = map[string]string{
	"code":       "code",
	"title":      "title",
	"severity":   "severity",
	"created_at": "created_at",
}

type faultApi struct {
	svc      fault.Service
	validate *validator.Validate
}

func registerFaultAPI(g *echo.Group, svc fault.Service, validate *validator.Validate) {
	api := faultApi{svc: svc, validate: validate}

	// technicians maintain the fault database too, fault.Service checks permissions
	g.GET("", api.query)
	g.POST("", api.create)

	dg := g.Group("/:id", api.faultMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware)
}

func (api *faultApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	filter := new(fault.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []fault.Fault{})
	}
	filter.Clean()

	faults, err := api.svc.Query(ctx.Request().Context(), actor, filter, bindOrdering(ctx, faultOrderings))
	if err != nil {
		return errors.Wrap(err, "querying faults")
	}
	if faults == nil {
		faults = []fault.Fault{}
	}
	return ctx.JSON(http.StatusOK, faults)
}

func (api *faultApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data fault.NewFault
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating fault")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *faultApi) retrieve(ctx echo.Context) error {
	f, err := contextObject[fault.Fault](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *faultApi) update(ctx echo.Context) error {
	f, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}

	var data fault.UpdateFault
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	f, err = api.svc.Update(ctx.Request().Context(), actor, f, data)
	if err != nil {
		return errors.Wrap(err, "updating fault")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *faultApi) destroy(ctx echo.Context) error {
	f, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, f); err != nil {
		return errors.Wrap(err, "deleting fault")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *faultApi) objectAndActor(ctx echo.Context) (fault.Fault, user.User, error) {
	f, err := contextObject[fault.Fault](ctx)
	if err != nil {
		return f, user.User{}, err
	}
	actor, err := getContextUser(ctx)
	return f, actor, err
}

func (api *faultApi) faultMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		f, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding fault by ID")
		}
		ctx.Set(contextObjKey, f)
		return next(ctx)
	}
}
