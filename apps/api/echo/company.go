package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core/company"
)

var companyOrderings = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

type companyApi struct {
	svc      company.Service
	validate *validator.Validate
}

func registerCompanyAPI(g *echo.Group, svc company.Service, validate *validator.Validate) {
	api := companyApi{svc: svc, validate: validate}

	g.GET("", api.query, superAdminMiddleware)
	g.POST("", api.create, superAdminMiddleware)

	dg := g.Group("/:id", api.companyMiddleware, adminMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, superAdminMiddleware)
}

func (api *companyApi) query(ctx echo.Context) error {
	filter := new(company.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []company.Company{})
	}
	filter.Clean()

	companies, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx, companyOrderings))
	if err != nil {
		return errors.Wrap(err, "querying companies")
	}
	if companies == nil {
		companies = []company.Company{}
	}
	return ctx.JSON(http.StatusOK, companies)
}

func (api *companyApi) create(ctx echo.Context) error {
	var data company.NewCompany
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating company")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *companyApi) retrieve(ctx echo.Context) error {
	c, err := contextObject[company.Company](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *companyApi) update(ctx echo.Context) error {
	c, err := contextObject[company.Company](ctx)
	if err != nil {
		return err
	}
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data company.UpdateCompany
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	// a company admin cannot (de)activate their own company
	if data.IsActive != nil && !actor.IsSuperAdmin() {
		return errHttpForbidden
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err = api.svc.Update(ctx.Request().Context(), c, data)
	if err != nil {
		return errors.Wrap(err, "updating company")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *companyApi) destroy(ctx echo.Context) error {
	c, err := contextObject[company.Company](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), c.ID); err != nil {
		return errors.Wrap(err, "deleting company")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// companyMiddleware sets the `:id` company as context object if the actor belongs to it.
func (api *companyApi) companyMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		id := ctx.Param("id")
		if !actor.BelongsTo(id) {
			return errHttpNotFound
		}
		c, err := api.svc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding company by ID")
		}
		ctx.Set(contextObjKey, c)
		return next(ctx)
	}
}
