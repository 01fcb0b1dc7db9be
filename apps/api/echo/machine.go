package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core/machine"
)

const maxQRSize = 1024

var machineOrderings = map[string]string{
	"name":          "name",
	"serial_number": "serial_number",
	"location":      "location",
	"created_at":    "created_at",
}

type machineApi struct {
	svc      machine.Service
	validate *validator.Validate
}

func registerMachineAPI(g *echo.Group, svc machine.Service, validate *validator.Validate) {
	api := machineApi{svc: svc, validate: validate}

	g.GET("", api.query)
	g.POST("", api.create, adminMiddleware)

	dg := g.Group("/:id", api.machineMiddleware)
	dg.GET("", api.retrieve)
	dg.GET("/qrcode", api.qrCode)
	dg.PUT("", api.update, adminMiddleware)
	dg.DELETE("", api.destroy, adminMiddleware)
	dg.POST("/qr-token", api.rotateQRToken, adminMiddleware)
}

func (api *machineApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	filter := new(machine.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []machine.Machine{})
	}
	filter.CompanyID = companyScope(actor, filter.CompanyID)

	machines, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx, machineOrderings))
	if err != nil {
		return errors.Wrap(err, "querying machines")
	}
	if machines == nil {
		machines = []machine.Machine{}
	}
	return ctx.JSON(http.StatusOK, machines)
}

func (api *machineApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data machine.NewMachine
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if !actor.IsSuperAdmin() {
		data.CompanyID = actor.CompanyID
	}

	m, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating machine")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *machineApi) retrieve(ctx echo.Context) error {
	m, err := contextObject[machine.Machine](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *machineApi) update(ctx echo.Context) error {
	m, err := contextObject[machine.Machine](ctx)
	if err != nil {
		return err
	}

	var data machine.UpdateMachine
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	m, err = api.svc.Update(ctx.Request().Context(), m, data)
	if err != nil {
		return errors.Wrap(err, "updating machine")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *machineApi) destroy(ctx echo.Context) error {
	m, err := contextObject[machine.Machine](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), m.ID); err != nil {
		return errors.Wrap(err, "deleting machine")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// rotateQRToken invalidates every printed QR code of the machine.
func (api *machineApi) rotateQRToken(ctx echo.Context) error {
	m, err := contextObject[machine.Machine](ctx)
	if err != nil {
		return err
	}
	m, err = api.svc.RotateQRToken(ctx.Request().Context(), m)
	if err != nil {
		return errors.Wrap(err, "rotating qr token")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *machineApi) qrCode(ctx echo.Context) error {
	m, err := contextObject[machine.Machine](ctx)
	if err != nil {
		return err
	}

	size := machine.DefaultQRSize
	if s := ctx.QueryParam("size"); s != "" {
		if size, err = strconv.Atoi(s); err != nil || size <= 0 || size > maxQRSize {
			return echo.NewHTTPError(http.StatusBadRequest, "size must be between 1 and "+strconv.Itoa(maxQRSize))
		}
	}

	png, err := api.svc.QRCode(m, size)
	if err != nil {
		return errors.Wrap(err, "encoding qr code")
	}
	return ctx.Blob(http.StatusOK, "image/png", png)
}

// machineMiddleware sets the `:id` machine as context object if the actor belongs to its company.
func (api *machineApi) machineMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		m, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding machine by ID")
		}
		if !actor.BelongsTo(m.CompanyID) {
			return errHttpNotFound
		}
		ctx.Set(contextObjKey, m)
		return next(ctx)
	}
}
