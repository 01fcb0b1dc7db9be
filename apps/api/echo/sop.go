package echoapi

import (
	"io"
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core/sop"
	"github.com/thinkquality/thinkquality/core/user"
)

const attachmentField = "file"

var sopOrderings = map[string]string{
	"code":       "code",
	"title":      "title",
	"version":    "version",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type sopApi struct {
	svc      sop.Service
	validate *validator.Validate
}

func registerSOPAPI(g *echo.Group, svc sop.Service, validate *validator.Validate) {
	api := sopApi{svc: svc, validate: validate}

	g.GET("", api.query)
	g.POST("", api.create, adminMiddleware)

	dg := g.Group("/:id", api.sopMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware)
	dg.DELETE("", api.destroy, adminMiddleware)
	dg.POST("/status", api.setStatus, adminMiddleware)
	dg.POST("/attachment", api.attach, adminMiddleware)
	dg.GET("/attachment", api.attachment)
}

func (api *sopApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	filter := new(sop.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []sop.SOP{})
	}
	filter.Clean()

	sops, err := api.svc.Query(ctx.Request().Context(), actor, filter, bindOrdering(ctx, sopOrderings))
	if err != nil {
		return errors.Wrap(err, "querying sops")
	}
	if sops == nil {
		sops = []sop.SOP{}
	}
	return ctx.JSON(http.StatusOK, sops)
}

func (api *sopApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data sop.NewSOP
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating sop")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *sopApi) retrieve(ctx echo.Context) error {
	s, err := contextObject[sop.SOP](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sopApi) update(ctx echo.Context) error {
	s, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}

	var data sop.UpdateSOP
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	s, err = api.svc.Update(ctx.Request().Context(), actor, s, data)
	if err != nil {
		return errors.Wrap(err, "updating sop")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sopApi) setStatus(ctx echo.Context) error {
	s, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}

	var data sop.SetStatus
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	s, err = api.svc.SetStatus(ctx.Request().Context(), actor, s, data.Status)
	if err != nil {
		return errors.Wrap(err, "setting sop status")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sopApi) destroy(ctx echo.Context) error {
	s, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, s); err != nil {
		return errors.Wrap(err, "deleting sop")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// attach replaces the SOP document with the multipart `file` upload.
func (api *sopApi) attach(ctx echo.Context) error {
	s, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile(attachmentField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{attachmentField: "this field is required"})
	}
	if fh.Size > sop.MaxAttachmentBytes {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{attachmentField: "file is too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening attachment")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, sop.MaxAttachmentBytes+1))
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}
	ct := fh.Header.Get(echo.HeaderContentType)
	if ct == "" || ct == echo.MIMEOctetStream {
		ct = http.DetectContentType(data)
	}

	s, err = api.svc.Attach(ctx.Request().Context(), actor, s, fh.Filename, ct, data)
	if err != nil {
		return errors.Wrap(err, "attaching document")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sopApi) attachment(ctx echo.Context) error {
	s, err := contextObject[sop.SOP](ctx)
	if err != nil {
		return err
	}
	blob, err := api.svc.Attachment(ctx.Request().Context(), s)
	if err != nil {
		return errors.Wrap(err, "getting attachment")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": s.AttachmentName}))
	return ctx.Blob(http.StatusOK, blob.ContentType, blob.Data)
}

func (api *sopApi) objectAndActor(ctx echo.Context) (sop.SOP, user.User, error) {
	s, err := contextObject[sop.SOP](ctx)
	if err != nil {
		return s, user.User{}, err
	}
	actor, err := getContextUser(ctx)
	return s, actor, err
}

// sopMiddleware sets the `:id` sop as context object if the actor may view it.
func (api *sopApi) sopMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		s, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding sop by ID")
		}
		ctx.Set(contextObjKey, s)
		return next(ctx)
	}
}
