package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/user"
)

var jobCardOrderings = map[string]string{
	"number":     "number",
	"title":      "title",
	"status":     "status",
	"priority":   "priority",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"due_date":   "due_date",
}

type jobCardApi struct {
	svc      jobcard.Service
	timer    jobcard.TimeTracker
	signOff  jobcard.SignOffWorkflow
	validate *validator.Validate
}

type (
	// TimerResponse is returned by every timer action.
	TimerResponse struct {
		Entry   jobcard.TimeEntry `json:"entry"`
		JobCard jobcard.JobCard   `json:"job_card"`
	}

	SignResponse struct {
		Signature jobcard.Signature `json:"signature"`
		JobCard   jobcard.JobCard   `json:"job_card"`
	}
)

func registerJobCardAPI(g *echo.Group, deps *Deps, validate *validator.Validate) {
	api := jobCardApi{
		svc:      deps.JobCardSvc,
		timer:    deps.TimeTracker,
		signOff:  deps.SignOff,
		validate: validate,
	}

	g.GET("", api.query)
	g.POST("", api.create) // admins, and customers reporting a breakdown

	dg := g.Group("/:id", api.jobCardMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/assign", api.assign)
	dg.POST("/transition", api.transition)

	// time tracking
	dg.GET("/time", api.timeSummary)
	dg.POST("/timer/start", api.startTimer)
	dg.POST("/timer/pause", api.pauseTimer)
	dg.POST("/timer/resume", api.resumeTimer)
	dg.POST("/timer/stop", api.stopTimer)

	// sign-off
	dg.GET("/signoff", api.signOffStatus)
	dg.POST("/signoff", api.sign)
	dg.GET("/signoff/:step/signature", api.signatureImage)
}

func (api *jobCardApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	filter := new(jobcard.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []jobcard.JobCard{})
	}
	filter.Clean()

	jcs, err := api.svc.Query(ctx.Request().Context(), actor, filter, bindOrdering(ctx, jobCardOrderings))
	if err != nil {
		return errors.Wrap(err, "querying job cards")
	}
	if jcs == nil {
		jcs = []jobcard.JobCard{}
	}
	return ctx.JSON(http.StatusOK, jcs)
}

func (api *jobCardApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data jobcard.NewJobCard
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	jc, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating job card")
	}
	return ctx.JSON(http.StatusCreated, jc)
}

func (api *jobCardApi) retrieve(ctx echo.Context) error {
	jc, err := contextObject[jobcard.JobCard](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, jc)
}

func (api *jobCardApi) update(ctx echo.Context) error {
	jc, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}

	var data jobcard.UpdateJobCard
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	jc, err = api.svc.Update(ctx.Request().Context(), actor, jc, data)
	if err != nil {
		return errors.Wrap(err, "updating job card")
	}
	return ctx.JSON(http.StatusOK, jc)
}

func (api *jobCardApi) destroy(ctx echo.Context) error {
	jc, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, jc); err != nil {
		return errors.Wrap(err, "deleting job card")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *jobCardApi) assign(ctx echo.Context) error {
	jc, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}

	var data jobcard.AssignJobCard
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	jc, err = api.svc.Assign(ctx.Request().Context(), actor, jc, data.TechnicianID)
	if err != nil {
		return errors.Wrap(err, "assigning job card")
	}
	return ctx.JSON(http.StatusOK, jc)
}

func (api *jobCardApi) transition(ctx echo.Context) error {
	jc, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}

	var data jobcard.TransitionJobCard
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	jc, err = api.svc.Transition(ctx.Request().Context(), actor, jc, data.Status)
	if err != nil {
		return errors.Wrap(err, "transitioning job card")
	}
	return ctx.JSON(http.StatusOK, jc)
}

// Time tracking

func (api *jobCardApi) timeSummary(ctx echo.Context) error {
	jc, err := contextObject[jobcard.JobCard](ctx)
	if err != nil {
		return err
	}
	summary, err := api.timer.Summary(ctx.Request().Context(), jc)
	if err != nil {
		return errors.Wrap(err, "summarizing time entries")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *jobCardApi) startTimer(ctx echo.Context) error {
	return api.startOrResume(ctx, false)
}

func (api *jobCardApi) resumeTimer(ctx echo.Context) error {
	return api.startOrResume(ctx, true)
}

func (api *jobCardApi) startOrResume(ctx echo.Context, resume bool) error {
	jc, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}

	var data jobcard.StartTimer
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	var te jobcard.TimeEntry
	if resume {
		te, jc, err = api.timer.Resume(ctx.Request().Context(), actor, jc, data)
	} else {
		te, jc, err = api.timer.Start(ctx.Request().Context(), actor, jc, data)
	}
	if err != nil {
		return errors.Wrap(err, "starting timer")
	}
	return ctx.JSON(http.StatusOK, TimerResponse{Entry: te, JobCard: jc})
}

func (api *jobCardApi) pauseTimer(ctx echo.Context) error {
	jc, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}
	te, jc, err := api.timer.Pause(ctx.Request().Context(), actor, jc)
	if err != nil {
		return errors.Wrap(err, "pausing timer")
	}
	return ctx.JSON(http.StatusOK, TimerResponse{Entry: te, JobCard: jc})
}

func (api *jobCardApi) stopTimer(ctx echo.Context) error {
	jc, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}

	var data jobcard.StopTimer
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	te, jc, err := api.timer.Stop(ctx.Request().Context(), actor, jc, data)
	if err != nil {
		return errors.Wrap(err, "stopping timer")
	}
	return ctx.JSON(http.StatusOK, TimerResponse{Entry: te, JobCard: jc})
}

// Sign-off

func (api *jobCardApi) signOffStatus(ctx echo.Context) error {
	jc, err := contextObject[jobcard.JobCard](ctx)
	if err != nil {
		return err
	}
	status, err := api.signOff.Status(ctx.Request().Context(), jc)
	if err != nil {
		return errors.Wrap(err, "getting sign-off status")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (api *jobCardApi) sign(ctx echo.Context) error {
	jc, actor, err := api.objectAndActor(ctx)
	if err != nil {
		return err
	}

	var data jobcard.SignStep
	if err = bindBody(ctx, &data); err != nil {
		return err
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	sig, jc, err := api.signOff.Sign(ctx.Request().Context(), actor, jc, data)
	if err != nil {
		return errors.Wrap(err, "signing job card")
	}
	return ctx.JSON(http.StatusCreated, SignResponse{Signature: sig, JobCard: jc})
}

func (api *jobCardApi) signatureImage(ctx echo.Context) error {
	jc, err := contextObject[jobcard.JobCard](ctx)
	if err != nil {
		return err
	}
	blob, err := api.signOff.SignatureImage(ctx.Request().Context(), jc, ctx.Param("step"))
	if err != nil {
		return errors.Wrap(err, "getting signature image")
	}
	return ctx.Blob(http.StatusOK, blob.ContentType, blob.Data)
}

func (api *jobCardApi) objectAndActor(ctx echo.Context) (jobcard.JobCard, user.User, error) {
	jc, err := contextObject[jobcard.JobCard](ctx)
	if err != nil {
		return jc, user.User{}, err
	}
	actor, err := getContextUser(ctx)
	return jc, actor, err
}

// jobCardMiddleware sets the `:id` job card as context object if the actor may view it.
func (api *jobCardApi) jobCardMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		jc, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding job card by ID")
		}
		ctx.Set(contextObjKey, jc)
		return next(ctx)
	}
}
