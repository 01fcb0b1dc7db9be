package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/checksheet"
	"github.com/thinkquality/thinkquality/core/company"
	"github.com/thinkquality/thinkquality/core/dashboard"
	"github.com/thinkquality/thinkquality/core/fault"
	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/machine"
	"github.com/thinkquality/thinkquality/core/report"
	"github.com/thinkquality/thinkquality/core/sop"
	"github.com/thinkquality/thinkquality/core/user"
)

type (
	// Deps are the services the API is built on.
	Deps struct {
		UserSvc       user.Service
		CompanySvc    company.Service
		MachineSvc    machine.Service
		JobCardSvc    jobcard.Service
		TimeTracker   jobcard.TimeTracker
		SignOff       jobcard.SignOffWorkflow
		SOPSvc        sop.Service
		CheckSheetSvc checksheet.Service
		FaultSvc      fault.Service
		ReportSvc     report.Service
		DashboardSvc  dashboard.Service
	}

	Server struct {
		*http.Server
		app        *echo.Echo
		deps       *Deps
		conf       *core.Config
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
		errors     chan error
		shutdown   chan os.Signal
	}
)

func NewServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	deps *Deps,
) *Server {
	s := &Server{
		app:        echo.New(),
		deps:       deps,
		conf:       conf,
		logger:     logger,
		validate:   validate,
		translator: translator,
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	s.Server = &http.Server{
		Addr:         conf.Server.Host,
		Handler:      s.app,
		ReadTimeout:  conf.Server.ReadTimeout,
		WriteTimeout: conf.Server.WriteTimeout,
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{s.conf.FrontendBaseURL},
	}))

	s.app.GET("/", s.home)
	registerPortalAPI(s.app.Group("/portal"), s.deps.MachineSvc)

	v1 := s.app.Group("/v1")
	authed := []echo.MiddlewareFunc{middleware.JWTWithConfig(appJWTConfig), contextUserMiddleware(s.deps.UserSvc)}

	registerUserAPI(v1, authed, s.deps.UserSvc, s.validate)
	registerCompanyAPI(v1.Group("/companies", authed...), s.deps.CompanySvc, s.validate)
	registerMachineAPI(v1.Group("/machines", authed...), s.deps.MachineSvc, s.validate)
	registerJobCardAPI(v1.Group("/jobcards", authed...), s.deps, s.validate)
	registerSOPAPI(v1.Group("/sops", authed...), s.deps.SOPSvc, s.validate)
	registerCheckSheetAPI(v1.Group("/checksheets", authed...), s.deps.CheckSheetSvc, s.validate)
	registerFaultAPI(v1.Group("/faults", authed...), s.deps.FaultSvc, s.validate)
	registerReportAPI(v1.Group("/reports", authed...), s.deps.ReportSvc)
	v1.GET("/dashboard", dashboardHandler(s.deps.DashboardSvc), authed...)
}

// Start listens until the server is shut down. Listening errors are sent to Errors().
func (s *Server) Start() {
	s.logger.Info("API listening on " + s.Addr)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.Server.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
