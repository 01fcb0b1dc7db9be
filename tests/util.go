// Package testutil wires the app on the in-memory database for tests.
package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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
	"github.com/thinkquality/thinkquality/services/email"
	"github.com/thinkquality/thinkquality/storage/blob"
	inmem "github.com/thinkquality/thinkquality/storage/database/inmem"
)

// DefaultPassword satisfies the password policy.
const DefaultPassword = "Sup3r-S3cret!"

// App holds every service of the app, backed by the in-memory database and blob store.
type App struct {
	DB    *inmem.DB
	Blobs *blobstore.Store
	Mail  *emailsvc.ConsoleService

	Validate    *validator.Validate
	Translator  ut.Translator
	UserRepo    user.Repository
	JobCardRepo jobcard.Repository

	Users       user.Service
	Companies   company.Service
	Machines    machine.Service
	JobCards    jobcard.Service
	TimeTracker jobcard.TimeTracker
	SignOff     jobcard.SignOffWorkflow
	SOPs        sop.Service
	CheckSheets checksheet.Service
	Faults      fault.Service
	Reports     report.Service
	Dashboard   dashboard.Service

	// Clock drives the timer and sign-off workflows.
	Clock *Clock
}

// Clock is a settable time source.
type Clock struct {
	now time.Time
}

func (c *Clock) Now() time.Time          { return c.now }
func (c *Clock) Set(t time.Time)         { c.now = t.UTC() }
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// NewApp wires a fresh App. Everything is released when the test ends.
func NewApp(t *testing.T) *App {
	t.Helper()
	core.Conf.TestMode = true

	blobs, err := blobstore.Open("", nil)
	if err != nil {
		t.Fatalf("blobstore.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = blobs.Close() })

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	db := inmem.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock()
	clock := &Clock{now: time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)}

	usrRepo := inmem.NewUserRepository(db)
	machineRepo := inmem.NewMachineRepository(db)
	jcRepo := inmem.NewJobCardRepository(db)

	app := &App{
		DB:          db,
		Blobs:       blobs,
		Mail:        mailSvc,
		Validate:    validate,
		Translator:  translator,
		UserRepo:    usrRepo,
		JobCardRepo: jcRepo,
		Clock:       clock,
	}
	app.Companies = company.NewService(db, inmem.NewCompanyRepository(db), usrRepo)
	app.Users = user.NewService(db, usrRepo, app.Companies, mailSvc)
	app.Machines = machine.NewService(db, machineRepo, machineRepo)
	app.JobCards = jobcard.NewService(db, jcRepo, app.Users, app.Machines, mailSvc)
	app.TimeTracker = jobcard.NewTimeTracker(db, jcRepo, clock.Now)
	app.SignOff = jobcard.NewSignOffWorkflow(db, jcRepo, blobs, clock.Now)
	app.SOPs = sop.NewService(db, inmem.NewSOPRepository(db), app.Machines, blobs)
	app.CheckSheets = checksheet.NewService(db, inmem.NewCheckSheetRepository(db), app.Machines, app.JobCards)
	app.Faults = fault.NewService(db, inmem.NewFaultRepository(db), app.Machines)
	app.Reports = report.NewService(inmem.NewReportRepository(db))
	app.Dashboard = dashboard.NewService(app.JobCards, jcRepo, app.Users, app.Machines)
	return app
}

func (app *App) CreateCompany(t *testing.T, name string) company.Company {
	t.Helper()
	c, err := app.Companies.Create(context.Background(), company.NewCompany{
		Name:         name,
		ContactEmail: "contact@" + strings.ToLower(strings.ReplaceAll(name, " ", "")) + ".test",
	})
	if err != nil {
		t.Fatalf("CreateCompany() failed: %v", err)
	}
	return c
}

// CreateUser creates an active user with DefaultPassword. companyID is ignored for super admins.
func (app *App) CreateUser(t *testing.T, companyID, name, email, role string) user.User {
	t.Helper()
	if role == user.RoleSuperAdmin {
		companyID = ""
	}
	usr, err := app.Users.Create(context.Background(), user.NewUser{
		CompanyID:       companyID,
		Name:            name,
		Email:           email,
		Role:            role,
		Password:        DefaultPassword,
		PasswordConfirm: DefaultPassword,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (app *App) CreateMachine(t *testing.T, companyID, name, serial string) machine.Machine {
	t.Helper()
	m, err := app.Machines.Create(context.Background(), machine.NewMachine{
		CompanyID:    companyID,
		Name:         name,
		SerialNumber: serial,
		Location:     "Hall A",
	})
	if err != nil {
		t.Fatalf("CreateMachine() failed: %v", err)
	}
	return m
}

func (app *App) CreateJobCard(t *testing.T, actor user.User, nj jobcard.NewJobCard) jobcard.JobCard {
	t.Helper()
	if nj.Priority == "" {
		nj.Priority = jobcard.PriorityMedium
	}
	jc, err := app.JobCards.Create(context.Background(), actor, nj)
	if err != nil {
		t.Fatalf("CreateJobCard() failed: %v", err)
	}
	return jc
}

// Tenant is a company with one user of every company role.
type Tenant struct {
	Company    company.Company
	Admin      user.User
	Technician user.User
	Customer   user.User
	Machine    machine.Machine
}

// CreateTenant creates a Tenant. slug prefixes every email.
func (app *App) CreateTenant(t *testing.T, name, slug string) Tenant {
	t.Helper()
	c := app.CreateCompany(t, name)
	return Tenant{
		Company:    c,
		Admin:      app.CreateUser(t, c.ID, name+" Admin", slug+".admin@example.com", user.RoleAdmin),
		Technician: app.CreateUser(t, c.ID, name+" Tech", slug+".tech@example.com", user.RoleTechnician),
		Customer:   app.CreateUser(t, c.ID, name+" Customer", slug+".customer@example.com", user.RoleCustomer),
		Machine:    app.CreateMachine(t, c.ID, "Press 1", slug+"-SN-001"),
	}
}

// SignaturePNG is the smallest valid PNG, base64 encoded.
const SignaturePNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="
