package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/thinkquality/thinkquality/apps/api/echo"
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
	emailsvc "github.com/thinkquality/thinkquality/services/email"
	logsvc "github.com/thinkquality/thinkquality/services/logger"
	blobstore "github.com/thinkquality/thinkquality/storage/blob"
	"github.com/thinkquality/thinkquality/storage/database"
	inmem "github.com/thinkquality/thinkquality/storage/database/inmem"
	boiledrepos "github.com/thinkquality/thinkquality/storage/database/sqlboiler"
	sqlxrepos "github.com/thinkquality/thinkquality/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is every repository, backed either by postgres or by memory (`database.inMemory`).
type Storage struct {
	dig.Out

	DB          core.Transactor
	Closer      func() error
	Users       user.Repository
	UserCounter company.UserCounter
	Companies   company.Repository
	Machines    machine.Repository
	Portal      machine.PortalRepository
	JobCards    jobcard.Repository
	TimeEntries dashboard.TimeEntryQuerier
	SOPs        sop.Repository
	CheckSheets checksheet.Repository
	Faults      fault.Repository
	Reports     report.Repository
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.InMemory {
		loggerParam.Logger.Warn("using the in-memory database, nothing will be persisted")
		db := inmem.NewDB()
		jobCards, machines := inmem.NewJobCardRepository(db), inmem.NewMachineRepository(db)
		users := inmem.NewUserRepository(db)
		return Storage{
			DB:          db,
			Closer:      func() error { return nil },
			Users:       users,
			UserCounter: users,
			Companies:   inmem.NewCompanyRepository(db),
			Machines:    machines,
			Portal:      machines,
			JobCards:    jobCards,
			TimeEntries: jobCards,
			SOPs:        inmem.NewSOPRepository(db),
			CheckSheets: inmem.NewCheckSheetRepository(db),
			Faults:      inmem.NewFaultRepository(db),
			Reports:     inmem.NewReportRepository(db),
		}
	}

	setUp := func() (*database.Transactor, Storage, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, Storage{}, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, Storage{}, err
		}
		if err = database.Migrate(db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, Storage{}, err
		}

		users := sqlxrepos.NewUserRepository(db)
		jobCards, machines := sqlxrepos.NewJobCardRepository(db), sqlxrepos.NewMachineRepository(db)
		return database.NewTransactor(db), Storage{
			Closer:      db.Close,
			Users:       users,
			UserCounter: users,
			Companies:   sqlxrepos.NewCompanyRepository(db),
			Machines:    machines,
			Portal:      machines,
			JobCards:    jobCards,
			TimeEntries: jobCards,
			SOPs:        sqlxrepos.NewSOPRepository(db),
			CheckSheets: sqlxrepos.NewCheckSheetRepository(db),
			Faults:      sqlxrepos.NewFaultRepository(db),
			Reports:     boiledrepos.NewReportRepository(db),
		}, nil
	}

	tx, s, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	s.DB = tx
	return s
}

func newBlobStore(conf *core.Config, logger core.Logger) (*blobstore.Store, core.BlobStore) {
	store, err := blobstore.Open(conf.BlobDir, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening blob store: %v", err), err)
	}
	return store, store
}

func newServerDeps(
	users user.Service,
	companies company.Service,
	machines machine.Service,
	jobCards jobcard.Service,
	tracker jobcard.TimeTracker,
	signOff jobcard.SignOffWorkflow,
	sops sop.Service,
	sheets checksheet.Service,
	faults fault.Service,
	reports report.Service,
	dash dashboard.Service,
) *echoapi.Deps {
	return &echoapi.Deps{
		UserSvc:       users,
		CompanySvc:    companies,
		MachineSvc:    machines,
		JobCardSvc:    jobCards,
		TimeTracker:   tracker,
		SignOff:       signOff,
		SOPSvc:        sops,
		CheckSheetSvc: sheets,
		FaultSvc:      faults,
		ReportSvc:     reports,
		DashboardSvc:  dash,
	}
}

func newTimeTracker(db core.Transactor, repo jobcard.Repository) jobcard.TimeTracker {
	return jobcard.NewTimeTracker(db, repo, core.Now)
}

func newSignOffWorkflow(db core.Transactor, repo jobcard.Repository, blobs core.BlobStore) jobcard.SignOffWorkflow {
	return jobcard.NewSignOffWorkflow(db, repo, blobs, core.Now)
}

// New returns a new dependency injection dig.Container
func New(conf *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(func() *core.Config { return conf }))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newBlobStore))
	must(c.Provide(emailsvc.New))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))

	must(c.Provide(company.NewService, dig.As(new(company.Service), new(user.CompanyChecker))))
	must(c.Provide(user.NewService, dig.As(new(user.Service), new(jobcard.UserGetter), new(dashboard.UserQuerier))))
	must(c.Provide(machine.NewService, dig.As(
		new(machine.Service),
		new(jobcard.MachineGetter),
		new(sop.MachineGetter),
		new(checksheet.MachineGetter),
		new(fault.MachineGetter),
		new(dashboard.MachineQuerier),
	)))
	must(c.Provide(jobcard.NewService, dig.As(new(jobcard.Service), new(checksheet.JobCardGetter), new(dashboard.JobCardQuerier))))
	must(c.Provide(newTimeTracker))
	must(c.Provide(newSignOffWorkflow))
	must(c.Provide(sop.NewService))
	must(c.Provide(checksheet.NewService))
	must(c.Provide(fault.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(dashboard.NewService))
	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	if conf.Debug {
		_ = dig.Visualize(c, os.Stdout)
	}

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
