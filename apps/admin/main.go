package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/checksheet"
	"github.com/thinkquality/thinkquality/core/company"
	"github.com/thinkquality/thinkquality/core/jobcard"
	"github.com/thinkquality/thinkquality/core/machine"
	"github.com/thinkquality/thinkquality/core/user"
	emailsvc "github.com/thinkquality/thinkquality/services/email"
	logsvc "github.com/thinkquality/thinkquality/services/logger"
	"github.com/thinkquality/thinkquality/storage/database"
	sqlxrepos "github.com/thinkquality/thinkquality/storage/database/sqlx"
)

func main() {
	conf := core.Conf
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(logger, err)
	defer func() { _ = db.Close() }()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	// set up services
	tx := database.NewTransactor(db)
	usrRepo := sqlxrepos.NewUserRepository(db)
	companies := company.NewService(tx, sqlxrepos.NewCompanyRepository(db), usrRepo)
	mailSvc := emailsvc.New(conf, logger)
	users := user.NewService(tx, usrRepo, companies, mailSvc)
	machineRepo := sqlxrepos.NewMachineRepository(db)
	machines := machine.NewService(tx, machineRepo, machineRepo)
	jobCards := jobcard.NewService(tx, sqlxrepos.NewJobCardRepository(db), users, machines, mailSvc)

	// start CLI
	cli := &commandLine{
		db:         db.DB,
		validate:   validate,
		translator: translator,
		users:      users,
		sheets:     checksheet.NewService(tx, sqlxrepos.NewCheckSheetRepository(db), machines, jobCards),
	}
	if err := cli.run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
