package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/Evian1k/school12k/apps/api/echo"
	"github.com/Evian1k/school12k/core"
	"github.com/Evian1k/school12k/core/auth"
	"github.com/Evian1k/school12k/core/identity"
	emailsvc "github.com/Evian1k/school12k/services/email"
	logsvc "github.com/Evian1k/school12k/services/logger"
	"github.com/Evian1k/school12k/storage/clientstore"
	"github.com/Evian1k/school12k/storage/database"
	"github.com/Evian1k/school12k/storage/database/dummydb"
	"github.com/Evian1k/school12k/storage/database/sqlxrepos"
)

func main() {
	conf := core.NewConfig(core.Getwd())

	stdLogger := log.New(os.Stdout, conf.AppName+"-API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!(conf.Debug || conf.TestMode))

	// set up validation
	validate := validator.New()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator(enLocale.Locale())
	core.InitValidators(validate, translator)
	identity.RegisterValidators(validate, translator)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var dir identity.Directory
	if conf.Database.User != "" {
		db, err := database.Open(conf)
		errAndDie(err)
		defer db.Close()
		errAndDie(database.Ping(db))
		errAndDie(database.Migrate(db))
		dir = sqlxrepos.NewIdentityDirectory(db)
	} else {
		mem, err := dummydb.Open()
		errAndDie(err)
		dir = dummydb.NewIdentityDirectory(mem)
	}
	idSvc := identity.NewService(dir)

	store, err := clientstore.Open(conf.ClientStore.Dir)
	errAndDie(err)

	issuer := auth.NewIssuer(conf, idSvc, auth.NewEmailNotifier(conf, mailSvc), clientstore.NewRequestStore(store))
	sessions := auth.NewManager(conf, clientstore.NewSessionStore(store), logger)

	guard := auth.NewGuard(sessions)
	guard.Resolve()

	// watch session expiry in the background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sessions.Monitor(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sessions.Expired():
				logger.Info("session expired, credentials revoked")
			}
		}
	}()

	// start API server
	shutdown := make(chan struct{}, 1)
	app := echoapi.NewServer(&echoapi.Options{
		Address:     conf.Server.Address,
		Conf:        conf,
		Logger:      logger,
		IdentitySvc: idSvc,
		Issuer:      issuer,
		Sessions:    sessions,
		Validate:    validate,
		Translator:  translator,
		Shutdown:    shutdown,
	})

	serverErrors := make(chan error, 1)
	go func() { serverErrors <- app.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("server error", err)
	case <-shutdown:
		logger.Error("integrity issue detected, shutting down")
	case sig := <-quit:
		logger.Info("caught signal, shutting down", map[string]interface{}{"signal": sig.String()})
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Fatal("could not stop server gracefully", err)
	}
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
