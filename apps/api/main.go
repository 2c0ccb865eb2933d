package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/qantedservices-cmd/amilou-sub002/apps/api/echo"
	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/blob"
	"github.com/qantedservices-cmd/amilou-sub002/core/group"
	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
	"github.com/qantedservices-cmd/amilou-sub002/core/report"
	"github.com/qantedservices-cmd/amilou-sub002/core/tracking"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
	"github.com/qantedservices-cmd/amilou-sub002/core/visibility"
	logsvc "github.com/qantedservices-cmd/amilou-sub002/services/logger"
	"github.com/qantedservices-cmd/amilou-sub002/storage/database"
	inmemdb "github.com/qantedservices-cmd/amilou-sub002/storage/database/inmem"
	boiledrepos "github.com/qantedservices-cmd/amilou-sub002/storage/database/sqlboiler"
	sqlxrepos "github.com/qantedservices-cmd/amilou-sub002/storage/database/sqlx"
)

type repositories struct {
	users    user.Repository
	groups   group.Repository
	tracking tracking.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up repositories
	var repos repositories
	if conf.Database.Engine == core.EngineMemory {
		logger.Warn("Using the in-memory database: data is lost on shutdown")
		db := inmemdb.NewDB()
		repos = repositories{
			users:    inmemdb.NewUserRepository(db),
			groups:   inmemdb.NewGroupRepository(db),
			tracking: inmemdb.NewTrackingRepository(db),
		}
	} else {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
		repos = repositories{
			users:    boiledrepos.NewUserRepository(db),
			groups:   boiledrepos.NewGroupRepository(db),
			tracking: sqlxrepos.NewTrackingRepository(sqlxrepos.NewDB(db)),
		}
	}

	// set up services
	impersonations := identity.NewStore(conf.Impersonation.MaxSessions, conf.Server.JWTRefreshExpirationDelta)
	blobs := blob.NewStore(conf.Blob.TTL)
	usrSvc := user.NewService(repos.users)
	grpSvc := group.NewService(repos.groups, usrSvc)
	vis := visibility.NewEngine(usrSvc, grpSvc)
	trkSvc := tracking.NewService(repos.tracking, vis, grpSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	group.InitValidators(validate, translator)
	tracking.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			UserSvc:        usrSvc,
			GroupSvc:       grpSvc,
			TrackingSvc:    trkSvc,
			ReportSvc:      report.NewService(trkSvc, usrSvc, blobs),
			IdentitySvc:    identity.NewService(impersonations, usrSvc, logger),
			Impersonations: impersonations,
			Visibility:     vis,
			Blobs:          blobs,
			Validate:       validate,
			Translator:     translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
