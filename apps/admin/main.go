package main

import (
	"fmt"
	"log"
	"os"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	logsvc "github.com/qantedservices-cmd/amilou-sub002/services/logger"
	"github.com/qantedservices-cmd/amilou-sub002/storage/database"
	boiledrepos "github.com/qantedservices-cmd/amilou-sub002/storage/database/sqlboiler"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: boiledrepos.NewUserRepository(db),
		grpRepo: boiledrepos.NewGroupRepository(db),
		out:     os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("admin: %v", err), err)
		}
		os.Exit(1)
	}
}
