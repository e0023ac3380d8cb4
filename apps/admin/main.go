package main

import (
	"log"
	"os"

	"github.com/Evian1k/school12k/core"
	"github.com/Evian1k/school12k/core/identity"
	"github.com/Evian1k/school12k/storage/database"
	"github.com/Evian1k/school12k/storage/database/dummydb"
	"github.com/Evian1k/school12k/storage/database/sqlxrepos"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig(core.Getwd())

	// set up DB
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

	// start CLI
	cli := commandLine{
		idSvc: identity.NewService(dir),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
