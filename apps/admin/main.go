package main

import (
	"log"
	"os"

	"github.com/trezcool/masomo-chat/core"
	"github.com/trezcool/masomo-chat/storage/database"
	sqlxrepos "github.com/trezcool/masomo-chat/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	if conf.Database.Engine == database.Memory {
		logger.Fatal("the admin CLI needs a SQL database engine")
	}
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	cli := commandLine{
		db:       db,
		usrRepo:  sqlxrepos.NewUserRepository(db),
		chatRepo: sqlxrepos.NewChatRepository(db),
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
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
