package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-chat/apps/api/echo"
	"github.com/trezcool/masomo-chat/core"
	"github.com/trezcool/masomo-chat/core/chat"
	"github.com/trezcool/masomo-chat/core/notification"
	"github.com/trezcool/masomo-chat/core/user"
	"github.com/trezcool/masomo-chat/services/broker"
	logsvc "github.com/trezcool/masomo-chat/services/logger"
	"github.com/trezcool/masomo-chat/storage/database"
	inmemdb "github.com/trezcool/masomo-chat/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo-chat/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type Repositories struct {
	dig.Out
	User         user.Repository
	Chat         chat.Repository
	Notification notification.Repository
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

// newDB returns nil for the in-memory engine.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	if conf.Database.Engine == database.Memory {
		return nil
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(context.Background(), db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newRepositories(conf *core.Config, db *sqlx.DB) Repositories {
	if conf.Database.Engine == database.Memory {
		mem := inmemdb.Open()
		return Repositories{
			User:         inmemdb.NewUserRepository(mem),
			Chat:         inmemdb.NewChatRepository(mem),
			Notification: inmemdb.NewNotificationRepository(mem),
		}
	}
	return Repositories{
		User:         sqlxrepos.NewUserRepository(db),
		Chat:         sqlxrepos.NewChatRepository(db),
		Notification: sqlxrepos.NewNotificationRepository(db),
	}
}

func newValidator(conf *core.Config, logger core.Logger, translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger, conf.WorkDir)
	return validate
}

func newBroadcaster(conf *core.Config, logger core.Logger) (chat.Broadcaster, error) {
	switch conf.Chat.Broker {
	case "", core.BrokerMemory:
		return chat.NewHub(logger), nil
	case core.BrokerRedis:
		client, err := broker.NewRedisClient(context.Background(), conf.Redis)
		if err != nil {
			return nil, err
		}
		return broker.NewRedisBroadcaster(client, conf.Redis.ChannelPrefix, logger), nil
	default:
		return nil, errors.Errorf("unknown chat broker %q", conf.Chat.Broker)
	}
}

func newChatService(
	conf *core.Config,
	repo chat.Repository,
	usrSvc user.Service,
	broadcaster chat.Broadcaster,
	notifSvc notification.Service,
	validate *validator.Validate,
) chat.Service {
	return chat.NewService(repo, usrSvc, broadcaster, notifSvc, validate, conf.Chat)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(notification.NewService))
	must(c.Provide(newBroadcaster))
	must(c.Provide(newChatService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
