package main

import (
	"fmt"
	"path"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // Registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // Registers the "postgres" driver
	_ "github.com/mattn/go-sqlite3" // Registers the "sqlite3" driver
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/feed"
	"github.com/derWhity/whispqr/internal/feed/amqpbc"
	"github.com/derWhity/whispqr/internal/feed/redisbc"
	"github.com/derWhity/whispqr/internal/log"
	"github.com/derWhity/whispqr/internal/migrate"
	"github.com/derWhity/whispqr/internal/models"
	"github.com/derWhity/whispqr/internal/repos"
	eventmem "github.com/derWhity/whispqr/internal/repos/event/inmem"
	eventmongo "github.com/derWhity/whispqr/internal/repos/event/mongodb"
	eventsql "github.com/derWhity/whispqr/internal/repos/event/sqldb"
	msgmem "github.com/derWhity/whispqr/internal/repos/message/inmem"
	msgmongo "github.com/derWhity/whispqr/internal/repos/message/mongodb"
	msgsql "github.com/derWhity/whispqr/internal/repos/message/sqldb"
)

const dbFile = "whispqr.db"

// storage bundles the repositories of the configured backend
type storage struct {
	events   repos.EventRepo
	messages repos.MessageRepo
	close    func()
}

// openStorage connects to the configured storage backend and prepares it for use
func openStorage(ctx context.Context, conf models.AppConfig, logger *logrus.Entry) (*storage, error) {
	logger = logger.WithField(log.FldDriver, conf.Storage.Driver)
	switch conf.Storage.Driver {
	case models.DriverMemory:
		logger.Warn("Using the in-memory storage - all data is lost on shutdown")
		return &storage{events: eventmem.New(), messages: msgmem.New(), close: func() {}}, nil
	case models.DriverSQLite, models.DriverPostgres, models.DriverPgx, models.DriverMySQL:
		return openSQLStorage(conf, logger)
	case models.DriverMongo:
		return openMongoStorage(ctx, conf, logger)
	}
	return nil, fmt.Errorf("unknown storage driver '%s'", conf.Storage.Driver)
}

// sqlDSN returns the data source name to use for the configured SQL driver
func sqlDSN(conf models.AppConfig) (string, error) {
	dsn := conf.Storage.DSN
	switch conf.Storage.Driver {
	case models.DriverSQLite:
		if dsn == "" {
			dsn = path.Join(conf.DataDir, dbFile)
		}
	case models.DriverMySQL:
		// Timestamps have to be scanned into time.Time values. Updates report matched rows, so an unchanged row does
		// not look like a missing one.
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", err
		}
		cfg.ParseTime = true
		cfg.ClientFoundRows = true
		cfg.Loc = time.UTC
		dsn = cfg.FormatDSN()
	}
	return dsn, nil
}

func openSQLStorage(conf models.AppConfig, logger *logrus.Entry) (*storage, error) {
	dsn, err := sqlDSN(conf)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(conf.Storage.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if conf.Storage.Driver == models.DriverSQLite {
		// SQLite does not cope with concurrent writers
		db.SetMaxOpenConns(1)
	}
	logger.Info("Performing database migrations...")
	if err = migrate.ExecuteMigrationsOnDb(db, logger); err != nil {
		db.Close()
		return nil, err
	}
	return &storage{
		events:   eventsql.New(db, logger),
		messages: msgsql.New(db, logger),
		close:    func() { db.Close() },
	}, nil
}

func openMongoStorage(ctx context.Context, conf models.AppConfig, logger *logrus.Entry) (*storage, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(conf.Storage.MongoURI))
	if err != nil {
		return nil, err
	}
	if err = client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	db := client.Database(conf.Storage.MongoDatabase)
	evRepo := eventmongo.New(db, logger)
	msgRepo := msgmongo.New(db, logger)
	if err = evRepo.EnsureIndexes(connectCtx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	if err = msgRepo.EnsureIndexes(connectCtx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return &storage{
		events:   evRepo,
		messages: msgRepo,
		close:    func() { client.Disconnect(context.Background()) },
	}, nil
}

// openBroadcaster connects to the configured feed broker. Returns nil if live feeds stay local.
func openBroadcaster(ctx context.Context, conf models.FeedConfig, logger *logrus.Entry) (feed.Broadcaster, error) {
	logger = logger.WithField(log.FldBroker, conf.Broker)
	switch conf.Broker {
	case models.BrokerNone, "":
		return nil, nil
	case models.BrokerRedis:
		client, err := redisbc.Connect(ctx, conf.RedisAddr, conf.RedisPassword, conf.RedisDB)
		if err != nil {
			return nil, err
		}
		logger.WithField(log.FldAddr, conf.RedisAddr).Info("Distributing live feed notifications via Redis")
		return redisbc.New(client, conf.RedisChannel, logger), nil
	case models.BrokerAMQP:
		bc, err := amqpbc.Dial(conf.AMQPURL, conf.AMQPExchange, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Distributing live feed notifications via AMQP")
		return bc, nil
	}
	return nil, fmt.Errorf("unknown feed broker '%s'", conf.Broker)
}
