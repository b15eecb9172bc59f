package db

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/ark-network/lottery/internal/core/ports"
	badgerdb "github.com/ark-network/lottery/internal/infrastructure/db/badger"
	redisdb "github.com/ark-network/lottery/internal/infrastructure/db/redis"
	sqlitedb "github.com/ark-network/lottery/internal/infrastructure/db/sqlite"
)

var (
	eventStoreTypes = map[string]func(...interface{}) (domain.LotteryEventRepository, error){
		"badger": badgerdb.NewLotteryEventRepository,
		"sqlite": sqlitedb.NewLotteryEventRepository,
		"redis":  redisdb.NewLotteryEventRepository,
	}
	drawStoreTypes = map[string]func(...interface{}) (domain.DrawRepository, error){
		"badger": badgerdb.NewDrawRepository,
		"sqlite": sqlitedb.NewDrawRepository,
	}
)

const (
	sqliteDbFile = "sqlite.db"
)

type ServiceConfig struct {
	EventStoreType string
	DataStoreType  string

	EventStoreConfig []interface{}
	DataStoreConfig  []interface{}
}

type service struct {
	eventStore domain.LotteryEventRepository
	drawStore  domain.DrawRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	eventStoreFactory, ok := eventStoreTypes[config.EventStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid event store type: %s", config.EventStoreType)
	}

	drawStoreFactory, ok := drawStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	// Both stores share the same sqlite db when they are both of that type.
	var sqliteDb *sql.DB
	openSqlite := func(config []interface{}) ([]interface{}, error) {
		if sqliteDb != nil {
			return []interface{}{sqliteDb}, nil
		}
		db, err := openSqliteDb(config)
		if err != nil {
			return nil, err
		}
		sqliteDb = db
		return []interface{}{db}, nil
	}

	eventStoreConfig := config.EventStoreConfig
	if config.EventStoreType == "sqlite" {
		cfg, err := openSqlite(eventStoreConfig)
		if err != nil {
			return nil, err
		}
		eventStoreConfig = cfg
	}

	dataStoreConfig := config.DataStoreConfig
	if config.DataStoreType == "sqlite" {
		cfg, err := openSqlite(dataStoreConfig)
		if err != nil {
			return nil, err
		}
		dataStoreConfig = cfg
	}

	eventStore, err := eventStoreFactory(eventStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create event store: %w", err)
	}

	drawStore, err := drawStoreFactory(dataStoreConfig...)
	if err != nil {
		eventStore.Close()
		return nil, fmt.Errorf("failed to create draw store: %w", err)
	}

	return &service{
		eventStore: eventStore,
		drawStore:  drawStore,
	}, nil
}

func (s *service) Events() domain.LotteryEventRepository {
	return s.eventStore
}

func (s *service) Draws() domain.DrawRepository {
	return s.drawStore
}

func (s *service) Close() {
	s.eventStore.Close()
	s.drawStore.Close()
}

func openSqliteDb(config []interface{}) (*sql.DB, error) {
	if len(config) <= 0 {
		return nil, errors.New("invalid config")
	}

	dbDir, ok := config[0].(string)
	if !ok {
		return nil, errors.New("invalid config, expected datadir at 0")
	}

	db, err := sqlitedb.OpenDb(filepath.Join(dbDir, sqliteDbFile))
	if err != nil {
		return nil, err
	}
	if err := sqlitedb.MigrateDb(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	return db, nil
}
