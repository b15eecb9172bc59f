package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const eventStoreDir = "lottery-events"

var (
	errInvalidConfig  = errors.New("invalid config")
	errInvalidBaseDir = errors.New("invalid base directory")
	errInvalidLogger  = errors.New("invalid logger")
)

type eventsDTO struct {
	Events [][]byte
}

type eventRepository struct {
	store *badgerhold.Store
}

func NewLotteryEventRepository(config ...interface{}) (domain.LotteryEventRepository, error) {
	baseDir, logger, err := parseConfig(config)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, eventStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open lottery events store: %s", err)
	}
	return &eventRepository{store}, nil
}

func (r *eventRepository) Save(
	ctx context.Context, id string, events ...domain.Event,
) error {
	if len(events) <= 0 {
		return nil
	}

	rawEvents, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	newEvents, err := domain.SerializeEvents(events)
	if err != nil {
		return err
	}
	rawEvents = append(rawEvents, newEvents...)
	return r.upsert(ctx, id, rawEvents)
}

func (r *eventRepository) Load(
	ctx context.Context, id string,
) (*domain.Lottery, error) {
	rawEvents, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(rawEvents) <= 0 {
		return nil, nil
	}

	events, err := domain.DeserializeEvents(rawEvents)
	if err != nil {
		return nil, err
	}
	return domain.NewLotteryFromEvents(events), nil
}

func (r *eventRepository) Close() {
	r.store.Close()
}

func (r *eventRepository) get(
	ctx context.Context, id string,
) ([][]byte, error) {
	dto := eventsDTO{}
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxGet(tx, id, &dto)
	} else {
		err = r.store.Get(id, &dto)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get events with id %s: %s", id, err)
	}

	return dto.Events, nil
}

func (r *eventRepository) upsert(
	ctx context.Context, id string, rawEvents [][]byte,
) error {
	dto := eventsDTO{rawEvents}
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxUpsert(tx, id, dto)
	} else {
		err = r.store.Upsert(id, dto)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert events with id %s: %s", id, err)
	}
	return nil
}
