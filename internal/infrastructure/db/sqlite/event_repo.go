package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ark-network/lottery/internal/core/domain"
)

const (
	insertEventQuery = `
INSERT INTO lottery_event (lottery_id, event_type, payload) VALUES (?, ?, ?)`
	selectEventsQuery = `
SELECT payload FROM lottery_event WHERE lottery_id = ? ORDER BY id ASC`
)

type eventRepository struct {
	db *sql.DB
}

func NewLotteryEventRepository(config ...interface{}) (domain.LotteryEventRepository, error) {
	db, err := dbFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("cannot open lottery event repository: %w", err)
	}
	return &eventRepository{db}, nil
}

func (r *eventRepository) Save(
	ctx context.Context, id string, events ...domain.Event,
) error {
	if len(events) <= 0 {
		return nil
	}

	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, event := range events {
			payload, err := domain.SerializeEvent(event)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(
				ctx, insertEventQuery, id, int(event.GetType()), payload,
			); err != nil {
				return fmt.Errorf("failed to insert %s event: %w", event.GetType(), err)
			}
		}
		return nil
	})
}

func (r *eventRepository) Load(
	ctx context.Context, id string,
) (*domain.Lottery, error) {
	rows, err := r.db.QueryContext(ctx, selectEventsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get events with id %s: %w", id, err)
	}
	defer rows.Close()

	rawEvents := make([][]byte, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		rawEvents = append(rawEvents, payload)
	}
	if err := rows.Err(); err != nil {
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
	_ = r.db.Close()
}
