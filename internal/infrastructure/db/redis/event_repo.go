package redisdb

import (
	"context"
	"fmt"

	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/redis/go-redis/v9"
)

const eventsKeyPrefix = "lottery:events:"

type eventRepository struct {
	rdb *redis.Client
}

func NewLotteryEventRepository(config ...interface{}) (domain.LotteryEventRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	url, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid redis url")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &eventRepository{rdb}, nil
}

func (r *eventRepository) Save(
	ctx context.Context, id string, events ...domain.Event,
) error {
	if len(events) <= 0 {
		return nil
	}

	rawEvents, err := domain.SerializeEvents(events)
	if err != nil {
		return err
	}
	values := make([]interface{}, 0, len(rawEvents))
	for _, buf := range rawEvents {
		values = append(values, buf)
	}

	if _, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, r.key(id), values...)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to save events with id %s: %w", id, err)
	}
	return nil
}

func (r *eventRepository) Load(
	ctx context.Context, id string,
) (*domain.Lottery, error) {
	vals, err := r.rdb.LRange(ctx, r.key(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get events with id %s: %w", id, err)
	}
	if len(vals) <= 0 {
		return nil, nil
	}

	rawEvents := make([][]byte, 0, len(vals))
	for _, val := range vals {
		rawEvents = append(rawEvents, []byte(val))
	}
	events, err := domain.DeserializeEvents(rawEvents)
	if err != nil {
		return nil, err
	}
	return domain.NewLotteryFromEvents(events), nil
}

func (r *eventRepository) Close() {
	_ = r.rdb.Close()
}

func (r *eventRepository) key(id string) string {
	return eventsKeyPrefix + id
}
