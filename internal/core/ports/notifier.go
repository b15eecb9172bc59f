package ports

import (
	"context"

	"github.com/ark-network/lottery/internal/core/domain"
)

// EventNotifier fans out the committed lottery events to any listener.
type EventNotifier interface {
	Publish(ctx context.Context, events ...domain.Event) error
	Subscribe(ctx context.Context) (<-chan domain.Event, error)
	Close() error
}
