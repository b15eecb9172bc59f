package watermillnotifier

import (
	"context"
	"fmt"

	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/ark-network/lottery/internal/core/ports"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	log "github.com/sirupsen/logrus"
)

const subscriberBuffer = 64

type notifier struct {
	pubsub *gochannel.GoChannel
}

func NewNotifier() ports.EventNotifier {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: subscriberBuffer,
			// every message is delivered to all subscribers before the
			// next one, subscribers see events in commit order.
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NopLogger{},
	)
	return &notifier{pubsub}
}

func (n *notifier) Publish(_ context.Context, events ...domain.Event) error {
	if len(events) <= 0 {
		return nil
	}

	messages := make([]*message.Message, 0, len(events))
	for _, event := range events {
		payload, err := domain.SerializeEvent(event)
		if err != nil {
			return fmt.Errorf("failed to serialize %s event: %w", event.GetType(), err)
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set("type", event.GetType().String())
		messages = append(messages, msg)
	}

	return n.pubsub.Publish(domain.LotteryTopic, messages...)
}

// Subscribe returns a channel of every event published from now on. The
// channel is closed once ctx is done or the notifier is closed. A reader
// that falls behind loses events instead of holding back the publisher.
func (n *notifier) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	messages, err := n.pubsub.Subscribe(ctx, domain.LotteryTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s topic: %w", domain.LotteryTopic, err)
	}

	ch := make(chan domain.Event, subscriberBuffer)
	go func() {
		defer close(ch)

		for msg := range messages {
			event, err := domain.DeserializeEvent(msg.Payload)
			msg.Ack()
			if err != nil {
				log.WithError(err).Warnf("notifier: dropping malformed message %s", msg.UUID)
				continue
			}

			select {
			case ch <- event:
			case <-ctx.Done():
				return
			default:
				log.Warnf(
					"notifier: subscriber is lagging behind, dropped %s event",
					event.GetType(),
				)
			}
		}
	}()

	return ch, nil
}

func (n *notifier) Close() error {
	return n.pubsub.Close()
}
