package watermillnotifier_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ark-network/lottery/internal/core/domain"
	watermillnotifier "github.com/ark-network/lottery/internal/infrastructure/notifier/watermill"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	fee   = big.NewInt(10_000_000_000_000_000)
)

func TestNotifier(t *testing.T) {
	t.Run("publish without subscribers", func(t *testing.T) {
		notifier := watermillnotifier.NewNotifier()
		defer notifier.Close()

		err := notifier.Publish(context.Background(), domain.PlayerJoined{
			Id: "lottery", Player: alice, Amount: fee, Timestamp: 1,
		})
		require.NoError(t, err)
		require.NoError(t, notifier.Publish(context.Background()))
	})

	t.Run("subscribers receive events in order", func(t *testing.T) {
		notifier := watermillnotifier.NewNotifier()
		defer notifier.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		first, err := notifier.Subscribe(ctx)
		require.NoError(t, err)
		second, err := notifier.Subscribe(ctx)
		require.NoError(t, err)

		events := []domain.Event{
			domain.PlayerJoined{Id: "lottery", Player: alice, Amount: fee, Timestamp: 1},
			domain.DrawRequested{
				Id:        "lottery",
				RequestId: big.NewInt(1),
				Players:   []common.Address{alice},
				Pot:       fee,
				Timestamp: 31,
			},
			domain.WinnerPicked{
				Id:          "lottery",
				RequestId:   big.NewInt(1),
				Winner:      alice,
				RandomWord:  big.NewInt(777),
				Prize:       fee,
				PlayerCount: 1,
				Timestamp:   32,
			},
		}
		require.NoError(t, notifier.Publish(ctx, events[0]))
		require.NoError(t, notifier.Publish(ctx, events[1:]...))

		for _, ch := range []<-chan domain.Event{first, second} {
			for _, expected := range events {
				select {
				case event := <-ch:
					require.Equal(t, expected.GetType(), event.GetType())
				case <-time.After(2 * time.Second):
					t.Fatalf("timeout waiting for %s event", expected.GetType())
				}
			}
		}
	})

	t.Run("subscription ends with context", func(t *testing.T) {
		notifier := watermillnotifier.NewNotifier()
		defer notifier.Close()

		ctx, cancel := context.WithCancel(context.Background())
		ch, err := notifier.Subscribe(ctx)
		require.NoError(t, err)

		cancel()
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-ch:
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
	})
}
