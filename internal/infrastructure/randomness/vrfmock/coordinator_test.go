package vrfmock_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ark-network/lottery/internal/core/ports"
	"github.com/ark-network/lottery/internal/infrastructure/randomness/vrfmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	coordinatorAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	deployer        = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	consumerAddr    = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	baseFee, _      = new(big.Int).SetString("24000000000000000000", 10)
	gasPriceLink    = big.NewInt(1_000_000_000)
	fundAmount, _   = new(big.Int).SetString("1000000000000000000000", 10)
)

type consumer struct {
	err       error
	calls     int
	caller    common.Address
	requestId *big.Int
	words     []*big.Int
}

func (c *consumer) FulfillRandomWords(
	_ context.Context, caller common.Address, requestId *big.Int, words []*big.Int,
) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	c.caller = caller
	c.requestId = requestId
	c.words = words
	return nil
}

func TestCoordinator(t *testing.T) {
	ctx := context.Background()

	t.Run("subscription", func(t *testing.T) {
		coordinator := vrfmock.NewCoordinator(coordinatorAddr, baseFee, gasPriceLink)

		subId := coordinator.CreateSubscription(deployer)
		require.Equal(t, uint64(1), subId)
		require.Equal(t, uint64(2), coordinator.CreateSubscription(deployer))

		require.NoError(t, coordinator.FundSubscription(subId, fundAmount))
		require.NoError(t, coordinator.RegisterConsumer(subId, consumerAddr, &consumer{}))

		sub, err := coordinator.GetSubscription(subId)
		require.NoError(t, err)
		require.Equal(t, deployer, sub.Owner)
		require.Equal(t, fundAmount, sub.Balance)
		require.Equal(t, []common.Address{consumerAddr}, sub.Consumers)

		require.NoError(t, coordinator.RemoveConsumer(subId, consumerAddr))
		sub, err = coordinator.GetSubscription(subId)
		require.NoError(t, err)
		require.Empty(t, sub.Consumers)

		err = coordinator.RemoveConsumer(subId, consumerAddr)
		require.ErrorIs(t, err, vrfmock.ErrInvalidConsumer)
		err = coordinator.FundSubscription(10, fundAmount)
		require.ErrorIs(t, err, vrfmock.ErrInvalidSubscription)
		_, err = coordinator.GetSubscription(10)
		require.ErrorIs(t, err, vrfmock.ErrInvalidSubscription)
	})

	t.Run("request", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			coordinator, _, subId := newCoordinator(t)

			for i := int64(1); i <= 3; i++ {
				requestId, err := coordinator.RequestRandomWords(ctx, newRequest(subId))
				require.NoError(t, err)
				require.Equal(t, big.NewInt(i), requestId)
			}
			require.Len(t, coordinator.PendingRequests(), 3)
		})

		t.Run("after reserved ids", func(t *testing.T) {
			coordinator, _, subId := newCoordinator(t)

			coordinator.ReserveRequestIds(big.NewInt(4))
			// lower ids never move the counter back
			coordinator.ReserveRequestIds(big.NewInt(2))
			coordinator.ReserveRequestIds(nil)

			requestId, err := coordinator.RequestRandomWords(ctx, newRequest(subId))
			require.NoError(t, err)
			require.Equal(t, big.NewInt(5), requestId)
		})

		t.Run("invalid", func(t *testing.T) {
			coordinator, _, subId := newCoordinator(t)

			fixtures := []struct {
				name        string
				request     func() ports.RandomWordsRequest
				expectedErr string
			}{
				{
					name: "unknown subscription",
					request: func() ports.RandomWordsRequest {
						req := newRequest(subId)
						req.SubscriptionId = 99
						return req
					},
					expectedErr: "subscription 99: invalid subscription",
				},
				{
					name: "unknown consumer",
					request: func() ports.RandomWordsRequest {
						req := newRequest(subId)
						req.Consumer = deployer
						return req
					},
					expectedErr: "consumer 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266 for subscription 1: invalid consumer",
				},
				{
					name: "gas limit too big",
					request: func() ports.RandomWordsRequest {
						req := newRequest(subId)
						req.CallbackGasLimit = vrfmock.MaxCallbackGas + 1
						return req
					},
					expectedErr: "gas limit too big: 2500001, max 2500000",
				},
				{
					name: "too many words",
					request: func() ports.RandomWordsRequest {
						req := newRequest(subId)
						req.NumWords = vrfmock.MaxNumWords + 1
						return req
					},
					expectedErr: "invalid num words: 501, max 500",
				},
			}

			for _, f := range fixtures {
				t.Run(f.name, func(t *testing.T) {
					requestId, err := coordinator.RequestRandomWords(ctx, f.request())
					require.EqualError(t, err, f.expectedErr)
					require.Nil(t, requestId)
				})
			}
		})
	})

	t.Run("fulfill", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			coordinator, c, subId := newCoordinator(t)
			requestId, err := coordinator.RequestRandomWords(ctx, newRequest(subId))
			require.NoError(t, err)

			require.NoError(t, coordinator.FulfillRandomWords(ctx, requestId))
			require.Equal(t, coordinatorAddr, c.caller)
			require.Equal(t, requestId, c.requestId)
			require.Len(t, c.words, 1)

			expected := new(big.Int).SetBytes(crypto.Keccak256(
				common.LeftPadBytes([]byte{1}, 32), make([]byte, 32),
			))
			require.Equal(t, expected, c.words[0])
			require.Empty(t, coordinator.PendingRequests())

			// base fee + callback gas limit * gas price link
			payment := new(big.Int).Add(baseFee, big.NewInt(500_000*1_000_000_000))
			sub, err := coordinator.GetSubscription(subId)
			require.NoError(t, err)
			require.Equal(t, new(big.Int).Sub(fundAmount, payment), sub.Balance)

			err = coordinator.FulfillRandomWords(ctx, requestId)
			require.ErrorIs(t, err, vrfmock.ErrNonexistentRequest)
		})

		t.Run("with override", func(t *testing.T) {
			coordinator, c, subId := newCoordinator(t)
			requestId, err := coordinator.RequestRandomWords(ctx, newRequest(subId))
			require.NoError(t, err)

			words := []*big.Int{big.NewInt(7)}
			require.NoError(t, coordinator.FulfillRandomWordsWithOverride(ctx, requestId, words))
			require.Equal(t, words, c.words)

			requestId, err = coordinator.RequestRandomWords(ctx, newRequest(subId))
			require.NoError(t, err)
			err = coordinator.FulfillRandomWordsWithOverride(
				ctx, requestId, []*big.Int{big.NewInt(1), big.NewInt(2)},
			)
			require.ErrorIs(t, err, vrfmock.ErrInvalidRandomWords)
		})

		t.Run("resumed request", func(t *testing.T) {
			coordinator, c, subId := newCoordinator(t)

			err := coordinator.ResumeRequest(big.NewInt(7), newRequest(99))
			require.ErrorIs(t, err, vrfmock.ErrInvalidSubscription)
			require.NoError(t, coordinator.ResumeRequest(big.NewInt(7), newRequest(subId)))
			require.Len(t, coordinator.PendingRequests(), 1)

			require.NoError(t, coordinator.FulfillRandomWords(ctx, big.NewInt(7)))
			require.Equal(t, big.NewInt(7), c.requestId)

			requestId, err := coordinator.RequestRandomWords(ctx, newRequest(subId))
			require.NoError(t, err)
			require.Equal(t, big.NewInt(8), requestId)
		})

		t.Run("nonexistent request", func(t *testing.T) {
			coordinator, c, _ := newCoordinator(t)
			for _, id := range []*big.Int{nil, big.NewInt(0), big.NewInt(1)} {
				err := coordinator.FulfillRandomWords(ctx, id)
				require.ErrorIs(t, err, vrfmock.ErrNonexistentRequest)
			}
			require.Zero(t, c.calls)
		})

		t.Run("consumer rejects", func(t *testing.T) {
			coordinator, c, subId := newCoordinator(t)
			requestId, err := coordinator.RequestRandomWords(ctx, newRequest(subId))
			require.NoError(t, err)

			rejected := errors.New("payout failed")
			c.err = rejected
			err = coordinator.FulfillRandomWords(ctx, requestId)
			require.ErrorIs(t, err, rejected)
			require.Len(t, coordinator.PendingRequests(), 1)

			sub, err := coordinator.GetSubscription(subId)
			require.NoError(t, err)
			require.Equal(t, fundAmount, sub.Balance)

			c.err = nil
			require.NoError(t, coordinator.FulfillRandomWords(ctx, requestId))
			require.Equal(t, 2, c.calls)
		})

		t.Run("insufficient balance", func(t *testing.T) {
			coordinator := vrfmock.NewCoordinator(coordinatorAddr, baseFee, gasPriceLink)
			subId := coordinator.CreateSubscription(deployer)
			c := &consumer{}
			require.NoError(t, coordinator.RegisterConsumer(subId, consumerAddr, c))

			requestId, err := coordinator.RequestRandomWords(ctx, newRequest(subId))
			require.NoError(t, err)

			err = coordinator.FulfillRandomWords(ctx, requestId)
			require.ErrorIs(t, err, vrfmock.ErrInsufficientBalance)
			require.Zero(t, c.calls)
		})
	})

	t.Run("derive random words", func(t *testing.T) {
		words := vrfmock.DeriveRandomWords(big.NewInt(1), 3)
		require.Len(t, words, 3)
		require.NotEqual(t, words[0], words[1])
		require.Equal(t, words, vrfmock.DeriveRandomWords(big.NewInt(1), 3))
	})
}

func newCoordinator(t *testing.T) (*vrfmock.Coordinator, *consumer, uint64) {
	coordinator := vrfmock.NewCoordinator(coordinatorAddr, baseFee, gasPriceLink)
	subId := coordinator.CreateSubscription(deployer)
	require.NoError(t, coordinator.FundSubscription(subId, fundAmount))

	c := &consumer{}
	require.NoError(t, coordinator.RegisterConsumer(subId, consumerAddr, c))
	return coordinator, c, subId
}

func newRequest(subId uint64) ports.RandomWordsRequest {
	return ports.RandomWordsRequest{
		KeyHash:              common.HexToHash("0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c"),
		SubscriptionId:       subId,
		RequestConfirmations: 3,
		CallbackGasLimit:     500_000,
		NumWords:             1,
		Consumer:             consumerAddr,
	}
}
