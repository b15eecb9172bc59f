package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type RandomWordsRequest struct {
	KeyHash              common.Hash
	SubscriptionId       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32
	Consumer             common.Address
}

// RandomnessProvider issues randomness requests and later delivers the
// words to the registered consumer, authenticating as Address().
type RandomnessProvider interface {
	Address() common.Address
	RegisterConsumer(
		subscriptionId uint64, address common.Address, consumer RandomnessConsumer,
	) error
	RequestRandomWords(ctx context.Context, req RandomWordsRequest) (*big.Int, error)
}

type RandomnessConsumer interface {
	FulfillRandomWords(
		ctx context.Context, caller common.Address, requestId *big.Int, randomWords []*big.Int,
	) error
}

// ManualFulfiller is implemented by providers that let an operator deliver
// the words of a pending request by hand.
type ManualFulfiller interface {
	FulfillRandomWords(ctx context.Context, requestId *big.Int) error
	FulfillRandomWordsWithOverride(
		ctx context.Context, requestId *big.Int, randomWords []*big.Int,
	) error
}
