package application

import (
	"context"
	"math/big"

	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

type Service interface {
	Start() error
	Stop()
	Join(ctx context.Context, player common.Address, amount *big.Int) error
	CheckUpkeep(ctx context.Context) (*domain.UpkeepCheck, error)
	PerformUpkeep(ctx context.Context) (*big.Int, error)
	FulfillRandomWords(
		ctx context.Context, caller common.Address, requestId *big.Int, randomWords []*big.Int,
	) error
	GetInfo(ctx context.Context) (*LotteryInfo, error)
	GetPlayer(ctx context.Context, index int) (common.Address, error)
	GetPlayers(ctx context.Context) ([]common.Address, error)
	GetDraws(ctx context.Context) ([]domain.Draw, error)
	GetEventsChannel(ctx context.Context) (<-chan domain.Event, error)
}

type LotteryInfo struct {
	Id                   string
	Address              common.Address
	State                domain.LotteryState
	EntranceFee          *big.Int
	Interval             int64
	StartingTimestamp    int64
	LastDrawTimestamp    int64
	NumberOfPlayers      int
	Pot                  *big.Int
	Balance              *big.Int
	PendingRequestId     *big.Int
	LastWinner           common.Address
	Coordinator          common.Address
	KeyHash              common.Hash
	SubscriptionId       uint64
	CallbackGasLimit     uint32
	RequestConfirmations uint16
	NumWords             uint32
}
