package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Bank holds the native balances of every account, lottery included.
type Bank interface {
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Mint(ctx context.Context, account common.Address, amount *big.Int) error
}
