package domain

import (
	"context"
	"math/big"
)

type LotteryEventRepository interface {
	Save(ctx context.Context, id string, events ...Event) error
	Load(ctx context.Context, id string) (*Lottery, error)
	Close()
}

type DrawRepository interface {
	AddDraw(ctx context.Context, draw Draw) error
	GetDraws(ctx context.Context, lotteryId string) ([]Draw, error)
	GetDrawWithRequestId(ctx context.Context, requestId *big.Int) (*Draw, error)
	Close()
}
