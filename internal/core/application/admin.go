package application

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ark-network/lottery/internal/core/ports"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

type AdminService interface {
	Mint(ctx context.Context, account common.Address, amount *big.Int) error
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	FulfillPending(ctx context.Context, randomWords []*big.Int) (*big.Int, error)
}

type adminService struct {
	svc      Service
	bank     ports.Bank
	provider ports.RandomnessProvider
}

func NewAdminService(
	svc Service, bank ports.Bank, provider ports.RandomnessProvider,
) AdminService {
	return &adminService{svc, bank, provider}
}

func (a *adminService) Mint(
	ctx context.Context, account common.Address, amount *big.Int,
) error {
	if err := a.bank.Mint(ctx, account, amount); err != nil {
		return err
	}
	log.Debugf("minted %s to %s", amount, account.Hex())
	return nil
}

func (a *adminService) Balance(
	ctx context.Context, account common.Address,
) (*big.Int, error) {
	return a.bank.BalanceOf(ctx, account)
}

// FulfillPending makes the randomness provider deliver the words of the
// pending draw right away, the given ones if any.
func (a *adminService) FulfillPending(
	ctx context.Context, randomWords []*big.Int,
) (*big.Int, error) {
	fulfiller, ok := a.provider.(ports.ManualFulfiller)
	if !ok {
		return nil, ErrManualFulfillment
	}

	info, err := a.svc.GetInfo(ctx)
	if err != nil {
		return nil, err
	}
	requestId := info.PendingRequestId
	if requestId == nil {
		return nil, ErrNoPendingDraw
	}

	if len(randomWords) > 0 {
		err = fulfiller.FulfillRandomWordsWithOverride(ctx, requestId, randomWords)
	} else {
		err = fulfiller.FulfillRandomWords(ctx, requestId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fulfill request %s: %w", requestId, err)
	}
	return requestId, nil
}
