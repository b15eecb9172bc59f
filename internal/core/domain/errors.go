package domain

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInsufficientEntranceFee = errors.New("insufficient entrance fee")
	ErrLotteryNotOpen          = errors.New("lottery not open")
	ErrUpkeepNotNeeded         = errors.New("upkeep not needed")
	ErrUnauthorizedCaller      = errors.New("only the randomness coordinator can fulfill")
	ErrUnknownRequest          = errors.New("nonexistent request")
	ErrPayoutTransferFailed    = errors.New("payout transfer failed")
	ErrIndexOutOfRange         = errors.New("player index out of range")
	ErrPaymentFailed           = errors.New("entrance fee payment failed")
	ErrMissingRandomWords      = errors.New("missing random words")
	ErrInvalidLotteryConfig    = errors.New("invalid lottery config")
)

// UpkeepNotNeededError reports why a draw could not be requested.
type UpkeepNotNeededError struct {
	Pot     *big.Int
	Players int
	State   LotteryState
}

func (e UpkeepNotNeededError) Error() string {
	return fmt.Sprintf(
		"%s (pot: %s, players: %d, state: %s)",
		ErrUpkeepNotNeeded, e.Pot, e.Players, e.State,
	)
}

func (e UpkeepNotNeededError) Is(target error) bool {
	return target == ErrUpkeepNotNeeded
}
