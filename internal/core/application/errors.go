package application

import "errors"

var (
	ErrServiceNotStarted = errors.New("lottery service not started")
	ErrNoPendingDraw     = errors.New("no draw waiting for random words")
	ErrManualFulfillment = errors.New("randomness provider does not support manual fulfillment")
)
