package handlers

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ark-network/lottery/internal/core/application"
	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

var statusByError = []struct {
	err    error
	status int
}{
	{domain.ErrInsufficientEntranceFee, http.StatusBadRequest},
	{domain.ErrPaymentFailed, http.StatusBadRequest},
	{domain.ErrMissingRandomWords, http.StatusBadRequest},
	{domain.ErrInvalidLotteryConfig, http.StatusBadRequest},
	{domain.ErrUnauthorizedCaller, http.StatusForbidden},
	{domain.ErrIndexOutOfRange, http.StatusNotFound},
	{domain.ErrLotteryNotOpen, http.StatusConflict},
	{domain.ErrUpkeepNotNeeded, http.StatusConflict},
	{domain.ErrUnknownRequest, http.StatusConflict},
	{application.ErrNoPendingDraw, http.StatusConflict},
	{domain.ErrPayoutTransferFailed, http.StatusBadGateway},
	{application.ErrManualFulfillment, http.StatusNotImplemented},
	{application.ErrServiceNotStarted, http.StatusServiceUnavailable},
}

func abortWithError(c *gin.Context, err error) {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			c.AbortWithStatusJSON(e.status, ErrorResponse{err.Error()})
			return
		}
	}
	log.WithError(err).Warnf("%s %s failed", c.Request.Method, c.FullPath())
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{err.Error()})
}

func badRequest(c *gin.Context, format string, args ...interface{}) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{fmt.Sprintf(format, args...)})
}

func parseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid address %q", address)
	}
	return common.HexToAddress(address), nil
}

func parseRandomWords(words []string) ([]*big.Int, error) {
	randomWords := make([]*big.Int, 0, len(words))
	for _, w := range words {
		word, ok := new(big.Int).SetString(w, 0)
		if !ok || word.Sign() < 0 {
			return nil, fmt.Errorf("invalid random word %q", w)
		}
		randomWords = append(randomWords, word)
	}
	return randomWords, nil
}

func intString(n *big.Int) string {
	if n == nil {
		return ""
	}
	return n.String()
}

func toDrawResponse(draw domain.Draw) DrawResponse {
	return DrawResponse{
		RequestId:   intString(draw.RequestId),
		Winner:      draw.Winner.Hex(),
		WinnerIndex: draw.WinnerIndex,
		RandomWord:  intString(draw.RandomWord),
		Prize:       intString(draw.Prize),
		PlayerCount: draw.PlayerCount,
		RequestedAt: draw.RequestedAt,
		CompletedAt: draw.CompletedAt,
	}
}

func toEventResponse(event domain.Event) EventResponse {
	resp := EventResponse{Type: event.GetType().String()}
	switch e := event.(type) {
	case domain.LotteryStarted:
		resp.Timestamp = e.Timestamp
	case domain.PlayerJoined:
		resp.Player = e.Player.Hex()
		resp.Amount = intString(e.Amount)
		resp.Timestamp = e.Timestamp
	case domain.DrawRequested:
		resp.RequestId = intString(e.RequestId)
		resp.Players = addresses(e.Players)
		resp.Amount = intString(e.Pot)
		resp.Timestamp = e.Timestamp
	case domain.WinnerPicked:
		resp.RequestId = intString(e.RequestId)
		resp.Winner = e.Winner.Hex()
		resp.Prize = intString(e.Prize)
		resp.Timestamp = e.Timestamp
	}
	return resp
}

func addresses(list []common.Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Hex())
	}
	return out
}
