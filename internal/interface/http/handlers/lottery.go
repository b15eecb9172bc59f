package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/ark-network/lottery/internal/core/application"
	"github.com/ark-network/lottery/pkg/units"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type lotteryHandler struct {
	svc application.Service
}

func NewLotteryHandler(svc application.Service) *lotteryHandler {
	return &lotteryHandler{svc}
}

func (h *lotteryHandler) GetInfo(c *gin.Context) {
	info, err := h.svc.GetInfo(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, InfoResponse{
		Id:                   info.Id,
		Address:              info.Address.Hex(),
		State:                info.State.String(),
		StateCode:            int(info.State),
		EntranceFee:          intString(info.EntranceFee),
		Interval:             info.Interval,
		StartingTimestamp:    info.StartingTimestamp,
		LastDrawTimestamp:    info.LastDrawTimestamp,
		NumberOfPlayers:      info.NumberOfPlayers,
		Pot:                  intString(info.Pot),
		Balance:              intString(info.Balance),
		PendingRequestId:     intString(info.PendingRequestId),
		LastWinner:           info.LastWinner.Hex(),
		Coordinator:          info.Coordinator.Hex(),
		KeyHash:              info.KeyHash.Hex(),
		SubscriptionId:       info.SubscriptionId,
		CallbackGasLimit:     info.CallbackGasLimit,
		RequestConfirmations: info.RequestConfirmations,
		NumWords:             info.NumWords,
	})
}

func (h *lotteryHandler) GetPlayers(c *gin.Context) {
	players, err := h.svc.GetPlayers(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, PlayersResponse{addresses(players)})
}

func (h *lotteryHandler) GetPlayer(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "invalid player index %q", c.Param("index"))
		return
	}

	player, err := h.svc.GetPlayer(c.Request.Context(), index)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, PlayerResponse{index, player.Hex()})
}

func (h *lotteryHandler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %s", err)
		return
	}

	player, err := parseAddress(req.Player)
	if err != nil {
		badRequest(c, "%s", err)
		return
	}
	value, err := units.ParseEther(req.Value)
	if err != nil {
		badRequest(c, "invalid value: %s", err)
		return
	}

	if err := h.svc.Join(c.Request.Context(), player, value); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, JoinResponse{player.Hex(), value.String()})
}

func (h *lotteryHandler) CheckUpkeep(c *gin.Context) {
	check, err := h.svc.CheckUpkeep(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, UpkeepResponse{
		UpkeepNeeded: check.Needed,
		IsOpen:       check.IsOpen,
		TimePassed:   check.TimePassed,
		HasPlayers:   check.HasPlayers,
		HasBalance:   check.HasBalance,
	})
}

func (h *lotteryHandler) PerformUpkeep(c *gin.Context) {
	requestId, err := h.svc.PerformUpkeep(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, RequestIdResponse{requestId.String()})
}

func (h *lotteryHandler) GetDraws(c *gin.Context) {
	draws, err := h.svc.GetDraws(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := DrawsResponse{make([]DrawResponse, 0, len(draws))}
	for _, d := range draws {
		resp.Draws = append(resp.Draws, toDrawResponse(d))
	}
	c.JSON(http.StatusOK, resp)
}

// GetEvents streams the lottery events as server-sent events until the
// client goes away.
func (h *lotteryHandler) GetEvents(c *gin.Context) {
	events, err := h.svc.GetEventsChannel(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Stream(func(w io.Writer) bool {
		event, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(event.GetType().String(), toEventResponse(event))
		return true
	})
	log.Debug("closed events stream")
}
