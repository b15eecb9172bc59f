package handlers

import (
	"net/http"

	"github.com/ark-network/lottery/internal/core/application"
	"github.com/ark-network/lottery/pkg/units"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type adminHandler struct {
	svc application.AdminService
}

func NewAdminHandler(svc application.AdminService) *adminHandler {
	return &adminHandler{svc}
}

func (h *adminHandler) Mint(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %s", err)
		return
	}

	address, err := parseAddress(req.Address)
	if err != nil {
		badRequest(c, "%s", err)
		return
	}
	amount, err := units.ParseEther(req.Amount)
	if err != nil || amount.Sign() <= 0 {
		badRequest(c, "invalid amount %q", req.Amount)
		return
	}

	if err := h.svc.Mint(c.Request.Context(), address, amount); err != nil {
		abortWithError(c, err)
		return
	}
	h.balance(c, address)
}

func (h *adminHandler) GetBalance(c *gin.Context) {
	address, err := parseAddress(c.Param("address"))
	if err != nil {
		badRequest(c, "%s", err)
		return
	}
	h.balance(c, address)
}

func (h *adminHandler) Fulfill(c *gin.Context) {
	var req FulfillRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request: %s", err)
			return
		}
	}

	randomWords, err := parseRandomWords(req.RandomWords)
	if err != nil {
		badRequest(c, "%s", err)
		return
	}

	requestId, err := h.svc.FulfillPending(c.Request.Context(), randomWords)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, RequestIdResponse{requestId.String()})
}

func (h *adminHandler) balance(c *gin.Context, address common.Address) {
	balance, err := h.svc.Balance(c.Request.Context(), address)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{
		Address: address.Hex(),
		Balance: balance.String(),
		Ether:   units.FormatEther(balance),
	})
}
