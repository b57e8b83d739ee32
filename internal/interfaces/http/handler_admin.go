package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"imagebot/internal/entities"
	"imagebot/internal/interfaces"
	"imagebot/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// statusClientClosedRequest is the nginx convention for a client that went
// away before the response was written.
const statusClientClosedRequest = 499

type AdminHandler struct {
	admin    *usecases.AdminUsecase
	quota    *usecases.QuotaUsecase
	notifier interfaces.Messenger
	log      zerolog.Logger
}

// NewAdminHandler wires the operator endpoints. notifier may be nil.
func NewAdminHandler(admin *usecases.AdminUsecase, quota *usecases.QuotaUsecase, notifier interfaces.Messenger, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		quota:    quota,
		notifier: notifier,
		log:      log.With().Str("component", "admin_api").Logger(),
	}
}

type userResponse struct {
	ID            int64     `json:"id"`
	DisplayName   string    `json:"display_name"`
	CreatedOn     time.Time `json:"created_on"`
	PaidBalance   int64     `json:"paid_balance"`
	FreeRemaining *int      `json:"free_remaining_today,omitempty"`
}

func toUserResponse(u entities.User) userResponse {
	return userResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		CreatedOn:   u.CreatedOn,
		PaidBalance: u.PaidBalance,
	}
}

type adjustRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// ListUsers returns users ordered by paid balance
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.admin.ListUsers(c.Request.Context(), ParseLimit(c.Query("limit"), 50))
	if err != nil {
		h.writeError(c, err)
		return
	}
	result := make([]userResponse, len(users))
	for i, u := range users {
		result[i] = toUserResponse(u)
	}
	c.JSON(http.StatusOK, gin.H{"users": result})
}

// GetUser returns balance and today's free allowance for one user
func (h *AdminHandler) GetUser(c *gin.Context) {
	userID, err := ParseUserID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.admin.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	free, err := h.quota.FreeRemainingToday(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := toUserResponse(*user)
	resp.FreeRemaining = &free
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) Credit(c *gin.Context) {
	userID, amount, ok := h.bindAdjustment(c)
	if !ok {
		return
	}
	balance, err := h.admin.Credit(c.Request.Context(), userID, amount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	notified := true
	if h.notifier != nil {
		msg := fmt.Sprintf("🎉 You received %d generations!\n💰 Balance: %d", amount, balance)
		if err := h.notifier.SendMessage(userID, msg); err != nil {
			h.log.Warn().Err(err).Int64("user_id", userID).Msg("credit notification failed")
			notified = false
		}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "paid_balance": balance, "notified": notified})
}

func (h *AdminHandler) Debit(c *gin.Context) {
	userID, amount, ok := h.bindAdjustment(c)
	if !ok {
		return
	}
	balance, err := h.admin.Debit(c.Request.Context(), userID, amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "paid_balance": balance})
}

func (h *AdminHandler) bindAdjustment(c *gin.Context) (int64, int64, bool) {
	userID, err := ParseUserID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, 0, false
	}
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return 0, 0, false
	}
	if err := ValidAmount(req.Amount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, 0, false
	}
	return userID, req.Amount, true
}

func (h *AdminHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entities.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, entities.ErrInsufficientBalance):
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient balance"})
	case errors.Is(err, entities.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
	case errors.Is(err, context.Canceled):
		h.log.Debug().Err(err).Msg("client went away")
		c.AbortWithStatus(statusClientClosedRequest)
	case errors.Is(err, context.DeadlineExceeded):
		h.log.Warn().Err(err).Msg("admin request timed out")
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out"})
	case errors.Is(err, entities.ErrStoreUnavailable):
		h.log.Error().Err(err).Msg("store unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
	default:
		h.log.Error().Err(err).Msg("admin request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
