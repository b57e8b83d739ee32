package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"imagebot/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Pinger reports whether the ledger store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	auth  *usecases.AuthUsecase
	store Pinger
}

func NewHandler(auth *usecases.AuthUsecase, store Pinger) *Handler {
	return &Handler{auth: auth, store: store}
}

func SetupRoutes(r *gin.Engine, h *Handler, admin *AdminHandler, middleware *Middleware, log zerolog.Logger) {
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20))
	r.Use(RequestLogger(log))

	r.GET("/healthz", h.Health)

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", h.Login)
	}

	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.AuthRequired())
	adminGroup.Use(middleware.RateLimitPerUser(rate.Limit(5), 20))
	{
		adminGroup.GET("/users", admin.ListUsers)
		adminGroup.GET("/users/:id", admin.GetUser)
		adminGroup.POST("/users/:id/credit", admin.Credit)
		adminGroup.POST("/users/:id/debit", admin.Debit)
	}
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Login(c *gin.Context) {
	var loginReq struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !h.auth.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin API disabled"})
		return
	}
	token, err := h.auth.Login(loginReq.Username, loginReq.Password)
	if errors.Is(err, usecases.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
