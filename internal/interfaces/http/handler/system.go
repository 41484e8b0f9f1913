package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolReporter is implemented by stores that expose connection pool usage
type PoolReporter interface {
	Stats() (persistence.ConnectionStats, error)
}

// SystemHandler handles health and liveness endpoints
type SystemHandler struct {
	BaseHandler
	db          Pinger
	pingTimeout time.Duration
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(db Pinger) *SystemHandler {
	return &SystemHandler{
		db:          db,
		pingTimeout: 2 * time.Second,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`

	Pool *persistence.ConnectionStats `json:"pool,omitempty"`
}

// Health handles GET /health. It answers 503 when the database is unreachable.
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Database:  "up",
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.pingTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		logger.GetGinLogger(c).Warn("Health check: database unreachable", zap.Error(err))
		resp.Status = "degraded"
		resp.Database = "down"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	if reporter, ok := h.db.(PoolReporter); ok {
		if stats, err := reporter.Stats(); err == nil {
			resp.Pool = &stats
		}
	}
	c.JSON(http.StatusOK, resp)
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping godoc
// @ID           ping
// @Summary      Liveness check
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=PingResponse}
// @Router       /ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
