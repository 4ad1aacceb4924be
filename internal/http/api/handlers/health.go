package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	conn *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(conn *gorm.DB) *HealthHandler {
	return &HealthHandler{conn: conn}
}

// Healthz reports process liveness and the relational backend state. The
// process is healthy even mid-outage; the fallback store keeps serving.
func (h *HealthHandler) Healthz(c *gin.Context) {
	database := "up"
	if h.conn == nil {
		database = "down"
	} else if sqlDB, errDB := h.conn.DB(); errDB != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		database = "down"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": database})
}
