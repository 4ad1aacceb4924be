package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oHaruki/SmurfMGT/internal/store"
)

// FlairHandler serves the flair catalog.
type FlairHandler struct {
	store *store.Manager
}

// NewFlairHandler constructs a FlairHandler.
func NewFlairHandler(mgr *store.Manager) *FlairHandler {
	return &FlairHandler{store: mgr}
}

// List returns the flair catalog.
func (h *FlairHandler) List(c *gin.Context) {
	catalog, errList := h.store.ListFlairs(c.Request.Context())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list flairs failed"})
		return
	}
	c.JSON(http.StatusOK, catalog)
}
