package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oHaruki/SmurfMGT/internal/riot"
)

// RiotHandler proxies summoner lookups to the Riot API.
type RiotHandler struct {
	client *riot.Client
}

// NewRiotHandler constructs a RiotHandler.
func NewRiotHandler(client *riot.Client) *RiotHandler {
	return &RiotHandler{client: client}
}

// Summoner resolves a summoner profile with its ranked standings.
func (h *RiotHandler) Summoner(c *gin.Context) {
	if !h.client.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "riot api key not configured"})
		return
	}
	server := c.Param("server")
	name := strings.TrimSpace(c.Param("summonerName"))

	profile, errFetch := h.client.Summoner(c.Request.Context(), server, name)
	if errFetch != nil {
		switch {
		case errors.Is(errFetch, riot.ErrUnknownServer):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown server"})
		case errors.Is(errFetch, riot.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "summoner not found"})
		case errors.Is(errFetch, riot.ErrUnauthorized):
			c.JSON(http.StatusBadGateway, gin.H{"error": "riot api rejected the configured key"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "riot api unavailable"})
		}
		return
	}
	c.JSON(http.StatusOK, profile)
}
