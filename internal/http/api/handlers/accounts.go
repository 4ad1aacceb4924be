package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oHaruki/SmurfMGT/internal/riot"
	"github.com/oHaruki/SmurfMGT/internal/store"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "userID"

// AccountHandler manages the game account endpoints.
type AccountHandler struct {
	store *store.Manager
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(mgr *store.Manager) *AccountHandler {
	return &AccountHandler{store: mgr}
}

func currentUserID(c *gin.Context) uint64 {
	return c.GetUint64(ContextUserID)
}

func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// createAccountRequest defines the request body for account creation.
type createAccountRequest struct {
	LoginUsername string `json:"login_username"`
	LoginPassword string `json:"login_password"`
	SummonerName  string `json:"summoner_name"`
	Server        string `json:"server"`
}

// updateAccountRequest defines the request body for account updates. All
// fields are optional; absent fields are left untouched.
type updateAccountRequest struct {
	Favorite     *bool   `json:"favorite"`
	Rank         *string `json:"rank"`
	RankDivision *string `json:"rank_division"`
}

// List returns every account of the authenticated user.
func (h *AccountHandler) List(c *gin.Context) {
	views, errList := h.store.ListAccounts(c.Request.Context(), currentUserID(c))
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list accounts failed"})
		return
	}
	c.JSON(http.StatusOK, views)
}

// Create stores a new game account.
func (h *AccountHandler) Create(c *gin.Context) {
	var body createAccountRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	params := store.NewAccountParams{
		OwnerID:       currentUserID(c),
		LoginUsername: strings.TrimSpace(body.LoginUsername),
		LoginPassword: body.LoginPassword,
		SummonerName:  strings.TrimSpace(body.SummonerName),
		Server:        strings.ToLower(strings.TrimSpace(body.Server)),
	}
	if params.LoginUsername == "" || params.LoginPassword == "" || params.SummonerName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "login_username, login_password and summoner_name are required"})
		return
	}
	if !riot.ValidServer(params.Server) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown server"})
		return
	}

	view, errCreate := h.store.CreateAccount(c.Request.Context(), params)
	if errCreate != nil {
		if errors.Is(errCreate, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create account failed"})
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Get returns one account of the authenticated user.
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	view, errGet := h.store.GetAccount(c.Request.Context(), id, currentUserID(c))
	if errGet != nil {
		if errors.Is(errGet, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get account failed"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// Update applies a partial update to one account.
func (h *AccountHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body updateAccountRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	patch := store.AccountPatch{
		Favorite:     body.Favorite,
		Rank:         body.Rank,
		RankDivision: body.RankDivision,
	}
	view, errUpdate := h.store.UpdateAccount(c.Request.Context(), id, currentUserID(c), patch)
	if errUpdate != nil {
		if errors.Is(errUpdate, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update account failed"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// Delete removes one account.
func (h *AccountHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	errDelete := h.store.DeleteAccount(c.Request.Context(), id, currentUserID(c))
	if errDelete != nil {
		if errors.Is(errDelete, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete account failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// AddFlair assigns a flair to one account.
func (h *AccountHandler) AddFlair(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	flairID, ok := parseIDParam(c, "flairId")
	if !ok {
		return
	}
	errAdd := h.store.AddFlair(c.Request.Context(), id, currentUserID(c), flairID)
	if errAdd != nil {
		switch {
		case errors.Is(errAdd, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "account or flair not found"})
		case errors.Is(errAdd, store.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "flair already assigned"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "assign flair failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "assigned"})
}

// RemoveFlair removes a flair assignment. Removing an absent assignment
// succeeds.
func (h *AccountHandler) RemoveFlair(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	flairID, ok := parseIDParam(c, "flairId")
	if !ok {
		return
	}
	errRemove := h.store.RemoveFlair(c.Request.Context(), id, currentUserID(c), flairID)
	if errRemove != nil {
		if errors.Is(errRemove, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove flair failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
