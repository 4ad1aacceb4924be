// Package api registers the HTTP surface: auth, account, flair and riot
// routes plus the session middleware in front of them.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/oHaruki/SmurfMGT/internal/http/api/handlers"
	"github.com/oHaruki/SmurfMGT/internal/ratelimit"
	"github.com/oHaruki/SmurfMGT/internal/riot"
	"github.com/oHaruki/SmurfMGT/internal/security"
	"github.com/oHaruki/SmurfMGT/internal/store"
)

// RegisterRoutes registers all routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, mgr *store.Manager, tokens *security.TokenIssuer, limiter *ratelimit.Manager, riotClient *riot.Client, conn *gorm.DB) {
	if r == nil || mgr == nil || tokens == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(conn)
	r.GET("/healthz", healthHandler.Healthz)

	apiGroup := r.Group("/api")

	authHandler := handlers.NewAuthHandler(mgr, tokens)
	authGroup := apiGroup.Group("/auth")
	authGroup.Use(rateLimitMiddleware(limiter))
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	authed := apiGroup.Group("")
	authed.Use(authMiddleware(tokens))

	accountHandler := handlers.NewAccountHandler(mgr)
	authed.GET("/accounts", accountHandler.List)
	authed.POST("/accounts", accountHandler.Create)
	authed.GET("/accounts/:id", accountHandler.Get)
	authed.PUT("/accounts/:id", accountHandler.Update)
	authed.DELETE("/accounts/:id", accountHandler.Delete)
	authed.POST("/accounts/:id/flairs/:flairId", accountHandler.AddFlair)
	authed.DELETE("/accounts/:id/flairs/:flairId", accountHandler.RemoveFlair)

	flairHandler := handlers.NewFlairHandler(mgr)
	authed.GET("/flairs", flairHandler.List)

	riotHandler := handlers.NewRiotHandler(riotClient)
	authed.GET("/riot/summoner/:server/:summonerName", riotHandler.Summoner)
}

// authMiddleware validates session JWTs and loads the user context.
func authMiddleware(tokens *security.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := security.FromAuthorizationHeader(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		claims, errJWT := tokens.Parse(token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(handlers.ContextUserID, claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}

// rateLimitMiddleware throttles a route group per client address.
func rateLimitMiddleware(limiter *ratelimit.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ratelimit.ClientKey(c.FullPath(), c.ClientIP())
		result, errAllow := limiter.AllowAuth(c.Request.Context(), key)
		if errAllow != nil {
			// Limiter trouble never blocks traffic.
			c.Next()
			return
		}
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
