// Package app boots the server: configuration, database, crypto, stores
// and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/oHaruki/SmurfMGT/internal/config"
	"github.com/oHaruki/SmurfMGT/internal/db"
	"github.com/oHaruki/SmurfMGT/internal/http/api"
	"github.com/oHaruki/SmurfMGT/internal/ratelimit"
	"github.com/oHaruki/SmurfMGT/internal/riot"
	"github.com/oHaruki/SmurfMGT/internal/secrets"
	"github.com/oHaruki/SmurfMGT/internal/security"
	"github.com/oHaruki/SmurfMGT/internal/store"
)

// RunServer boots the account manager server. A database that cannot be
// opened or migrated is logged and tolerated; the in-process fallback
// store carries traffic until it recovers.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	if cfg.JWT.Secret == "" {
		return errors.New("app: jwt secret is required (set jwt.secret or JWT_SECRET)")
	}

	conn := openDatabase(cfg.DatabaseDSN)

	cipher, errCipher := secrets.NewCipher(cfg.EncryptionKey)
	if errCipher != nil {
		return fmt.Errorf("app: encryption key: %w", errCipher)
	}
	if cfg.EncryptionKey == "" {
		log.Warn("no encryption key configured, new credentials will be stored in plaintext mode")
	}

	mgr := store.NewManager(store.NewGormStore(conn), store.NewMemoryStore(), cipher)
	tokens := security.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Expiry)
	limiter := ratelimit.NewManager(cfg.RateLimit, nil, nil)
	riotClient := riot.NewClient(cfg.RiotAPIKey, conn)
	if !riotClient.Configured() {
		log.Warn("no riot api key configured, summoner lookups are disabled")
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	api.RegisterRoutes(engine, mgr, tokens, limiter, riotClient, conn)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("server listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// openDatabase opens and migrates the relational backend, returning nil on
// any failure so the caller runs in fallback-only mode.
func openDatabase(dsn string) *gorm.DB {
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		log.WithError(errOpen).Warn("database unreachable, running on the in-process fallback store")
		return nil
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		log.WithError(errMigrate).Warn("migration failed, continuing against the existing schema")
	}
	return conn
}

// requestLogger logs one line per request the way the rest of the process
// logs: structured fields through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}).Info("request")
	}
}
