package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/oHaruki/SmurfMGT/internal/config"
	"github.com/oHaruki/SmurfMGT/internal/db"
	"github.com/oHaruki/SmurfMGT/internal/ratelimit"
	"github.com/oHaruki/SmurfMGT/internal/riot"
	"github.com/oHaruki/SmurfMGT/internal/secrets"
	"github.com/oHaruki/SmurfMGT/internal/security"
	"github.com/oHaruki/SmurfMGT/internal/store"
)

const apiTestKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func newTestServer(t *testing.T, conn *gorm.DB, rateCfg config.RateLimitConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cipher, errCipher := secrets.NewCipher(apiTestKey)
	if errCipher != nil {
		t.Fatalf("new cipher: %v", errCipher)
	}
	mgr := store.NewManager(store.NewGormStore(conn), store.NewMemoryStore(), cipher)
	tokens := security.NewTokenIssuer("test-secret", time.Hour)
	limiter := ratelimit.NewManager(rateCfg, nil, nil)

	r := gin.New()
	RegisterRoutes(r, mgr, tokens, limiter, riot.NewClient("", conn), conn)
	return r
}

func newMigratedServer(t *testing.T) *gin.Engine {
	t.Helper()
	conn, errOpen := db.Open(filepath.Join(t.TempDir(), "api.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return newTestServer(t, conn, config.RateLimitConfig{})
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if errEncode := json.NewEncoder(&buf).Encode(body); errEncode != nil {
			t.Fatalf("encode body: %v", errEncode)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), errDecode)
	}
	return out
}

func registerUser(t *testing.T, r *gin.Engine, username, email string) string {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username, "email": email, "password": "pw-" + username,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["token"].(string)
	if token == "" {
		t.Fatal("register returned no token")
	}
	return token
}

func TestAccountLifecycleOverAPI(t *testing.T) {
	r := newMigratedServer(t)
	token := registerUser(t, r, "alice", "alice@example.com")

	rec := doJSON(t, r, http.MethodPost, "/api/accounts", token, gin.H{
		"login_username": "acc1",
		"login_password": "secret1",
		"summoner_name":  "Faker2",
		"server":         "kr",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account: status %d body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	if created["decrypted_password"] != "secret1" {
		t.Fatalf("expected recoverable password, got %v", created["decrypted_password"])
	}
	accountID := fmt.Sprintf("%.0f", created["id"].(float64))

	rec = doJSON(t, r, http.MethodPost, "/api/accounts/"+accountID+"/flairs/2", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add flair: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, r, http.MethodPost, "/api/accounts/"+accountID+"/flairs/2", token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate flair: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPut, "/api/accounts/"+accountID, token, gin.H{"favorite": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("update account: status %d body %s", rec.Code, rec.Body.String())
	}
	if updated := decodeBody(t, rec); updated["favorite"] != true {
		t.Fatalf("favorite not set: %v", updated)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/accounts", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list accounts: status %d body %s", rec.Code, rec.Body.String())
	}
	var views []map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &views); errDecode != nil {
		t.Fatalf("decode listing: %v", errDecode)
	}
	if len(views) != 1 || views[0]["summoner_name"] != "Faker2" {
		t.Fatalf("unexpected listing %v", views)
	}

	rec = doJSON(t, r, http.MethodDelete, "/api/accounts/"+accountID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete account: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, r, http.MethodGet, "/api/accounts/"+accountID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d body %s", rec.Code, rec.Body.String())
	}
}

// The whole API keeps working when no database is reachable at all.
func TestAPIServesDuringDatabaseOutage(t *testing.T) {
	r := newTestServer(t, nil, config.RateLimitConfig{})
	token := registerUser(t, r, "alice", "alice@example.com")

	rec := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "alice@example.com", "password": "pw-alice",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/accounts", token, gin.H{
		"login_username": "acc1",
		"login_password": "secret1",
		"summoner_name":  "Faker2",
		"server":         "kr",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account: status %d body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	if created["decrypted_password"] != "secret1" {
		t.Fatalf("expected recoverable password, got %v", created["decrypted_password"])
	}

	rec = doJSON(t, r, http.MethodGet, "/api/accounts", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list accounts: status %d body %s", rec.Code, rec.Body.String())
	}
	var views []map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &views); errDecode != nil {
		t.Fatalf("decode listing: %v", errDecode)
	}
	if len(views) != 1 || views[0]["decrypted_password"] != "secret1" {
		t.Fatalf("fallback listing lost the credential: %v", views)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/flairs", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list flairs: status %d body %s", rec.Code, rec.Body.String())
	}
	var catalog []map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &catalog); errDecode != nil {
		t.Fatalf("decode catalog: %v", errDecode)
	}
	if len(catalog) != 8 {
		t.Fatalf("expected the built-in catalog, got %d flairs", len(catalog))
	}

	rec = doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
	if health := decodeBody(t, rec); health["database"] != "down" {
		t.Fatalf("expected database down, got %v", health)
	}
}

func TestAuthRequiredAndInvalidInput(t *testing.T) {
	r := newMigratedServer(t)
	token := registerUser(t, r, "alice", "alice@example.com")

	if rec := doJSON(t, r, http.MethodGet, "/api/accounts", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodGet, "/api/accounts", "not-a-jwt", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", rec.Code)
	}

	rec := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice", "email": "other@example.com", "password": "pw",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate username: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "alice@example.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/accounts", token, gin.H{
		"login_username": "acc1", "login_password": "pw", "summoner_name": "x", "server": "moon1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown server: status %d body %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, r, http.MethodGet, "/api/accounts/abc", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric id: status %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodGet, "/api/accounts/424242", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status %d", rec.Code)
	}
}

func TestAuthEndpointsRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cipher, errCipher := secrets.NewCipher(apiTestKey)
	if errCipher != nil {
		t.Fatalf("new cipher: %v", errCipher)
	}
	mgr := store.NewManager(store.NewGormStore(nil), store.NewMemoryStore(), cipher)
	tokens := security.NewTokenIssuer("test-secret", time.Hour)
	// A frozen clock keeps all requests inside one limiter window.
	now := time.Unix(1_700_000_000, 0)
	limiter := ratelimit.NewManager(config.RateLimitConfig{AuthPerSecond: 2},
		func() time.Time { return now }, nil)

	r := gin.New()
	RegisterRoutes(r, mgr, tokens, limiter, riot.NewClient("", nil), nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{
			"email": "alice@example.com", "password": "pw",
		})
		codes = append(codes, rec.Code)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("third request should be throttled, got %v", codes)
	}
}
