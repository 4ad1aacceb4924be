package riot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/oHaruki/SmurfMGT/internal/db"
)

func newStubUpstream(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		if r.Header.Get("X-Riot-Token") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/lol/summoner/v4/summoners/by-name/Faker2":
			_ = json.NewEncoder(w).Encode(Summoner{
				ID: "summoner-id-1", Name: "Faker2", ProfileIconID: 10, SummonerLevel: 30,
			})
		case "/lol/league/v4/entries/by-summoner/summoner-id-1":
			_ = json.NewEncoder(w).Encode([]LeagueEntry{
				{QueueType: "RANKED_SOLO_5x5", Tier: "CHALLENGER", Rank: "I", LeaguePoints: 1200},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestValidServer(t *testing.T) {
	for _, server := range []string{"na1", "euw1", "eun1", "kr", "br1", "jp1", "ru", "oc1", "tr1", "la1", "la2"} {
		if !ValidServer(server) {
			t.Fatalf("server %q should be valid", server)
		}
	}
	if ValidServer("moon1") {
		t.Fatal("unknown server accepted")
	}
	if !ValidServer(" KR ") {
		t.Fatal("server matching should normalize case and spacing")
	}
}

func TestSummonerFetchAndCache(t *testing.T) {
	hits := 0
	upstream := newStubUpstream(t, &hits)
	defer upstream.Close()

	conn, errOpen := db.Open(filepath.Join(t.TempDir(), "riot.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	client := NewClient("test-key", conn)
	client.baseURL = upstream.URL

	profile, errFetch := client.Summoner(context.Background(), "kr", "Faker2")
	if errFetch != nil {
		t.Fatalf("fetch: %v", errFetch)
	}
	if profile.Summoner.Name != "Faker2" || profile.Summoner.SummonerLevel != 30 {
		t.Fatalf("unexpected summoner %+v", profile.Summoner)
	}
	if len(profile.Ranked) != 1 || profile.Ranked[0].Tier != "CHALLENGER" {
		t.Fatalf("unexpected ranked entries %+v", profile.Ranked)
	}
	if hits != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", hits)
	}

	// A fresh snapshot answers the second lookup without upstream calls.
	cached, errCached := client.Summoner(context.Background(), "kr", "Faker2")
	if errCached != nil {
		t.Fatalf("cached fetch: %v", errCached)
	}
	if cached.Summoner.ID != "summoner-id-1" {
		t.Fatalf("unexpected cached summoner %+v", cached.Summoner)
	}
	if hits != 2 {
		t.Fatalf("cached lookup should not hit upstream, got %d calls", hits)
	}

	// An expired snapshot goes back upstream.
	client.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, errStale := client.Summoner(context.Background(), "kr", "Faker2"); errStale != nil {
		t.Fatalf("stale fetch: %v", errStale)
	}
	if hits != 4 {
		t.Fatalf("stale lookup should refetch, got %d calls", hits)
	}
}

func TestSummonerServesStaleSnapshotDuringOutage(t *testing.T) {
	hits := 0
	upstream := newStubUpstream(t, &hits)

	conn, errOpen := db.Open(filepath.Join(t.TempDir(), "riot.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	client := NewClient("test-key", conn)
	client.baseURL = upstream.URL
	if _, errFetch := client.Summoner(context.Background(), "kr", "Faker2"); errFetch != nil {
		t.Fatalf("seed fetch: %v", errFetch)
	}
	upstream.Close()

	// Snapshot is past its TTL and the upstream is gone.
	client.now = func() time.Time { return time.Now().Add(time.Hour) }
	profile, errStale := client.Summoner(context.Background(), "kr", "Faker2")
	if errStale != nil {
		t.Fatalf("stale fetch: %v", errStale)
	}
	if profile.Summoner.Name != "Faker2" {
		t.Fatalf("unexpected stale profile %+v", profile.Summoner)
	}
}

func TestSummonerErrorMapping(t *testing.T) {
	hits := 0
	upstream := newStubUpstream(t, &hits)
	defer upstream.Close()

	client := NewClient("test-key", nil)
	client.baseURL = upstream.URL

	if _, errFetch := client.Summoner(context.Background(), "kr", "NoSuchName"); !errors.Is(errFetch, ErrNotFound) {
		t.Fatalf("expected not found, got %v", errFetch)
	}
	if _, errFetch := client.Summoner(context.Background(), "moon1", "Faker2"); !errors.Is(errFetch, ErrUnknownServer) {
		t.Fatalf("expected unknown server, got %v", errFetch)
	}

	badKey := NewClient("wrong-key", nil)
	badKey.baseURL = upstream.URL
	if _, errFetch := badKey.Summoner(context.Background(), "kr", "Faker2"); !errors.Is(errFetch, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", errFetch)
	}

	down := NewClient("test-key", nil)
	down.baseURL = "http://127.0.0.1:1"
	if _, errFetch := down.Summoner(context.Background(), "kr", "Faker2"); !errors.Is(errFetch, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", errFetch)
	}
}
