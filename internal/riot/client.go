// Package riot wraps the Riot Games API lookups the account pages use:
// summoner profiles and their ranked league entries, with a short-lived
// relational snapshot cache in front of the upstream.
package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oHaruki/SmurfMGT/internal/models"
)

var (
	// ErrUnknownServer indicates a server outside the supported platforms.
	ErrUnknownServer = errors.New("riot: unknown server")
	// ErrNotFound indicates the summoner does not exist on that server.
	ErrNotFound = errors.New("riot: summoner not found")
	// ErrUnauthorized indicates a missing, expired or rejected API key.
	ErrUnauthorized = errors.New("riot: unauthorized")
	// ErrUnavailable indicates the upstream could not answer (throttled,
	// down, or unreachable).
	ErrUnavailable = errors.New("riot: upstream unavailable")
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultSnapshotTTL    = 5 * time.Minute
)

// servers is the supported Riot platform whitelist.
var servers = map[string]struct{}{
	"na1": {}, "euw1": {}, "eun1": {}, "kr": {}, "br1": {}, "jp1": {},
	"ru": {}, "oc1": {}, "tr1": {}, "la1": {}, "la2": {},
}

// ValidServer reports whether server is a supported Riot platform.
func ValidServer(server string) bool {
	_, ok := servers[strings.ToLower(strings.TrimSpace(server))]
	return ok
}

// Summoner is the subset of the summoner-v4 payload the UI shows.
type Summoner struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ProfileIconID int    `json:"profileIconId"`
	SummonerLevel int    `json:"summonerLevel"`
}

// LeagueEntry is one ranked queue standing from league-v4.
type LeagueEntry struct {
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// Profile is a summoner together with its ranked entries.
type Profile struct {
	Summoner Summoner      `json:"summoner"`
	Ranked   []LeagueEntry `json:"ranked"`
}

// Client fetches summoner profiles, serving a relational snapshot when one
// is fresh enough and the upstream otherwise.
type Client struct {
	apiKey      string
	conn        *gorm.DB
	client      *http.Client
	snapshotTTL time.Duration
	now         func() time.Time

	// baseURL overrides the per-server host, used by tests.
	baseURL string
}

// NewClient constructs a Client. conn may be nil; caching is then skipped.
func NewClient(apiKey string, conn *gorm.DB) *Client {
	return &Client{
		apiKey:      strings.TrimSpace(apiKey),
		conn:        conn,
		client:      &http.Client{Timeout: defaultRequestTimeout},
		snapshotTTL: defaultSnapshotTTL,
		now:         time.Now,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Summoner resolves a summoner profile on the given server. A fresh cached
// snapshot short-circuits the upstream call.
func (c *Client) Summoner(ctx context.Context, server, name string) (*Profile, error) {
	server = strings.ToLower(strings.TrimSpace(server))
	name = strings.TrimSpace(name)
	if !ValidServer(server) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServer, server)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty summoner name", ErrNotFound)
	}

	if cached := c.cachedProfile(server, name, false); cached != nil {
		return cached, nil
	}

	var summoner Summoner
	path := "/lol/summoner/v4/summoners/by-name/" + url.PathEscape(name)
	if errFetch := c.get(ctx, server, path, &summoner); errFetch != nil {
		// A stale snapshot beats no answer while the upstream is down.
		if errors.Is(errFetch, ErrUnavailable) {
			if stale := c.cachedProfile(server, name, true); stale != nil {
				log.WithError(errFetch).Warn("riot: upstream down, serving stale snapshot")
				return stale, nil
			}
		}
		return nil, errFetch
	}

	profile := &Profile{Summoner: summoner}
	rankedPath := "/lol/league/v4/entries/by-summoner/" + url.PathEscape(summoner.ID)
	if errRanked := c.get(ctx, server, rankedPath, &profile.Ranked); errRanked != nil {
		// The profile is still useful without standings.
		log.WithError(errRanked).Warn("riot: ranked lookup failed")
		profile.Ranked = nil
	}

	c.storeSnapshot(server, name, profile)
	return profile, nil
}

func (c *Client) get(ctx context.Context, server, path string, out any) error {
	base := c.baseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.api.riotgames.com", server)
	}
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if errReq != nil {
		return fmt.Errorf("riot: build request: %w", errReq)
	}
	req.Header.Set("X-Riot-Token", c.apiKey)

	resp, errDo := c.client.Do(req)
	if errDo != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, errRead)
	}
	if errUnmarshal := json.Unmarshal(body, out); errUnmarshal != nil {
		return fmt.Errorf("%w: decode body: %v", ErrUnavailable, errUnmarshal)
	}
	return nil
}

func (c *Client) cachedProfile(server, name string, allowStale bool) *Profile {
	if c.conn == nil || c.snapshotTTL <= 0 {
		return nil
	}
	var snapshot models.SummonerSnapshot
	errFind := c.conn.
		Where("server = ? AND summoner_name = ?", server, strings.ToLower(name)).
		First(&snapshot).Error
	if errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithError(errFind).Debug("riot: snapshot lookup failed")
		}
		return nil
	}
	if !allowStale && c.now().Sub(snapshot.FetchedAt) > c.snapshotTTL {
		return nil
	}
	var profile Profile
	if errUnmarshal := json.Unmarshal(snapshot.Payload, &profile); errUnmarshal != nil {
		log.WithError(errUnmarshal).Warn("riot: corrupt snapshot payload")
		return nil
	}
	return &profile
}

// storeSnapshot caches a fetched profile. Failures only cost the cache.
func (c *Client) storeSnapshot(server, name string, profile *Profile) {
	if c.conn == nil {
		return
	}
	payload, errMarshal := json.Marshal(profile)
	if errMarshal != nil {
		return
	}
	key := strings.ToLower(name)
	var existing models.SummonerSnapshot
	errFind := c.conn.Where("server = ? AND summoner_name = ?", server, key).First(&existing).Error
	if errFind == nil {
		existing.Payload = datatypes.JSON(payload)
		existing.FetchedAt = c.now().UTC()
		if errSave := c.conn.Save(&existing).Error; errSave != nil {
			log.WithError(errSave).Debug("riot: snapshot update failed")
		}
		return
	}
	snapshot := models.SummonerSnapshot{
		Server:       server,
		SummonerName: key,
		Payload:      datatypes.JSON(payload),
		FetchedAt:    c.now().UTC(),
	}
	if errCreate := c.conn.Create(&snapshot).Error; errCreate != nil {
		log.WithError(errCreate).Debug("riot: snapshot store failed")
	}
}
