package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rbaird/canteen/internal/model"
)

// The catalog service only serves fresh data during lunch service. Outside
// this local-time window no live fetch is attempted at all.
const (
	liveWindowStartHour = 11
	liveWindowEndHour   = 16
)

// Config holds catalog service configuration from environment variables.
type Config struct {
	BaseURL      string
	Realm        string
	MultigroupID string
}

// Client talks to the remote catalog service. It owns a short-lived guest
// token and its expiry, held in memory only.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	// now is swapped out in tests to pin the live window.
	now func() time.Time
}

// NewClient creates a catalog client with a 10 second request timeout.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

// IsLiveWindowOpen reports whether the current local time falls inside the
// service's active window (start inclusive, end exclusive). This is the sole
// gate for attempting a live fetch.
func (c *Client) IsLiveWindowOpen() bool {
	hour := c.now().Hour()
	return hour >= liveWindowStartHour && hour < liveWindowEndHour
}

type tokenResponse struct {
	Token  string `json:"token"`
	Access struct {
		Token   string `json:"token"`
		Expires string `json:"expires"`
	} `json:"access"`
}

// Token returns the cached guest token, requesting a fresh one if the cached
// token is missing or expired.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{"realm": c.cfg.Realm})
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("marshal token request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/user/guest/token", bytes.NewReader(body))
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("create token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("token request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Err: fmt.Errorf("token endpoint returned status %d", resp.StatusCode)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &AuthError{Err: fmt.Errorf("decode token response: %w", err)}
	}

	expiry, err := time.Parse(time.RFC3339, tr.Access.Expires)
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("parse token expiry %q: %w", tr.Access.Expires, err)}
	}

	c.token = tr.Token
	c.tokenExpiry = expiry
	return c.token, nil
}

// getJSON performs an authorized GET and decodes the response into out.
// Non-2xx responses and body shape mismatches both surface as NetworkError.
func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+path, nil)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NetworkError{Op: op, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// FetchBuildings retrieves the full building catalog.
func (c *Client) FetchBuildings(ctx context.Context) (model.BuildingGroup, error) {
	var group model.BuildingGroup
	err := c.getJSON(ctx, "fetch buildings", "/location/multigroup/"+c.cfg.MultigroupID, &group)
	return group, err
}

// FetchBuildingDetail retrieves one building's dining locations, brands and
// menu references.
func (c *Client) FetchBuildingDetail(ctx context.Context, buildingID string) (model.BuildingDetail, error) {
	var detail model.BuildingDetail
	err := c.getJSON(ctx, "fetch building detail "+buildingID, "/location/group/"+buildingID, &detail)
	return detail, err
}

// FetchMenu retrieves one menu's groups and items.
func (c *Client) FetchMenu(ctx context.Context, menuID string) (model.Menu, error) {
	var menu model.Menu
	err := c.getJSON(ctx, "fetch menu "+menuID, "/menu/"+menuID, &menu)
	return menu, err
}

// FallbackResult is the outcome of a menu fetch that may have been served
// from the device cache.
type FallbackResult struct {
	Menu     model.Menu
	IsCached bool
	CachedAt time.Time
}

// FetchMenuWithFallback is the single fallback decision point of the system.
// Inside the live window it attempts a live fetch and, on success, returns the
// fresh menu; a cached copy never overrides a succeeding live call. When the
// window is closed, or the live attempt fails, the cache is consulted. With
// neither available it fails with MenuUnavailableError.
func (c *Client) FetchMenuWithFallback(ctx context.Context, menuID string, cache model.MenuCache) (FallbackResult, error) {
	if c.IsLiveWindowOpen() {
		menu, err := c.FetchMenu(ctx, menuID)
		if err == nil {
			return FallbackResult{Menu: menu}, nil
		}
		c.logger.Warn("live menu fetch failed, falling back to cache", "menu_id", menuID, "error", err)
	}

	if cached, ok := cache[menuID]; ok {
		return FallbackResult{
			Menu:     cached.Menu,
			IsCached: true,
			CachedAt: time.UnixMilli(cached.Timestamp),
		}, nil
	}

	return FallbackResult{}, &MenuUnavailableError{MenuID: menuID}
}
