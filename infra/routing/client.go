// Package routing provides the HTTP client for the external route/distance
// service plus a Redis-backed distance cache in front of it.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/tyneline/dispatch/core/model"
	coreroute "github.com/tyneline/dispatch/core/routing"
	"github.com/tyneline/dispatch/infra/logger"
)

// AuthConf holds the client-credentials grant settings for the routing
// service.
type AuthConf struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURL      string `json:"auth_url"`
}

func (c AuthConf) toOauth2Config() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.AuthURL,
	}
}

// Config defines the routing client settings.
type Config struct {
	Enabled   bool     `json:"enabled"`
	BaseURL   string   `json:"base_url"`
	TimeoutMS int      `json:"timeout_ms"`
	Auth      AuthConf `json:"auth"`

	CacheEnabled bool   `json:"cache_enabled"`
	CacheURL     string `json:"cache_url"`
	CacheTTLMin  int    `json:"cache_ttl_min"`
}

// SetDefaults applies timeout and cache TTL defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 5000
	}
	if c.CacheTTLMin <= 0 {
		c.CacheTTLMin = 24 * 60
	}
}

// HTTPProvider queries the routing service over HTTP, authenticating with a
// client-credentials token when configured.
type HTTPProvider struct {
	baseURL string
	http    *http.Client
	creds   *clientCred
	log     logger.Logger
}

// NewHTTPProvider creates a provider for the given service.
func NewHTTPProvider(cfg Config) (*HTTPProvider, error) {
	cfg.SetDefaults()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("routing: base_url is required")
	}
	p := &HTTPProvider{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		log:     logger.New("routing-client"),
	}
	if cfg.Auth.AuthURL != "" {
		p.creds = &clientCred{conf: cfg.Auth.toOauth2Config()}
	}
	return p, nil
}

// routeResponse tolerates the distance shapes upstream services return:
// a plain number of miles, a quoted "12.3 miles" string, or a metric
// value object.
type routeResponse struct {
	Distance        any     `json:"distance"`
	DistanceMiles   any     `json:"distance_miles"`
	DurationMinutes float64 `json:"duration_minutes"`
}

func (r routeResponse) miles() (float64, bool) {
	if d, ok := model.ParseDistance(r.DistanceMiles); ok {
		return d, true
	}
	return model.ParseDistance(r.Distance)
}

// Route implements routing.Provider.
func (p *HTTPProvider) Route(ctx context.Context, pickup, dropoff string) (coreroute.Estimate, error) {
	u := fmt.Sprintf("%s/v1/route?from=%s&to=%s", p.baseURL, url.QueryEscape(pickup), url.QueryEscape(dropoff))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return coreroute.Estimate{}, err
	}
	if p.creds != nil {
		if err := p.creds.setAuthHeader(ctx, req); err != nil {
			return coreroute.Estimate{}, fmt.Errorf("routing auth: %w", err)
		}
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return coreroute.Estimate{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return coreroute.Estimate{}, coreroute.ErrNoRoute
	}
	if resp.StatusCode != http.StatusOK {
		return coreroute.Estimate{}, fmt.Errorf("routing: unexpected status %d", resp.StatusCode)
	}
	var body routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return coreroute.Estimate{}, fmt.Errorf("routing: decode response: %w", err)
	}
	miles, ok := body.miles()
	if !ok {
		return coreroute.Estimate{}, coreroute.ErrNoRoute
	}
	return coreroute.Estimate{
		DistanceMiles: miles,
		Duration:      time.Duration(body.DurationMinutes * float64(time.Minute)),
	}, nil
}

// clientCred caches a client-credentials token across requests.
type clientCred struct {
	conf  clientcredentials.Config
	token *oauth2.Token
}

func (c *clientCred) setAuthHeader(ctx context.Context, r *http.Request) error {
	if c.token == nil || !c.token.Valid() {
		t, err := c.conf.Token(ctx)
		if err != nil {
			return err
		}
		c.token = t
	}
	c.token.SetAuthHeader(r)
	return nil
}
