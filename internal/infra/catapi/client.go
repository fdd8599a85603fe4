// Package catapi validates cat breeds against TheCatAPI breed catalog.
package catapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"spycats/pkg/domain"
)

const (
	// DefaultBaseURL is the public TheCatAPI endpoint.
	DefaultBaseURL = "https://api.thecatapi.com"
	catalogKey     = "breeds"
	maxBodyBytes   = 4 << 20
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// CacheTTL bounds how long a fetched catalog is reused.
	CacheTTL time.Duration
	// RatePerSecond limits outbound catalog requests; zero disables the limit.
	RatePerSecond float64
	HTTPClient    *http.Client
}

// Client looks breeds up in the remote catalog. It implements the service's
// breed validator.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
}

// New creates a catalog client.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		cache:      cache.New(ttl, 2*ttl),
		limiter:    limiter,
	}
}

func unavailable(format string, args ...any) error {
	return domain.NewError(domain.ErrLookupUnavailable, domain.EntityCat, "", format, args...)
}

// IsValidBreed reports whether name matches a catalog breed, ignoring case.
func (c *Client) IsValidBreed(ctx context.Context, name string) (bool, error) {
	breeds, err := c.catalog(ctx)
	if err != nil {
		return false, err
	}
	_, ok := breeds[strings.ToLower(strings.TrimSpace(name))]
	return ok, nil
}

// Invalidate drops the cached catalog so the next lookup refetches it.
func (c *Client) Invalidate() {
	c.cache.Delete(catalogKey)
}

func (c *Client) catalog(ctx context.Context) (map[string]struct{}, error) {
	if cached, ok := c.cache.Get(catalogKey); ok {
		return cached.(map[string]struct{}), nil
	}
	breeds, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(catalogKey, breeds)
	return breeds, nil
}

func (c *Client) fetch(ctx context.Context) (map[string]struct{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.Error{Kind: domain.ErrLookupUnavailable, Entity: domain.EntityCat, Message: "breed lookup rate limited", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/breeds", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.Error{Kind: domain.ErrLookupUnavailable, Entity: domain.EntityCat, Message: "breed catalog unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.Error{Kind: domain.ErrLookupUnavailable, Entity: domain.EntityCat, Message: "read breed catalog", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, unavailable("breed catalog returned status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsArray() {
		return nil, unavailable("breed catalog returned malformed payload")
	}

	breeds := make(map[string]struct{})
	for _, name := range gjson.GetBytes(body, "#.name").Array() {
		if n := strings.ToLower(strings.TrimSpace(name.String())); n != "" {
			breeds[n] = struct{}{}
		}
	}
	return breeds, nil
}
