package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrNoResult is returned when the provider has no address for a coordinate.
var ErrNoResult = errors.New("geocoding: no result")

// StatusError reports a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocoding: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Place is one forward-geocoding candidate.
type Place struct {
	DisplayName string
	Lat         float64
	Lon         float64
	PlaceID     string
}

// Config controls the Nominatim client.
type Config struct {
	BaseURL       string
	UserAgent     string
	Email         string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// Option customises a NominatimClient.
type Option func(*NominatimClient)

// WithHTTPClient overrides the pooled HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *NominatimClient) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *NominatimClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NominatimClient talks to an OpenStreetMap Nominatim compatible endpoint.
// Requests are throttled client side and identical concurrent reverse lookups share one call.
type NominatimClient struct {
	baseURL   string
	userAgent string
	email     string
	http      *http.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	group     singleflight.Group
	logger    *zap.Logger
}

// NewNominatimClient builds a client with a pooled transport.
func NewNominatimClient(cfg Config, opts ...Option) *NominatimClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "sns-grievance-api"
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	client := &NominatimClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		email:     cfg.Email,
		http:      newHTTPClient(cfg.Timeout),
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		timeout:   cfg.Timeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

type searchResponse struct {
	PlaceID     json.Number `json:"place_id"`
	Lat         string      `json:"lat"`
	Lon         string      `json:"lon"`
	DisplayName string      `json:"display_name"`
}

// Reverse returns the display address for a coordinate. Concurrent lookups of the
// same coordinate share one call; the shared call ignores any single caller's
// cancellation so that one caller giving up never fails the others.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	key := fmt.Sprintf("%.6f,%.6f", lat, lon)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.reverse(shared, lat, lon)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *NominatimClient) reverse(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	var payload reverseResponse
	if err := c.get(ctx, "/reverse", params, &payload); err != nil {
		return "", err
	}
	if payload.Error != "" || strings.TrimSpace(payload.DisplayName) == "" {
		return "", ErrNoResult
	}
	return payload.DisplayName, nil
}

// Search returns up to limit candidates for a free-text query.
func (c *NominatimClient) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	if limit <= 0 {
		limit = 5
	}
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var payload []searchResponse
	if err := c.get(ctx, "/search", params, &payload); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(payload))
	for _, item := range payload {
		lat, err := strconv.ParseFloat(item.Lat, 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(item.Lon, 64)
		if err != nil {
			continue
		}
		places = append(places, Place{
			DisplayName: item.DisplayName,
			Lat:         lat,
			Lon:         lon,
			PlaceID:     item.PlaceID.String(),
		})
		if len(places) == limit {
			break
		}
	}
	return places, nil
}

func (c *NominatimClient) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if c.email != "" {
		params.Set("email", c.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("geocoding: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("geocoding: request %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Debug("geocoder call", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("geocoding: decode %s: %w", path, err)
	}
	return nil
}
