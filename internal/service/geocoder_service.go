package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sns-grievance-api/internal/models"
	"github.com/noah-isme/sns-grievance-api/pkg/geocoding"
)

// placeProvider is the raw geocoding backend.
type placeProvider interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
	Search(ctx context.Context, query string, limit int) ([]geocoding.Place, error)
}

type geocodeCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedGeocoder decorates a provider with Redis caching and metrics. Cache outages fall back
// to calling the provider directly.
type CachedGeocoder struct {
	provider placeProvider
	cache    geocodeCache
	ttl      time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewCachedGeocoder constructs the decorator; cache may be nil.
func NewCachedGeocoder(provider placeProvider, cache geocodeCache, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *CachedGeocoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedGeocoder{provider: provider, cache: cache, ttl: ttl, metrics: metrics, logger: logger}
}

// Reverse returns the address for a coordinate.
func (g *CachedGeocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	key := reverseCacheKey(lat, lon)
	var cached string
	if g.lookup(ctx, key, &cached) && cached != "" {
		return cached, nil
	}

	start := time.Now()
	address, err := g.provider.Reverse(ctx, lat, lon)
	g.metrics.ObserveGeocoder("reverse", err, time.Since(start))
	if err != nil {
		return "", err
	}
	g.store(ctx, key, address)
	return address, nil
}

// Search returns suggestions for query.
func (g *CachedGeocoder) Search(ctx context.Context, query string, limit int) ([]models.LocationSuggestion, error) {
	key := searchCacheKey(limit, query)
	var cached []models.LocationSuggestion
	if g.lookup(ctx, key, &cached) {
		return cached, nil
	}

	start := time.Now()
	places, err := g.provider.Search(ctx, query, limit)
	g.metrics.ObserveGeocoder("search", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	suggestions := make([]models.LocationSuggestion, 0, len(places))
	for _, place := range places {
		suggestions = append(suggestions, models.LocationSuggestion{
			DisplayName: place.DisplayName,
			Latitude:    place.Lat,
			Longitude:   place.Lon,
			PlaceID:     place.PlaceID,
		})
	}
	g.store(ctx, key, suggestions)
	return suggestions, nil
}

func (g *CachedGeocoder) lookup(ctx context.Context, key string, dest interface{}) bool {
	if g.cache == nil {
		return false
	}
	hit, err := g.cache.Get(ctx, key, dest)
	if err != nil {
		g.logger.Debug("geocode cache unavailable", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (g *CachedGeocoder) store(ctx context.Context, key string, value interface{}) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, key, value, g.ttl); err != nil {
		g.logger.Debug("geocode cache write failed", zap.String("key", key), zap.Error(err))
	}
}
