package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
)

// CacheRepository abstracts the key/value store behind geocode caching.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// GeocodeKind selects a family of cached geocoder answers.
type GeocodeKind string

const (
	GeocodeReverse GeocodeKind = "reverse"
	GeocodeSearch  GeocodeKind = "search"
	GeocodeAll     GeocodeKind = "all"
)

// ParseGeocodeKind normalises a flush selector; empty means all.
func ParseGeocodeKind(raw string) (GeocodeKind, error) {
	switch kind := GeocodeKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case "", GeocodeAll:
		return GeocodeAll, nil
	case GeocodeReverse, GeocodeSearch:
		return kind, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "kind must be reverse, search or all")
	}
}

// Pattern is the key glob covering kind.
func (k GeocodeKind) Pattern() string {
	if k == GeocodeAll || k == "" {
		return "geocode:*"
	}
	return "geocode:" + string(k) + ":*"
}

// Coordinates are rounded to five decimals (about a metre) so nearby clicks share an entry.
func reverseCacheKey(lat, lon float64) string {
	return fmt.Sprintf("geocode:reverse:%.5f,%.5f", lat, lon)
}

func searchCacheKey(limit int, query string) string {
	return fmt.Sprintf("geocode:search:%d:%s", limit, strings.ToLower(strings.TrimSpace(query)))
}

// CacheService fronts the geocode cache with hit/miss accounting. A disabled
// service reports every lookup as a miss and skips writes, so intake keeps
// working against the geocoder alone when Redis is off.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get loads key into dest and reports whether it was a hit. Misses are not errors.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case appErrors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("geocode cache read failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores value under key; ttl <= 0 uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("geocode cache write failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Flush drops every cached answer of kind and returns the pattern it cleared.
func (s *CacheService) Flush(ctx context.Context, kind GeocodeKind) (string, error) {
	pattern := kind.Pattern()
	if !s.Enabled() {
		return pattern, nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("geocode cache flush failed", zap.String("pattern", pattern), zap.Error(err))
		return pattern, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flush geocode cache")
	}
	s.logger.Info("geocode cache flushed", zap.String("pattern", pattern))
	return pattern, nil
}
