package service

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/noah-isme/sns-grievance-api/internal/models"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
)

// Geocoder converts between coordinates and human-readable places.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
	Search(ctx context.Context, query string, limit int) ([]models.LocationSuggestion, error)
}

// DeviceLocator produces a single positioning fix from the citizen's device.
type DeviceLocator interface {
	Locate(ctx context.Context) (models.DeviceFix, error)
}

// LocationResolverConfig tunes text search behaviour.
type LocationResolverConfig struct {
	Debounce        time.Duration
	MinQueryLength  int
	SuggestionLimit int
}

func (c LocationResolverConfig) withDefaults() LocationResolverConfig {
	if c.Debounce < 0 {
		c.Debounce = 0
	}
	if c.MinQueryLength <= 0 {
		c.MinQueryLength = 3
	}
	if c.SuggestionLimit <= 0 {
		c.SuggestionLimit = 5
	}
	return c
}

// DefaultLocationResolverConfig mirrors the intake form: 500ms quiet period, 3 characters, 5 suggestions.
func DefaultLocationResolverConfig() LocationResolverConfig {
	return LocationResolverConfig{Debounce: 500 * time.Millisecond, MinQueryLength: 3, SuggestionLimit: 5}
}

// LocationResolver turns map clicks, text searches and device fixes into a confirmed location
// for one citizen. Every dispatch takes a generation number; only the newest generation may
// change state, and starting a request cancels the previous one.
type LocationResolver struct {
	geocoder Geocoder
	cfg      LocationResolverConfig
	logger   *zap.Logger

	mu          sync.Mutex
	generation  uint64
	cancel      context.CancelFunc
	resolving   bool
	current     *models.LocationResult
	suggestions []models.LocationSuggestion
}

// NewLocationResolver constructs a resolver with no current location.
func NewLocationResolver(geocoder Geocoder, cfg LocationResolverConfig, logger *zap.Logger) *LocationResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationResolver{geocoder: geocoder, cfg: cfg.withDefaults(), logger: logger}
}

// ResolveFromMapClick reverse geocodes a picked coordinate. A geocoder failure still yields the
// coordinate, flagged as degraded with an empty address.
func (r *LocationResolver) ResolveFromMapClick(ctx context.Context, lat, lon float64) (models.LocationResult, error) {
	if !models.ValidLatitude(lat) || !models.ValidLongitude(lon) {
		return models.LocationResult{}, appErrors.Clone(appErrors.ErrValidation, "coordinates out of range")
	}
	return r.reverse(ctx, lat, lon, models.LocationSourceMapClick)
}

// ResolveFromDevice asks locator for one fix. Failures leave the resolver untouched.
func (r *LocationResolver) ResolveFromDevice(ctx context.Context, locator DeviceLocator) (models.LocationResult, error) {
	if locator == nil {
		return models.LocationResult{}, appErrors.ErrLocationUnavailable
	}
	fix, err := locator.Locate(ctx)
	if err != nil {
		r.logger.Debug("device location unavailable", zap.Error(err))
		return models.LocationResult{}, appErrors.Wrap(err, appErrors.ErrLocationUnavailable.Code, appErrors.ErrLocationUnavailable.Status, appErrors.ErrLocationUnavailable.Message)
	}
	if !models.ValidLatitude(fix.Latitude) || !models.ValidLongitude(fix.Longitude) {
		return models.LocationResult{}, appErrors.Clone(appErrors.ErrLocationUnavailable, "device reported an invalid position")
	}
	return r.reverse(ctx, fix.Latitude, fix.Longitude, models.LocationSourceDevice)
}

func (r *LocationResolver) reverse(ctx context.Context, lat, lon float64, source models.LocationSource) (models.LocationResult, error) {
	gen, reqCtx := r.begin(ctx)

	address, err := r.geocoder.Reverse(reqCtx, lat, lon)
	if !r.isCurrent(gen) {
		return models.LocationResult{}, appErrors.ErrRequestSuperseded
	}
	if err != nil && ctx.Err() != nil {
		r.abandon(gen)
		return models.LocationResult{}, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "location request cancelled")
	}

	result := models.LocationResult{Latitude: lat, Longitude: lon, Source: source}
	if err != nil {
		r.logger.Warn("reverse geocoding failed, keeping bare coordinate", zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
		result.Degraded = true
	} else {
		result.Address = strings.TrimSpace(address)
	}

	if !r.commit(gen, func() {
		r.current = &result
		r.suggestions = nil
	}) {
		return models.LocationResult{}, appErrors.ErrRequestSuperseded
	}
	return result, nil
}

// SearchByText offers up to SuggestionLimit places for query once the citizen pauses typing.
// Queries shorter than MinQueryLength clear the suggestions without contacting the geocoder.
// A newer request supersedes this one: if still waiting it is never dispatched, if in flight it
// is cancelled, and either way RequestSuperseded is returned.
func (r *LocationResolver) SearchByText(ctx context.Context, query string) ([]models.LocationSuggestion, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < r.cfg.MinQueryLength {
		r.reset()
		return []models.LocationSuggestion{}, nil
	}

	gen, reqCtx := r.begin(ctx)

	if r.cfg.Debounce > 0 {
		timer := time.NewTimer(r.cfg.Debounce)
		select {
		case <-reqCtx.Done():
			timer.Stop()
			if !r.isCurrent(gen) {
				return nil, appErrors.ErrRequestSuperseded
			}
			r.abandon(gen)
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "location request cancelled")
		case <-timer.C:
		}
	}

	places, err := r.geocoder.Search(reqCtx, query, r.cfg.SuggestionLimit)
	if !r.isCurrent(gen) {
		return nil, appErrors.ErrRequestSuperseded
	}
	if err != nil && ctx.Err() != nil {
		r.abandon(gen)
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "location request cancelled")
	}
	if err != nil {
		r.logger.Warn("forward geocoding failed", zap.String("query", query), zap.Error(err))
		r.commit(gen, func() { r.suggestions = nil })
		return nil, appErrors.Wrap(err, appErrors.ErrGeocodingDegraded.Code, appErrors.ErrGeocodingDegraded.Status, appErrors.ErrGeocodingDegraded.Message)
	}

	if len(places) > r.cfg.SuggestionLimit {
		places = places[:r.cfg.SuggestionLimit]
	}
	suggestions := make([]models.LocationSuggestion, len(places))
	copy(suggestions, places)

	if !r.commit(gen, func() { r.suggestions = suggestions }) {
		return nil, appErrors.ErrRequestSuperseded
	}
	out := make([]models.LocationSuggestion, len(suggestions))
	copy(out, suggestions)
	return out, nil
}

// SelectSuggestion adopts a suggestion verbatim without contacting the geocoder.
func (r *LocationResolver) SelectSuggestion(s models.LocationSuggestion) (models.LocationResult, error) {
	if !models.ValidLatitude(s.Latitude) || !models.ValidLongitude(s.Longitude) {
		return models.LocationResult{}, appErrors.Clone(appErrors.ErrValidation, "coordinates out of range")
	}
	result := models.LocationResult{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Address:   s.DisplayName,
		Source:    models.LocationSourceSearch,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.supersedeLocked()
	r.current = &result
	r.suggestions = nil
	return result, nil
}

// Resolving reports whether a request of the newest generation is outstanding.
func (r *LocationResolver) Resolving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolving
}

// Current returns the last applied result.
func (r *LocationResolver) Current() (models.LocationResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return models.LocationResult{}, false
	}
	return *r.current, true
}

// Suggestions returns a copy of the last applied suggestions.
func (r *LocationResolver) Suggestions() []models.LocationSuggestion {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.LocationSuggestion, len(r.suggestions))
	copy(out, r.suggestions)
	return out
}

// Snapshot returns current state for API consumers.
func (r *LocationResolver) Snapshot() models.LocationSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := models.LocationSnapshot{
		Suggestions: make([]models.LocationSuggestion, len(r.suggestions)),
		Resolving:   r.resolving,
	}
	copy(snapshot.Suggestions, r.suggestions)
	if r.current != nil {
		current := *r.current
		snapshot.Current = &current
	}
	return snapshot
}

// ConfirmedLocation returns the location a complaint may be filed against. It fails while a
// request is outstanding or when no address has been resolved.
func (r *LocationResolver) ConfirmedLocation() (models.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolving {
		return models.Location{}, appErrors.Clone(appErrors.ErrValidation, "location is still being resolved")
	}
	if r.current == nil || strings.TrimSpace(r.current.Address) == "" {
		return models.Location{}, appErrors.Clone(appErrors.ErrValidation, "address is required before submitting")
	}
	return r.current.Location(), nil
}

// Close cancels any outstanding request.
func (r *LocationResolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supersedeLocked()
}

func (r *LocationResolver) begin(parent context.Context) (uint64, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supersedeLocked()
	r.cancel = cancel
	r.resolving = true
	return r.generation, ctx
}

// supersedeLocked invalidates and cancels the outstanding request. Caller holds r.mu.
func (r *LocationResolver) supersedeLocked() {
	r.generation++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.resolving = false
}

func (r *LocationResolver) isCurrent(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation == gen
}

// commit applies fn only if gen is still the newest generation.
func (r *LocationResolver) commit(gen uint64, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen {
		return false
	}
	fn()
	r.finishLocked()
	return true
}

func (r *LocationResolver) abandon(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation == gen {
		r.finishLocked()
	}
}

func (r *LocationResolver) finishLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.resolving = false
}

func (r *LocationResolver) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supersedeLocked()
	r.suggestions = nil
}
