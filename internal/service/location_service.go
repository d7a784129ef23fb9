package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sns-grievance-api/internal/models"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
)

// LocationServiceConfig bounds resolver sessions.
type LocationServiceConfig struct {
	Resolver      LocationResolverConfig
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

type locationSession struct {
	resolver *LocationResolver
	lastSeen time.Time
}

// LocationService keeps one LocationResolver per authenticated user so successive requests
// from the same intake form share debounce and supersession state.
type LocationService struct {
	geocoder Geocoder
	cfg      LocationServiceConfig
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*locationSession
}

// NewLocationService constructs the session registry.
func NewLocationService(geocoder Geocoder, cfg LocationServiceConfig, metrics *MetricsService, logger *zap.Logger) *LocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	return &LocationService{
		geocoder: geocoder,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*locationSession),
	}
}

// ReverseGeocode resolves a map click for userID.
func (s *LocationService) ReverseGeocode(ctx context.Context, userID string, lat, lon float64) (models.LocationResult, error) {
	resolver, err := s.resolver(userID)
	if err != nil {
		return models.LocationResult{}, err
	}
	return resolver.ResolveFromMapClick(ctx, lat, lon)
}

// Search runs a debounced text search for userID.
func (s *LocationService) Search(ctx context.Context, userID, query string) ([]models.LocationSuggestion, error) {
	resolver, err := s.resolver(userID)
	if err != nil {
		return nil, err
	}
	return resolver.SearchByText(ctx, query)
}

// Select adopts a suggestion for userID.
func (s *LocationService) Select(userID string, suggestion models.LocationSuggestion) (models.LocationResult, error) {
	resolver, err := s.resolver(userID)
	if err != nil {
		return models.LocationResult{}, err
	}
	return resolver.SelectSuggestion(suggestion)
}

// FromDevice resolves a device fix for userID.
func (s *LocationService) FromDevice(ctx context.Context, userID string, locator DeviceLocator) (models.LocationResult, error) {
	resolver, err := s.resolver(userID)
	if err != nil {
		return models.LocationResult{}, err
	}
	return resolver.ResolveFromDevice(ctx, locator)
}

// Snapshot reports the session state for userID; an unknown user has an empty session.
func (s *LocationService) Snapshot(userID string) models.LocationSnapshot {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	if ok {
		session.lastSeen = s.now()
	}
	s.mu.Unlock()
	if !ok {
		return models.LocationSnapshot{Suggestions: []models.LocationSuggestion{}}
	}
	return session.resolver.Snapshot()
}

// ConfirmedLocation returns the resolved location of userID's session.
func (s *LocationService) ConfirmedLocation(userID string) (models.Location, error) {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok {
		return models.Location{}, appErrors.Clone(appErrors.ErrValidation, "no location has been resolved")
	}
	return session.resolver.ConfirmedLocation()
}

// Forget drops userID's session, cancelling anything in flight.
func (s *LocationService) Forget(userID string) {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	delete(s.sessions, userID)
	count := len(s.sessions)
	s.mu.Unlock()
	if ok {
		session.resolver.Close()
	}
	s.metrics.SetLocationSessions(count)
}

// Sweep evicts sessions idle for longer than SessionTTL and returns how many were removed.
func (s *LocationService) Sweep() int {
	cutoff := s.now().Add(-s.cfg.SessionTTL)
	evicted := make([]*locationSession, 0)

	s.mu.Lock()
	for userID, session := range s.sessions {
		if session.lastSeen.Before(cutoff) && !session.resolver.Resolving() {
			evicted = append(evicted, session)
			delete(s.sessions, userID)
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	for _, session := range evicted {
		session.resolver.Close()
	}
	s.metrics.SetLocationSessions(count)
	if len(evicted) > 0 {
		s.logger.Debug("evicted idle location sessions", zap.Int("evicted", len(evicted)), zap.Int("remaining", count))
	}
	return len(evicted)
}

// Run sweeps idle sessions until ctx is cancelled.
func (s *LocationService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *LocationService) resolver(userID string) (*LocationResolver, error) {
	if userID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		session = &locationSession{resolver: NewLocationResolver(s.geocoder, s.cfg.Resolver, s.logger)}
		s.sessions[userID] = session
		s.metrics.SetLocationSessions(len(s.sessions))
	}
	session.lastSeen = s.now()
	return session.resolver, nil
}
