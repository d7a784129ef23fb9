package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sns-grievance-api/internal/models"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
)

type stubGeocoder struct {
	mu            sync.Mutex
	reverseFn     func(ctx context.Context, lat, lon float64) (string, error)
	searchFn      func(ctx context.Context, query string, limit int) ([]models.LocationSuggestion, error)
	reverseCalls  int
	searchQueries []string
}

func (g *stubGeocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	g.mu.Lock()
	g.reverseCalls++
	fn := g.reverseFn
	g.mu.Unlock()
	if fn == nil {
		return "", errors.New("reverse not stubbed")
	}
	return fn(ctx, lat, lon)
}

func (g *stubGeocoder) Search(ctx context.Context, query string, limit int) ([]models.LocationSuggestion, error) {
	g.mu.Lock()
	g.searchQueries = append(g.searchQueries, query)
	fn := g.searchFn
	g.mu.Unlock()
	if fn == nil {
		return nil, errors.New("search not stubbed")
	}
	return fn(ctx, query, limit)
}

func (g *stubGeocoder) queries() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.searchQueries))
	copy(out, g.searchQueries)
	return out
}

type locatorFunc func(ctx context.Context) (models.DeviceFix, error)

func (f locatorFunc) Locate(ctx context.Context) (models.DeviceFix, error) {
	return f(ctx)
}

func suggestionsFor(query string, n int) []models.LocationSuggestion {
	out := make([]models.LocationSuggestion, n)
	for i := range out {
		out[i] = models.LocationSuggestion{
			DisplayName: query + ", Navi Mumbai",
			Latitude:    19.03 + float64(i)/100,
			Longitude:   73.01 + float64(i)/100,
			PlaceID:     query,
		}
	}
	return out
}

func TestLocationResolverMapClick(t *testing.T) {
	geocoder := &stubGeocoder{reverseFn: func(context.Context, float64, float64) (string, error) {
		return "  Sector 9A, Navi Mumbai ", nil
	}}
	resolver := NewLocationResolver(geocoder, DefaultLocationResolverConfig(), zap.NewNop())

	result, err := resolver.ResolveFromMapClick(context.Background(), 19.0330, 73.0297)
	require.NoError(t, err)
	require.Equal(t, "Sector 9A, Navi Mumbai", result.Address)
	require.Equal(t, models.LocationSourceMapClick, result.Source)
	require.False(t, result.Degraded)
	require.False(t, resolver.Resolving())

	location, err := resolver.ConfirmedLocation()
	require.NoError(t, err)
	require.Equal(t, models.Location{Latitude: 19.0330, Longitude: 73.0297, Address: "Sector 9A, Navi Mumbai"}, location)
}

func TestLocationResolverMapClickDegradesOnGeocoderFailure(t *testing.T) {
	geocoder := &stubGeocoder{reverseFn: func(context.Context, float64, float64) (string, error) {
		return "", errors.New("nominatim 503")
	}}
	resolver := NewLocationResolver(geocoder, DefaultLocationResolverConfig(), zap.NewNop())

	result, err := resolver.ResolveFromMapClick(context.Background(), 19.0330, 73.0297)
	require.NoError(t, err)
	require.True(t, result.Degraded)
	require.Empty(t, result.Address)
	require.Equal(t, 19.0330, result.Latitude)

	current, ok := resolver.Current()
	require.True(t, ok)
	require.True(t, current.Degraded)

	_, err = resolver.ConfirmedLocation()
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLocationResolverMapClickRejectsOutOfRange(t *testing.T) {
	geocoder := &stubGeocoder{}
	resolver := NewLocationResolver(geocoder, DefaultLocationResolverConfig(), zap.NewNop())

	_, err := resolver.ResolveFromMapClick(context.Background(), 95, 73)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Zero(t, geocoder.reverseCalls)
}

func TestLocationResolverNewerMapClickSupersedesInFlight(t *testing.T) {
	started := make(chan struct{})
	geocoder := &stubGeocoder{reverseFn: func(ctx context.Context, lat, _ float64) (string, error) {
		if lat == 10 {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "Vashi, Navi Mumbai", nil
	}}
	resolver := NewLocationResolver(geocoder, DefaultLocationResolverConfig(), zap.NewNop())

	firstErr := make(chan error, 1)
	go func() {
		_, err := resolver.ResolveFromMapClick(context.Background(), 10, 10)
		firstErr <- err
	}()
	<-started
	require.True(t, resolver.Resolving())

	result, err := resolver.ResolveFromMapClick(context.Background(), 19.07, 72.99)
	require.NoError(t, err)
	require.Equal(t, "Vashi, Navi Mumbai", result.Address)

	err = <-firstErr
	require.Equal(t, appErrors.ErrRequestSuperseded.Code, appErrors.FromError(err).Code)

	current, ok := resolver.Current()
	require.True(t, ok)
	require.Equal(t, "Vashi, Navi Mumbai", current.Address)
	require.False(t, resolver.Resolving())
}

func TestLocationResolverSearchDebounceDiscardsSupersededQuery(t *testing.T) {
	geocoder := &stubGeocoder{searchFn: func(_ context.Context, query string, limit int) ([]models.LocationSuggestion, error) {
		return suggestionsFor(query, limit), nil
	}}
	resolver := NewLocationResolver(geocoder, DefaultLocationResolverConfig(), zap.NewNop())

	firstErr := make(chan error, 1)
	go func() {
		_, err := resolver.SearchByText(context.Background(), "Ner")
		firstErr <- err
	}()
	time.Sleep(100 * time.Millisecond)

	suggestions, err := resolver.SearchByText(context.Background(), "Nerul East")
	require.NoError(t, err)
	require.Len(t, suggestions, 5)
	require.Equal(t, "Nerul East", suggestions[0].PlaceID)

	err = <-firstErr
	require.Equal(t, appErrors.ErrRequestSuperseded.Code, appErrors.FromError(err).Code)
	require.Equal(t, []string{"Nerul East"}, geocoder.queries())

	applied := resolver.Suggestions()
	require.Len(t, applied, 5)
	for _, s := range applied {
		require.Equal(t, "Nerul East", s.PlaceID)
	}
}

func TestLocationResolverSearchShortQueryClearsSuggestions(t *testing.T) {
	geocoder := &stubGeocoder{searchFn: func(_ context.Context, query string, limit int) ([]models.LocationSuggestion, error) {
		return suggestionsFor(query, 2), nil
	}}
	resolver := NewLocationResolver(geocoder, LocationResolverConfig{Debounce: time.Millisecond}, zap.NewNop())

	_, err := resolver.SearchByText(context.Background(), "Vashi")
	require.NoError(t, err)
	require.Len(t, resolver.Suggestions(), 2)

	suggestions, err := resolver.SearchByText(context.Background(), " Va ")
	require.NoError(t, err)
	require.Empty(t, suggestions)
	require.Empty(t, resolver.Suggestions())
	require.Equal(t, []string{"Vashi"}, geocoder.queries())
}

func TestLocationResolverSearchTruncatesAndReportsFailure(t *testing.T) {
	fail := false
	geocoder := &stubGeocoder{searchFn: func(_ context.Context, query string, _ int) ([]models.LocationSuggestion, error) {
		if fail {
			return nil, errors.New("timeout")
		}
		return suggestionsFor(query, 8), nil
	}}
	resolver := NewLocationResolver(geocoder, LocationResolverConfig{Debounce: time.Millisecond, SuggestionLimit: 3}, zap.NewNop())

	suggestions, err := resolver.SearchByText(context.Background(), "Belapur")
	require.NoError(t, err)
	require.Len(t, suggestions, 3)

	fail = true
	_, err = resolver.SearchByText(context.Background(), "Belapur CBD")
	require.Equal(t, appErrors.ErrGeocodingDegraded.Code, appErrors.FromError(err).Code)
	require.Empty(t, resolver.Suggestions())
	require.False(t, resolver.Resolving())
}

func TestLocationResolverSearchCancelledByCaller(t *testing.T) {
	geocoder := &stubGeocoder{searchFn: func(_ context.Context, query string, limit int) ([]models.LocationSuggestion, error) {
		return suggestionsFor(query, limit), nil
	}}
	resolver := NewLocationResolver(geocoder, DefaultLocationResolverConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := resolver.SearchByText(ctx, "Kharghar")
	require.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	require.Empty(t, geocoder.queries())
	require.False(t, resolver.Resolving())
}

func TestLocationResolverSearchCancelledInFlight(t *testing.T) {
	started := make(chan struct{})
	geocoder := &stubGeocoder{searchFn: func(ctx context.Context, _ string, _ int) ([]models.LocationSuggestion, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	resolver := NewLocationResolver(geocoder, LocationResolverConfig{Debounce: time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := resolver.SearchByText(ctx, "Kharghar")
		errs <- err
	}()
	<-started
	cancel()

	err := <-errs
	require.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	require.False(t, resolver.Resolving())
}

func TestLocationResolverSelectSuggestion(t *testing.T) {
	geocoder := &stubGeocoder{searchFn: func(_ context.Context, query string, limit int) ([]models.LocationSuggestion, error) {
		return suggestionsFor(query, limit), nil
	}}
	resolver := NewLocationResolver(geocoder, LocationResolverConfig{Debounce: time.Millisecond}, zap.NewNop())

	suggestions, err := resolver.SearchByText(context.Background(), "Nerul East")
	require.NoError(t, err)

	result, err := resolver.SelectSuggestion(suggestions[1])
	require.NoError(t, err)
	require.Equal(t, models.LocationSourceSearch, result.Source)
	require.Equal(t, suggestions[1].DisplayName, result.Address)
	require.Empty(t, resolver.Suggestions())

	location, err := resolver.ConfirmedLocation()
	require.NoError(t, err)
	require.Equal(t, suggestions[1].Latitude, location.Latitude)
	require.Zero(t, geocoder.reverseCalls)

	_, err = resolver.SelectSuggestion(models.LocationSuggestion{Latitude: 100})
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLocationResolverDeviceFailureLeavesStateUntouched(t *testing.T) {
	geocoder := &stubGeocoder{reverseFn: func(context.Context, float64, float64) (string, error) {
		return "Sector 9A, Navi Mumbai", nil
	}}
	resolver := NewLocationResolver(geocoder, DefaultLocationResolverConfig(), zap.NewNop())
	_, err := resolver.ResolveFromMapClick(context.Background(), 19.0330, 73.0297)
	require.NoError(t, err)
	before := resolver.Snapshot()

	_, err = resolver.ResolveFromDevice(context.Background(), locatorFunc(func(context.Context) (models.DeviceFix, error) {
		return models.DeviceFix{}, errors.New("permission denied")
	}))
	require.Equal(t, appErrors.ErrLocationUnavailable.Code, appErrors.FromError(err).Code)
	require.Equal(t, before, resolver.Snapshot())

	_, err = resolver.ResolveFromDevice(context.Background(), nil)
	require.Equal(t, appErrors.ErrLocationUnavailable.Code, appErrors.FromError(err).Code)
	require.Equal(t, 1, geocoder.reverseCalls)
}

func TestLocationResolverDeviceFix(t *testing.T) {
	geocoder := &stubGeocoder{reverseFn: func(_ context.Context, lat, lon float64) (string, error) {
		return "Nerul East, Navi Mumbai", nil
	}}
	resolver := NewLocationResolver(geocoder, DefaultLocationResolverConfig(), zap.NewNop())

	result, err := resolver.ResolveFromDevice(context.Background(), locatorFunc(func(context.Context) (models.DeviceFix, error) {
		return models.DeviceFix{Latitude: 19.0330, Longitude: 73.0186, Accuracy: 12}, nil
	}))
	require.NoError(t, err)
	require.Equal(t, models.LocationSourceDevice, result.Source)
	require.Equal(t, "Nerul East, Navi Mumbai", result.Address)
}

func TestLocationResolverConfirmedLocationWhileResolving(t *testing.T) {
	release := make(chan struct{})
	geocoder := &stubGeocoder{reverseFn: func(ctx context.Context, _, _ float64) (string, error) {
		<-release
		return "Sector 9A, Navi Mumbai", nil
	}}
	resolver := NewLocationResolver(geocoder, DefaultLocationResolverConfig(), zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = resolver.ResolveFromMapClick(context.Background(), 19.0330, 73.0297)
	}()
	require.Eventually(t, resolver.Resolving, time.Second, 5*time.Millisecond)

	_, err := resolver.ConfirmedLocation()
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	close(release)
	<-done
	_, err = resolver.ConfirmedLocation()
	require.NoError(t, err)
}
