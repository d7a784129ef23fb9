package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sns-grievance-api/internal/models"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
)

func newLocationServiceForTest(geocoder Geocoder) (*LocationService, *time.Time) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := NewLocationService(geocoder, LocationServiceConfig{
		Resolver:   LocationResolverConfig{Debounce: time.Millisecond},
		SessionTTL: 10 * time.Minute,
	}, NewMetricsService(), zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestLocationServiceKeepsSessionsPerUser(t *testing.T) {
	geocoder := &stubGeocoder{reverseFn: func(_ context.Context, lat, _ float64) (string, error) {
		if lat > 19 {
			return "Sector 9A, Navi Mumbai", nil
		}
		return "Panvel", nil
	}}
	svc, _ := newLocationServiceForTest(geocoder)

	_, err := svc.ReverseGeocode(context.Background(), "42", 19.0330, 73.0297)
	require.NoError(t, err)
	_, err = svc.ReverseGeocode(context.Background(), "77", 18.99, 73.11)
	require.NoError(t, err)

	asha, err := svc.ConfirmedLocation("42")
	require.NoError(t, err)
	require.Equal(t, "Sector 9A, Navi Mumbai", asha.Address)

	ravi := svc.Snapshot("77")
	require.NotNil(t, ravi.Current)
	require.Equal(t, "Panvel", ravi.Current.Address)

	empty := svc.Snapshot("nobody")
	require.Nil(t, empty.Current)
	require.NotNil(t, empty.Suggestions)

	_, err = svc.ConfirmedLocation("nobody")
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ReverseGeocode(context.Background(), "", 19, 73)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLocationServiceSearchAndSelect(t *testing.T) {
	geocoder := &stubGeocoder{searchFn: func(_ context.Context, query string, limit int) ([]models.LocationSuggestion, error) {
		return suggestionsFor(query, limit), nil
	}}
	svc, _ := newLocationServiceForTest(geocoder)

	suggestions, err := svc.Search(context.Background(), "42", "Nerul East")
	require.NoError(t, err)
	require.Len(t, suggestions, 5)

	result, err := svc.Select("42", suggestions[0])
	require.NoError(t, err)
	require.Equal(t, models.LocationSourceSearch, result.Source)

	location, err := svc.ConfirmedLocation("42")
	require.NoError(t, err)
	require.Equal(t, suggestions[0].DisplayName, location.Address)
}

func TestLocationServiceFromDevice(t *testing.T) {
	geocoder := &stubGeocoder{reverseFn: func(context.Context, float64, float64) (string, error) {
		return "Vashi", nil
	}}
	svc, _ := newLocationServiceForTest(geocoder)

	result, err := svc.FromDevice(context.Background(), "42", locatorFunc(func(context.Context) (models.DeviceFix, error) {
		return models.DeviceFix{Latitude: 19.07, Longitude: 72.99}, nil
	}))
	require.NoError(t, err)
	require.Equal(t, models.LocationSourceDevice, result.Source)
}

func TestLocationServiceSweepEvictsIdleSessions(t *testing.T) {
	geocoder := &stubGeocoder{reverseFn: func(context.Context, float64, float64) (string, error) {
		return "Sector 9A, Navi Mumbai", nil
	}}
	svc, now := newLocationServiceForTest(geocoder)

	_, err := svc.ReverseGeocode(context.Background(), "42", 19.0330, 73.0297)
	require.NoError(t, err)
	*now = now.Add(8 * time.Minute)
	_, err = svc.ReverseGeocode(context.Background(), "77", 19.0330, 73.0297)
	require.NoError(t, err)

	*now = now.Add(5 * time.Minute)
	require.Equal(t, 1, svc.Sweep())

	_, err = svc.ConfirmedLocation("42")
	require.Error(t, err)
	_, err = svc.ConfirmedLocation("77")
	require.NoError(t, err)

	svc.Forget("77")
	_, err = svc.ConfirmedLocation("77")
	require.Error(t, err)
	require.Equal(t, 0, svc.Sweep())
}

func TestLocationServiceRunStopsWithContext(t *testing.T) {
	svc := NewLocationService(&stubGeocoder{}, LocationServiceConfig{SweepInterval: time.Millisecond}, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
