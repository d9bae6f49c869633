package services

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-lookup/internal/models"
	"github.com/bobby-s-dev/weather-lookup/pkg/client"
)

type fakeCityClient struct {
	mu      sync.Mutex
	queries []models.WeatherQuery
	err     error
	temp    float64
}

func (f *fakeCityClient) GetCurrentWeather(_ context.Context, query models.WeatherQuery) (*client.EnhancedWeather, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	w := &client.EnhancedWeather{FormattedTime: "2024/03/01 09:30:00"}
	w.Name = query.Resolved
	w.Main.Temp = f.temp
	return w, nil
}

func (f *fakeCityClient) BreakerState() string { return "closed" }

type fakeLocationClient struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeLocationClient) GetCurrentWeather(_ context.Context, loc models.Location) (*models.OpenMeteoReading, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &models.OpenMeteoReading{Temperature: 9, Location: loc}, nil
}

func (f *fakeLocationClient) BreakerState() string { return "closed" }

func newTestService(ow *fakeCityClient, om *fakeLocationClient) *WeatherService {
	return NewWeatherServiceWithClients(ow, om, zap.NewNop())
}

func TestFetchSnapshot_ResolvesBeforeCall(t *testing.T) {
	ow := &fakeCityClient{temp: 3}
	s := newTestService(ow, &fakeLocationClient{})

	snap, err := s.FetchSnapshot(context.Background(), "北京")
	require.NoError(t, err)

	require.Len(t, ow.queries, 1)
	assert.Equal(t, "北京", ow.queries[0].City)
	assert.Equal(t, "beijing", ow.queries[0].Resolved)
	assert.Equal(t, 3.0, snap.Temperature)
	assert.Equal(t, "beijing", snap.City)
}

func TestFetchSnapshot_UnknownCityPassesThrough(t *testing.T) {
	ow := &fakeCityClient{}
	s := newTestService(ow, &fakeLocationClient{})

	_, err := s.FetchSnapshot(context.Background(), "Reykjavik")
	require.NoError(t, err)
	assert.Equal(t, "Reykjavik", ow.queries[0].Resolved)
}

func TestFetchSnapshot_ErrorCounted(t *testing.T) {
	ow := &fakeCityClient{err: &client.UpstreamError{Kind: client.KindNotFound, Status: http.StatusNotFound, Message: "not found"}}
	s := newTestService(ow, &fakeLocationClient{})

	_, err := s.FetchSnapshot(context.Background(), "atlantis")
	require.Error(t, err)
	assert.True(t, client.IsKind(err, client.KindNotFound))

	stats := s.GetStats()
	assert.Equal(t, 1, stats["failure_count"])
	assert.Equal(t, 0, stats["success_count"])
	assert.Equal(t, map[string]int{"not_found": 1}, stats["failures_by_kind"])
}

func TestFetchSnapshot_CancellationNotCounted(t *testing.T) {
	ow := &fakeCityClient{err: context.Canceled}
	s := newTestService(ow, &fakeLocationClient{})

	_, err := s.FetchSnapshot(context.Background(), "london")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.GetStats()["failure_count"])
}

func TestCompare_BothUpstreams(t *testing.T) {
	ow := &fakeCityClient{temp: 11}
	om := &fakeLocationClient{}
	s := newTestService(ow, om)

	cmp, err := s.Compare(context.Background(), "伦敦")
	require.NoError(t, err)

	require.NotNil(t, cmp.OpenWeather)
	require.NotNil(t, cmp.OpenMeteo)
	assert.Equal(t, 11.0, cmp.OpenWeather.Temperature)
	assert.Equal(t, "伦敦", cmp.OpenMeteo.Location.Name)
	assert.Equal(t, "london", cmp.Query.Resolved)
	assert.Empty(t, cmp.Errors)
}

func TestCompare_UnknownLocationSkipsOpenMeteo(t *testing.T) {
	om := &fakeLocationClient{}
	s := newTestService(&fakeCityClient{}, om)

	cmp, err := s.Compare(context.Background(), "Reykjavik")
	require.NoError(t, err)
	assert.NotNil(t, cmp.OpenWeather)
	assert.Nil(t, cmp.OpenMeteo)
	assert.Equal(t, 0, om.calls)
	assert.Contains(t, cmp.Errors["open-meteo"], "no coordinates")
}

func TestCompare_PartialFailure(t *testing.T) {
	ow := &fakeCityClient{err: &client.UpstreamError{Kind: client.KindRateLimited, Message: "API request quota exceeded"}}
	s := newTestService(ow, &fakeLocationClient{})

	cmp, err := s.Compare(context.Background(), "tokyo")
	require.NoError(t, err)
	assert.Nil(t, cmp.OpenWeather)
	assert.NotNil(t, cmp.OpenMeteo)
	assert.Equal(t, "API request quota exceeded", cmp.Errors["openweathermap"])
}

func TestCompare_AllFail(t *testing.T) {
	owErr := &client.UpstreamError{Kind: client.KindNetwork, Message: "network connection error"}
	s := newTestService(&fakeCityClient{err: owErr}, &fakeLocationClient{err: owErr})

	cmp, err := s.Compare(context.Background(), "tokyo")
	require.Error(t, err)
	require.NotNil(t, cmp)
	assert.Len(t, cmp.Errors, 2)
}

func TestProbe_RecordsResult(t *testing.T) {
	ow := &fakeCityClient{err: &client.UpstreamError{Kind: client.KindUnauthorized, Message: "invalid or inactive API key"}}
	s := newTestService(ow, &fakeLocationClient{})

	result := s.Probe(context.Background(), "london")
	assert.False(t, result.OK)
	assert.Equal(t, "unauthorized", result.Kind)

	probe, ok := s.GetStats()["last_probe"].(ProbeResult)
	require.True(t, ok)
	assert.Equal(t, "london", probe.City)
	assert.Equal(t, "invalid or inactive API key", probe.Error)
}
