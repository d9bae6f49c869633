package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bobby-s-dev/weather-lookup/internal/services"
)

type fakeSweeper struct {
	count int
	err   error
	calls int
}

func (f *fakeSweeper) Sweep(context.Context) (int, error) {
	f.calls++
	return f.count, f.err
}

type fakeProber struct {
	mu     sync.Mutex
	cities []string
	ok     bool
}

func (f *fakeProber) Probe(_ context.Context, city string) services.ProbeResult {
	f.mu.Lock()
	f.cities = append(f.cities, city)
	f.mu.Unlock()
	return services.ProbeResult{City: city, At: time.Now(), OK: f.ok, Kind: "unauthorized"}
}

func testConfig() Config {
	return Config{SweepSchedule: "@every 1h", ProbeSchedule: "@every 2h", ProbeCity: "london"}
}

func TestRunSweep(t *testing.T) {
	sweeper := &fakeSweeper{count: 3}
	s := NewScheduler(sweeper, &fakeProber{}, testConfig(), zap.NewNop())

	s.RunSweep()
	s.RunSweep()

	status := s.GetStatus()
	assert.Equal(t, 6, status["sessions_swept"])
	assert.False(t, status["last_sweep"].(time.Time).IsZero())
	assert.Equal(t, 2, sweeper.calls)
}

func TestRunSweep_Error(t *testing.T) {
	s := NewScheduler(&fakeSweeper{err: errors.New("redis down")}, &fakeProber{}, testConfig(), zap.NewNop())

	s.RunSweep()
	assert.True(t, s.GetStatus()["last_sweep"].(time.Time).IsZero())
}

func TestRunProbe(t *testing.T) {
	prober := &fakeProber{ok: false}
	s := NewScheduler(&fakeSweeper{}, prober, testConfig(), zap.NewNop())

	s.RunProbe()

	assert.Equal(t, []string{"london"}, prober.cities)
	assert.False(t, s.GetStatus()["last_probe"].(time.Time).IsZero())
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&fakeSweeper{}, &fakeProber{}, testConfig(), zap.NewNop())

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())

	status := s.GetStatus()
	assert.Equal(t, true, status["running"])
	assert.Contains(t, status, "next_sweep")
	assert.Contains(t, status, "next_probe")

	s.Stop()
	s.Stop()
	assert.Equal(t, false, s.GetStatus()["running"])
}

func TestStart_InvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.SweepSchedule = "every now and then"
	s := NewScheduler(&fakeSweeper{}, &fakeProber{}, cfg, zap.NewNop())

	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session sweep")
}

func TestStart_ProbeDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.ProbeSchedule = ""
	s := NewScheduler(&fakeSweeper{}, &fakeProber{}, cfg, zap.NewNop())

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.NotContains(t, s.GetStatus(), "next_probe")
}

func TestCronLogger_RoutesPanicsAndSkipsToZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cronLog := newCronLogger(zap.New(core))

	job := cron.NewChain(cron.Recover(cronLog)).Then(cron.FuncJob(func() {
		panic("sweep exploded")
	}))
	assert.NotPanics(t, job.Run)

	panics := logs.FilterMessage("panic").All()
	require.Len(t, panics, 1)
	assert.Equal(t, zapcore.ErrorLevel, panics[0].Level)
	assert.Equal(t, "cron", panics[0].LoggerName)
	assert.Contains(t, panics[0].ContextMap()["error"], "sweep exploded")

	release := make(chan struct{})
	started := make(chan struct{})
	slow := cron.NewChain(cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(func() {
		close(started)
		<-release
	}))
	go slow.Run()
	<-started
	slow.Run()
	close(release)

	assert.Len(t, logs.FilterMessage("skip").All(), 1)
}
