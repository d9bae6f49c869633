package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-lookup/internal/services"
)

// Sweeper drops expired sessions.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Prober performs one upstream health lookup.
type Prober interface {
	Probe(ctx context.Context, city string) services.ProbeResult
}

type Config struct {
	SweepSchedule string
	ProbeSchedule string
	ProbeCity     string
	JobTimeout    time.Duration
}

// Scheduler runs background maintenance: session sweeping and a periodic
// probe that checks the upstream key still works. A job still running when
// its next tick fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	prober  Prober
	config  Config
	logger  *zap.Logger

	mu        sync.Mutex
	running   bool
	lastSweep time.Time
	lastProbe time.Time
	swept     int
	sweepID   cron.EntryID
	probeID   cron.EntryID
}

func NewScheduler(sweeper Sweeper, prober Prober, config Config, logger *zap.Logger) *Scheduler {
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Second
	}
	cronLog := newCronLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(
				cron.Recover(cronLog),
				cron.SkipIfStillRunning(cronLog),
			),
		),
		sweeper: sweeper,
		prober:  prober,
		config:  config,
		logger:  logger,
	}
}

// Start registers the jobs and starts the cron runner. An empty schedule
// disables that job.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if s.config.SweepSchedule != "" {
		id, err := s.cron.AddFunc(s.config.SweepSchedule, s.RunSweep)
		if err != nil {
			return fmt.Errorf("scheduling session sweep %q: %w", s.config.SweepSchedule, err)
		}
		s.sweepID = id
	}
	if s.config.ProbeSchedule != "" && s.prober != nil {
		id, err := s.cron.AddFunc(s.config.ProbeSchedule, s.RunProbe)
		if err != nil {
			return fmt.Errorf("scheduling upstream probe %q: %w", s.config.ProbeSchedule, err)
		}
		s.probeID = id
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started",
		zap.String("sweep_schedule", s.config.SweepSchedule),
		zap.String("probe_schedule", s.config.ProbeSchedule),
		zap.String("probe_city", s.config.ProbeCity))
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunSweep removes expired sessions once.
func (s *Scheduler) RunSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()

	count, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("Session sweep failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.lastSweep = time.Now()
	s.swept += count
	s.mu.Unlock()

	if count > 0 {
		s.logger.Info("Expired sessions swept", zap.Int("count", count))
	}
}

// RunProbe looks up the probe city once and logs the outcome.
func (s *Scheduler) RunProbe() {
	requestID := uuid.New().String()
	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()

	s.logger.Debug("Upstream probe triggered",
		zap.String("request_id", requestID),
		zap.String("city", s.config.ProbeCity))

	result := s.prober.Probe(ctx, s.config.ProbeCity)

	s.mu.Lock()
	s.lastProbe = result.At
	s.mu.Unlock()

	if !result.OK {
		s.logger.Warn("Upstream probe failed",
			zap.String("request_id", requestID),
			zap.String("city", result.City),
			zap.String("kind", result.Kind),
			zap.String("error", result.Error),
			zap.Duration("duration", result.Duration))
		return
	}
	s.logger.Info("Upstream probe succeeded",
		zap.String("request_id", requestID),
		zap.String("city", result.City),
		zap.Duration("duration", result.Duration))
}

func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"running":        s.running,
		"sweep_schedule": s.config.SweepSchedule,
		"probe_schedule": s.config.ProbeSchedule,
		"probe_city":     s.config.ProbeCity,
		"last_sweep":     s.lastSweep,
		"last_probe":     s.lastProbe,
		"sessions_swept": s.swept,
	}
	if s.running {
		if s.sweepID != 0 {
			status["next_sweep"] = s.cron.Entry(s.sweepID).Next
		}
		if s.probeID != 0 {
			status["next_probe"] = s.cron.Entry(s.probeID).Next
		}
	}
	return status
}

// cronLogger sends cron's own messages (recovered panics, skipped runs)
// to zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func newCronLogger(logger *zap.Logger) cron.Logger {
	return cronLogger{sugar: logger.Named("cron").Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
