package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// HoldExpirer deletes holds older than a grace window.
type HoldExpirer interface {
	ExpireHolds(ctx context.Context, grace time.Duration) (SweepResult, error)
}

type SweeperConfig struct {
	Interval    time.Duration
	GracePeriod time.Duration
}

// Sweeper periodically reclaims slots held by abandoned bookings. A failed
// or panicking run is logged and the next tick retries; a tick that fires
// while the previous run is still going is skipped.
type Sweeper struct {
	expirer HoldExpirer
	cfg     SweeperConfig
	logger  zerolog.Logger
	cron    *cron.Cron
}

func NewSweeper(expirer HoldExpirer, cfg SweeperConfig, logger zerolog.Logger) *Sweeper {
	logger = logger.With().Str("component", "hold-sweeper").Logger()
	cl := cronLogger{logger: logger}
	return &Sweeper{
		expirer: expirer,
		cfg:     cfg,
		logger:  logger,
		cron: cron.New(
			cron.WithLogger(cl),
			// Recover must sit inside the skip guard, or a panic keeps the
			// guard's token and every later tick is skipped.
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	res, err := s.expirer.ExpireHolds(ctx, s.cfg.GracePeriod)
	if err != nil {
		s.logger.Error().Err(err).Time("cutoff", res.Cutoff).Msg("hold sweep failed")
		return res, err
	}
	s.logger.Info().Int64("swept", res.Deleted).Time("cutoff", res.Cutoff).Msg("expired holds swept")
	return res, nil
}

// Start schedules the sweep every Interval. Runs use ctx as their parent and
// are bounded by Interval.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.cfg.Interval)
	}
	_, err := s.cron.AddFunc("@every "+s.cfg.Interval.String(), func() {
		runCtx, cancel := context.WithTimeout(ctx, s.cfg.Interval)
		defer cancel()
		_, _ = s.RunOnce(runCtx)
	})
	if err != nil {
		return fmt.Errorf("schedule hold sweeper: %w", err)
	}
	s.cron.Start()
	s.logger.Info().Dur("interval", s.cfg.Interval).Dur("grace", s.cfg.GracePeriod).Msg("hold sweeper started")
	return nil
}

// Stop halts scheduling. The returned context is done once any running
// sweep has finished.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
