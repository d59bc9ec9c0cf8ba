package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/bamanh2802/bookingcar/pkg/logger"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// UnpaidSweeper pays completed trips that still carry unpaid tickets
type UnpaidSweeper interface {
	SweepUnpaid(ctx context.Context, limit int) ([]*dto.CascadeResult, error)
}

// CommissionSweeperConfig holds configuration for the commission sweeper
type CommissionSweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultCommissionSweeperConfig returns default configuration
func DefaultCommissionSweeperConfig() *CommissionSweeperConfig {
	return &CommissionSweeperConfig{
		Interval:  5 * time.Minute,
		BatchSize: 50,
	}
}

// CommissionSweeperStats is a snapshot of sweeper progress
type CommissionSweeperStats struct {
	IsRunning     bool      `json:"is_running"`
	TotalRuns     int64     `json:"total_runs"`
	TotalTrips    int64     `json:"total_trips"`
	TotalPaid     int64     `json:"total_paid"`
	TotalFailed   int64     `json:"total_failed"`
	LastRunTime   time.Time `json:"last_run_time"`
	LastTripCount int       `json:"last_trip_count"`
}

// CommissionSweeper retries commission payouts that a cascade left unpaid
type CommissionSweeper struct {
	sweeper   UnpaidSweeper
	log       *logger.Logger
	config    *CommissionSweeperConfig
	scheduler gocron.Scheduler

	mu            sync.Mutex
	running       bool
	totalRuns     int64
	totalTrips    int64
	totalPaid     int64
	totalFailed   int64
	lastRunTime   time.Time
	lastTripCount int
}

// NewCommissionSweeper creates a new sweeper
func NewCommissionSweeper(sweeper UnpaidSweeper, log *logger.Logger, config *CommissionSweeperConfig) *CommissionSweeper {
	if config == nil {
		config = DefaultCommissionSweeperConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultCommissionSweeperConfig().Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultCommissionSweeperConfig().BatchSize
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CommissionSweeper{
		sweeper: sweeper,
		log:     log.Named("commission-sweeper"),
		config:  config,
	}
}

// Start schedules the sweep every Interval. Overlapping runs are skipped.
func (w *CommissionSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("commission sweeper already running")
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(w.config.Interval),
		gocron.NewTask(func() {
			w.RunOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("commission-sweep"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return err
	}

	scheduler.Start()
	w.scheduler = scheduler
	w.running = true
	w.log.Info("commission sweeper started",
		zap.Duration("interval", w.config.Interval),
		zap.Int("batch_size", w.config.BatchSize),
	)
	return nil
}

// Stop shuts the scheduler down and waits for a running sweep
func (w *CommissionSweeper) Stop() error {
	w.mu.Lock()
	scheduler := w.scheduler
	w.scheduler = nil
	w.running = false
	w.mu.Unlock()

	if scheduler == nil {
		return nil
	}
	w.log.Info("commission sweeper stopping")
	return scheduler.Shutdown()
}

// RunOnce performs a single sweep and records its outcome
func (w *CommissionSweeper) RunOnce(ctx context.Context) {
	results, err := w.sweeper.SweepUnpaid(ctx, w.config.BatchSize)

	var paid, failed int64
	for _, r := range results {
		paid += int64(r.Paid)
		failed += int64(r.Failed)
	}

	w.mu.Lock()
	w.totalRuns++
	w.totalTrips += int64(len(results))
	w.totalPaid += paid
	w.totalFailed += failed
	w.lastRunTime = time.Now()
	w.lastTripCount = len(results)
	w.mu.Unlock()

	if err != nil {
		w.log.WithContext(ctx).Error("commission sweep failed", zap.Error(err))
		return
	}
	if len(results) > 0 {
		w.log.WithContext(ctx).Info("commission sweep finished",
			zap.Int("trips", len(results)),
			zap.Int64("paid", paid),
			zap.Int64("failed", failed),
		)
	}
}

// GetStats returns a snapshot of the sweeper counters
func (w *CommissionSweeper) GetStats() *CommissionSweeperStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &CommissionSweeperStats{
		IsRunning:     w.running,
		TotalRuns:     w.totalRuns,
		TotalTrips:    w.totalTrips,
		TotalPaid:     w.totalPaid,
		TotalFailed:   w.totalFailed,
		LastRunTime:   w.lastRunTime,
		LastTripCount: w.lastTripCount,
	}
}
