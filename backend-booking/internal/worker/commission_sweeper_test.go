package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bamanh2802/bookingcar/backend-booking/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	calls   atomic.Int32
	limit   atomic.Int32
	results []*dto.CascadeResult
	err     error
}

func (s *stubSweeper) SweepUnpaid(ctx context.Context, limit int) ([]*dto.CascadeResult, error) {
	s.calls.Add(1)
	s.limit.Store(int32(limit))
	return s.results, s.err
}

func TestDefaultCommissionSweeperConfig(t *testing.T) {
	config := DefaultCommissionSweeperConfig()
	assert.Equal(t, 5*time.Minute, config.Interval)
	assert.Equal(t, 50, config.BatchSize)
}

func TestNewCommissionSweeper_Config(t *testing.T) {
	tests := []struct {
		name         string
		config       *CommissionSweeperConfig
		wantInterval time.Duration
		wantBatch    int
	}{
		{"nil config", nil, 5 * time.Minute, 50},
		{"custom", &CommissionSweeperConfig{Interval: time.Minute, BatchSize: 10}, time.Minute, 10},
		{"zero values fall back", &CommissionSweeperConfig{}, 5 * time.Minute, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewCommissionSweeper(&stubSweeper{}, nil, tt.config)
			assert.Equal(t, tt.wantInterval, w.config.Interval)
			assert.Equal(t, tt.wantBatch, w.config.BatchSize)
			assert.False(t, w.running)
		})
	}
}

func TestCommissionSweeper_RunOnce(t *testing.T) {
	stub := &stubSweeper{results: []*dto.CascadeResult{
		{TripID: "t1", Paid: 3, Failed: 1},
		{TripID: "t2", Paid: 2},
	}}
	w := NewCommissionSweeper(stub, nil, &CommissionSweeperConfig{Interval: time.Minute, BatchSize: 7})

	w.RunOnce(context.Background())

	stats := w.GetStats()
	assert.Equal(t, int32(7), stub.limit.Load())
	assert.Equal(t, int64(1), stats.TotalRuns)
	assert.Equal(t, int64(2), stats.TotalTrips)
	assert.Equal(t, int64(5), stats.TotalPaid)
	assert.Equal(t, int64(1), stats.TotalFailed)
	assert.Equal(t, 2, stats.LastTripCount)
	assert.False(t, stats.LastRunTime.IsZero())
}

func TestCommissionSweeper_RunOnceError(t *testing.T) {
	stub := &stubSweeper{err: errors.New("db down")}
	w := NewCommissionSweeper(stub, nil, nil)

	w.RunOnce(context.Background())

	stats := w.GetStats()
	assert.Equal(t, int64(1), stats.TotalRuns)
	assert.Equal(t, int64(0), stats.TotalPaid)
}

func TestCommissionSweeper_StartStop(t *testing.T) {
	stub := &stubSweeper{}
	w := NewCommissionSweeper(stub, nil, &CommissionSweeperConfig{Interval: 20 * time.Millisecond, BatchSize: 5})

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.GetStats().IsRunning)
	assert.Error(t, w.Start(context.Background()))

	assert.Eventually(t, func() bool { return stub.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	assert.False(t, w.GetStats().IsRunning)
	require.NoError(t, w.Stop())
}
