package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/craftforge/payouts/internal/clock"
	"github.com/craftforge/payouts/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingService struct {
	targetDays []time.Time
	err        error
}

func (r *recordingService) RunOnce(ctx context.Context, targetDay time.Time) error {
	r.targetDays = append(r.targetDays, targetDay)
	return r.err
}

func newTestScheduler(svc *recordingService, clk *clock.FakeClock) *Scheduler {
	return New(Params{
		Distribution: svc,
		Policy: config.NewStaticPayoutPolicyHolder(config.PayoutPolicy{
			Schedule:   "5 0 * * *",
			CatalogTTL: 6 * time.Hour,
			JobTimeout: time.Minute,
		}),
		Clock: clk,
		Log:   zap.NewNop(),
	})
}

func TestRunDistributionTargetsYesterday(t *testing.T) {
	svc := &recordingService{}
	fake := clock.NewFakeClock(time.Date(2026, 8, 27, 0, 5, 0, 0, time.UTC))
	s := newTestScheduler(svc, fake)

	require.NoError(t, s.RunDistribution(context.Background()))

	require.Len(t, svc.targetDays, 1)
	assert.Equal(t, time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC), svc.targetDays[0])

	// The first run of a month still targets the previous month's last day.
	fake.Set(time.Date(2026, 9, 1, 0, 5, 0, 0, time.UTC))
	require.NoError(t, s.RunDistribution(context.Background()))

	require.Len(t, svc.targetDays, 2)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), svc.targetDays[1])
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	svc := &recordingService{}
	s := New(Params{
		Distribution: svc,
		Policy: config.NewStaticPayoutPolicyHolder(config.PayoutPolicy{
			Schedule:   "not a schedule",
			CatalogTTL: 6 * time.Hour,
			JobTimeout: time.Minute,
		}),
		Clock: clock.NewFakeClock(time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)),
		Log:   zap.NewNop(),
	})

	assert.Error(t, s.Start())
	s.Stop()
}
