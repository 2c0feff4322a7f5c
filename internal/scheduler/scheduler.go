package scheduler

import (
	"context"
	"time"

	"github.com/craftforge/payouts/internal/clock"
	"github.com/craftforge/payouts/internal/config"
	distributiondomain "github.com/craftforge/payouts/internal/distribution/domain"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Distribution distributiondomain.Service
	Policy       *config.PayoutPolicyHolder
	Clock        clock.Clock
	Log          *zap.Logger
}

// Scheduler triggers the daily distribution run shortly after UTC midnight,
// always for the previous (fully elapsed) day.
type Scheduler struct {
	distribution distributiondomain.Service
	policy       *config.PayoutPolicyHolder
	clock        clock.Clock
	log          *zap.Logger

	cron *cron.Cron
}

func New(p Params) *Scheduler {
	return &Scheduler{
		distribution: p.Distribution,
		policy:       p.Policy,
		clock:        p.Clock,
		log:          p.Log.Named("scheduler"),
	}
}

func (s *Scheduler) Start() error {
	schedule := s.policy.Get().Schedule

	s.cron = cron.New(cron.WithLocation(time.UTC))
	if _, err := s.cron.AddFunc(schedule, func() {
		if err := s.RunDistribution(context.Background()); err != nil {
			s.log.Error("distribution run failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.String("schedule", schedule))
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunDistribution runs one distribution pass for yesterday under the
// configured job timeout.
func (s *Scheduler) RunDistribution(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.policy.Get().JobTimeout)
	defer cancel()

	now := s.clock.Now()
	yesterday := now.AddDate(0, 0, -1)
	targetDay := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, time.UTC)

	started := time.Now()
	err := s.distribution.RunOnce(ctx, targetDay)
	s.log.Info("distribution pass finished",
		zap.Time("day", targetDay),
		zap.Duration("took", time.Since(started)),
		zap.Error(err),
	)
	return err
}

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
}
