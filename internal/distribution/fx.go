package distribution

import (
	"github.com/craftforge/payouts/internal/distribution/repository"
	"github.com/craftforge/payouts/internal/distribution/service"
	"go.uber.org/fx"
)

var Module = fx.Module("distribution.service",
	fx.Provide(repository.NewTrafficRepository),
	fx.Provide(service.NewService),
)
