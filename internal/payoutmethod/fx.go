package payoutmethod

import (
	"github.com/craftforge/payouts/internal/payoutmethod/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payoutmethod.service",
	fx.Provide(service.NewService),
)
