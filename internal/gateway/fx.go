package gateway

import (
	"github.com/craftforge/payouts/internal/gateway/paypal"
	"github.com/craftforge/payouts/internal/gateway/tremendous"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway",
	fx.Provide(paypal.NewClient),
	fx.Provide(tremendous.NewClient),
)
