package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/craftforge/payouts/internal/clock"
	"github.com/craftforge/payouts/internal/config"
	"github.com/craftforge/payouts/internal/distribution"
	"github.com/craftforge/payouts/internal/gateway"
	"github.com/craftforge/payouts/internal/logger"
	"github.com/craftforge/payouts/internal/payoutmethod"
	"github.com/craftforge/payouts/internal/scheduler"
	"github.com/craftforge/payouts/internal/server"
	"github.com/craftforge/payouts/internal/usercache"
	"github.com/craftforge/payouts/internal/userlock"
	"github.com/craftforge/payouts/pkg/db"
	"go.uber.org/fx"
)

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func main() {
	fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		db.Module,
		fx.Provide(newSnowflakeNode),
		gateway.Module,
		payoutmethod.Module,
		userlock.Module,
		usercache.Module,
		distribution.Module,
		scheduler.Module,
		server.Module,
	).Run()
}
