package usercache

import "go.uber.org/fx"

var Module = fx.Module("usercache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewCache),
)
