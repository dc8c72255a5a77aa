package discord

import (
	"go.uber.org/fx"

	"github.com/scrimmage/discord-tracker-service/config"
)

var Module = fx.Module("discord-adapter",
	fx.Provide(
		func(cfg *config.Config) (*State, error) {
			return NewState(cfg.Discord.StateCacheSize)
		},
		NewDecoder,
	),
)
