package auth

import (
	"go.uber.org/fx"

	"github.com/polkiloo/fooddelivery/internal/config"
)

// Module provides identity and relay token primitives via fx.
var Module = fx.Options(
	fx.Provide(newTokenStrategy),
	fx.Provide(newRoomTokens),
)

type strategyParams struct {
	fx.In

	Config *config.Config
}

func newTokenStrategy(p strategyParams) Strategy {
	return NewJWTStrategy(p.Config.JWTSecret, Options{})
}

func newRoomTokens(p strategyParams) *RoomTokens {
	return NewRoomTokens(p.Config.RelayTokenSecret, Options{TTL: p.Config.RelayTokenTTL})
}
