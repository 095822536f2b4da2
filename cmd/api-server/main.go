// Command api-server serves the order, inventory and return API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	kart "github.com/xenking/kart-orders/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := kart.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "config")
		}
		lg.Info("Configuration loaded",
			zap.String("addr", cfg.Addr),
			zap.Int("rate_limit", cfg.RateLimit.Max),
			zap.Duration("rate_window", cfg.RateLimit.Window),
			zap.Duration("request_timeout", cfg.RequestTimeout),
			zap.Bool("api_key_pepper_set", cfg.APIKeyPepper != ""),
		)
		return kart.Run(ctx, lg, m, cfg)
	})
}
