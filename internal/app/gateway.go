package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/five82/galley/internal/config"
	"github.com/five82/galley/internal/gateway"
	"github.com/five82/galley/internal/gateway/postgres"
)

// newGateway builds the gateway for cfg.Driver. The returned func releases
// any connections and is safe to call when err is nil.
func newGateway(ctx context.Context, cfg config.GatewayConfig, logger *slog.Logger) (gateway.Gateway, func(), error) {
	switch cfg.Driver {
	case config.DriverREST, "":
		client, err := gateway.NewClient(gateway.ClientOptions{
			URL:     cfg.URL,
			APIKey:  cfg.APIKey,
			Table:   cfg.Table,
			Timeout: cfg.RequestTimeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(pool, cfg.Table, logger), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown gateway driver %q", cfg.Driver)
	}
}
