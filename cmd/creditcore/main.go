package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditcore/internal/alert"
	"github.com/smallbiznis/creditcore/internal/backfill"
	"github.com/smallbiznis/creditcore/internal/clock"
	"github.com/smallbiznis/creditcore/internal/config"
	"github.com/smallbiznis/creditcore/internal/customer"
	"github.com/smallbiznis/creditcore/internal/events"
	"github.com/smallbiznis/creditcore/internal/logger"
	"github.com/smallbiznis/creditcore/internal/migration"
	obsmetrics "github.com/smallbiznis/creditcore/internal/observability/metrics"
	"github.com/smallbiznis/creditcore/internal/organization"
	"github.com/smallbiznis/creditcore/internal/wallet"
	"github.com/smallbiznis/creditcore/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		obsmetrics.Module,
		events.Module,
		migration.Module,

		// Functional domains
		organization.Module,
		customer.Module,
		wallet.Module,
		alert.Module,
		backfill.Module,

		fx.Invoke(runBackfill),
	)
	app.Run()
}

// runBackfill executes one reconciliation pass and shuts the app down.
func runBackfill(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *backfill.Runner, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if _, err := runner.Run(context.Background()); err != nil {
					log.Error("backfill run failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
	})
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
