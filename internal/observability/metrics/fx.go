package metrics

import (
	"github.com/smallbiznis/creditcore/internal/config"
	"go.uber.org/fx"
)

func newConfig(appCfg config.Config) Config {
	return Config{
		Enabled:          appCfg.Metrics.Enabled,
		ExporterEndpoint: appCfg.Metrics.Endpoint,
		ExporterProtocol: appCfg.Metrics.Exporter,
		ServiceName:      appCfg.AppName,
		Environment:      appCfg.Environment,
	}
}

// Module wires the meter provider and domain instruments.
var Module = fx.Module("observability.metrics",
	fx.Provide(newConfig),
	fx.Provide(NewProvider),
	fx.Provide(New),
)
