package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	consumptions      metric.Int64Counter
	driftDetected     metric.Int64Counter
	alertsTriggered   metric.Int64Counter
	backfillCustomers metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "creditcore"
	}
	meter := provider.Meter(name)

	consumptions, err := meter.Int64Counter("creditcore_consumptions_total")
	if err != nil {
		return nil, err
	}
	driftDetected, err := meter.Int64Counter("creditcore_wallet_drift_total")
	if err != nil {
		return nil, err
	}
	alertsTriggered, err := meter.Int64Counter("creditcore_alerts_triggered_total")
	if err != nil {
		return nil, err
	}
	backfillCustomers, err := meter.Int64Counter("creditcore_backfill_customers_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		consumptions:      consumptions,
		driftDetected:     driftDetected,
		alertsTriggered:   alertsTriggered,
		backfillCustomers: backfillCustomers,
	}, nil
}

// RecordConsumption increments allocation counts per funding kind.
func (m *Metrics) RecordConsumption(ctx context.Context, fundingKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("funding_kind", strings.TrimSpace(fundingKind)))
	m.consumptions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDrift increments drifting-wallet counts.
func (m *Metrics) RecordDrift(ctx context.Context, orgID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))
	m.driftDetected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAlertTriggered increments triggered-alert counts per alert type.
func (m *Metrics) RecordAlertTriggered(ctx context.Context, alertType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("alert_type", strings.TrimSpace(alertType)))
	m.alertsTriggered.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBackfillCustomer increments backfill unit-of-work counts per outcome.
func (m *Metrics) RecordBackfillCustomer(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.backfillCustomers.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":       {},
	"funding_kind": {},
	"alert_type":   {},
	"outcome":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
