package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
)

const (
	// AttrOutcome is the span and metric attribute carrying the outcome of a call.
	AttrOutcome = "pipecache.outcome"

	callsMetric  = "pipecache.task.calls"
	reusedMetric = "pipecache.task.reused"
)

var _ ports.Metrics = (*Metrics)(nil)

// Metrics records task call counters on an OpenTelemetry meter.
type Metrics struct {
	calls  metric.Int64Counter
	reused metric.Int64Counter
}

// NewMetrics creates the call counters on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	calls, err := meter.Int64Counter(
		callsMetric,
		metric.WithDescription("Number of wrapped task calls by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	reused, err := meter.Int64Counter(
		reusedMetric,
		metric.WithDescription("Number of task calls answered without running the task body"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{calls: calls, reused: reused}, nil
}

// RecordCall counts one call of a task with its outcome.
func (m *Metrics) RecordCall(ctx context.Context, id domain.TaskID, outcome domain.CallOutcome) {
	opt := metric.WithAttributes(
		attribute.String("pipecache.stage", id.Stage.String()),
		attribute.String("pipecache.task", id.Name.String()),
		attribute.String(AttrOutcome, string(outcome)),
	)

	m.calls.Add(ctx, 1, opt)
	if outcome.Reused() {
		m.reused.Add(ctx, 1, opt)
	}
}

// Collector owns an in-process meter provider whose counters can be read back,
// which the CLI uses to print a summary after a run.
type Collector struct {
	*Metrics

	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// NewCollector creates a Collector with a manual reader.
func NewCollector() (*Collector, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(provider.Meter("go.trai.ch/pipecache"))
	if err != nil {
		return nil, err
	}
	return &Collector{Metrics: m, reader: reader, provider: provider}, nil
}

// Counts returns the number of calls per outcome recorded so far.
func (c *Collector) Counts(ctx context.Context) (map[domain.CallOutcome]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	counts := make(map[domain.CallOutcome]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != callsMetric {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				v, ok := dp.Attributes.Value(AttrOutcome)
				if !ok {
					continue
				}
				counts[domain.NormalizeCallOutcome(v.AsString())] += dp.Value
			}
		}
	}
	return counts, nil
}

// Shutdown stops the meter provider.
func (c *Collector) Shutdown(ctx context.Context) error {
	return c.provider.Shutdown(ctx)
}
