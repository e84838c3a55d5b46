package telemetry

import (
	"context"

	"github.com/grindlemire/graft"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/pipecache/internal/adapters/logger"
	"go.trai.ch/pipecache/internal/core/ports"
)

const (
	// TracerNodeID is the unique identifier for the tracer Graft node.
	TracerNodeID graft.ID = "adapter.telemetry"
	// CollectorNodeID is the unique identifier for the metrics collector Graft node.
	CollectorNodeID graft.ID = "adapter.telemetry.collector"
	// MetricsNodeID is the unique identifier for the metrics Graft node.
	MetricsNodeID graft.ID = "adapter.telemetry.metrics"
)

const instrumentationName = "go.trai.ch/pipecache"

func init() {
	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.Tracer, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(NewLogBridge(log)))
			return NewOTelTracer(tp, instrumentationName), nil
		},
	})

	graft.Register(graft.Node[*Collector]{
		ID:        CollectorNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Collector, error) {
			return NewCollector()
		},
	})

	graft.Register(graft.Node[ports.Metrics]{
		ID:        MetricsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{CollectorNodeID},
		Run: func(ctx context.Context) (ports.Metrics, error) {
			c, err := graft.Dep[*Collector](ctx)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	})
}
