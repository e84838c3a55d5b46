package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pipecache/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pipecache/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pipecache/internal/core/ports"
	"go.trai.ch/pipecache/internal/engine/materializer"
)

// NodeID is the unique identifier for the scheduler Graft node.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			materializer.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			telemetry.MetricsNodeID,
		},
		Run: func(ctx context.Context) (*Scheduler, error) {
			m, err := graft.Dep[*materializer.Materializer](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			metrics, err := graft.Dep[ports.Metrics](ctx)
			if err != nil {
				return nil, err
			}

			return NewScheduler(m, log, tracer, metrics), nil
		},
	})
}
