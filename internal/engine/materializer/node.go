package materializer

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pipecache/internal/adapters/cas"       //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pipecache/internal/adapters/hasher"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pipecache/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pipecache/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/pipecache/internal/core/ports"
)

// NodeID is the unique identifier for the materializer Graft node.
const NodeID graft.ID = "engine.materializer"

func init() {
	graft.Register(graft.Node[*Materializer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			cas.NodeID,
			hasher.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			telemetry.MetricsNodeID,
		},
		Run: func(ctx context.Context) (*Materializer, error) {
			store, err := graft.Dep[ports.Store](ctx)
			if err != nil {
				return nil, err
			}

			h, err := graft.Dep[ports.Hasher](ctx)
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

			return New(store, h, log, tracer, metrics), nil
		},
	})
}
