package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pipecache/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/pipecache/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/pipecache/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/pipecache/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
	"go.trai.ch/pipecache/internal/engine/scheduler"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			scheduler.NodeID,
			cas.AdminNodeID,
			logger.NodeID,
			config.NodeID,
			telemetry.CollectorNodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			config.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	sched, err := graft.Dep[*scheduler.Scheduler](ctx)
	if err != nil {
		return nil, err
	}

	admin, err := graft.Dep[ports.StoreAdmin](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := graft.Dep[*domain.Config](ctx)
	if err != nil {
		return nil, err
	}

	collector, err := graft.Dep[*telemetry.Collector](ctx)
	if err != nil {
		return nil, err
	}

	return New(sched, admin, log, cfg, collector), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := graft.Dep[*domain.Config](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:    app,
		Logger: log,
		Config: cfg,
	}, nil
}
