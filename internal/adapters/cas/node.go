package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/pipecache/internal/adapters/config"
	"go.trai.ch/pipecache/internal/adapters/hasher"
	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
)

const (
	// NodeID is the unique identifier for the store Graft node.
	NodeID graft.ID = "adapter.store"
	// AdminNodeID is the unique identifier for the store maintenance Graft node.
	AdminNodeID graft.ID = "adapter.store_admin"
	// storeNodeID provides the concrete store shared by both ports.
	storeNodeID graft.ID = "adapter.store.fs"
)

func init() {
	graft.Register(graft.Node[*Store]{
		ID:        storeNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, hasher.NodeID},
		Run: func(ctx context.Context) (*Store, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}
			h, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(cfg.StorePath, h), nil
		},
	})

	graft.Register(graft.Node[ports.Store]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{storeNodeID},
		Run: func(ctx context.Context) (ports.Store, error) {
			s, err := graft.Dep[*Store](ctx)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	})

	graft.Register(graft.Node[ports.StoreAdmin]{
		ID:        AdminNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{storeNodeID},
		Run: func(ctx context.Context) (ports.StoreAdmin, error) {
			s, err := graft.Dep[*Store](ctx)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	})
}
