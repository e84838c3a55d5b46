package materializer

import (
	"context"

	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
	"go.trai.ch/zerr"
)

// KeyDeriver computes the cache keys of a task invocation.
type KeyDeriver struct {
	store  ports.Store
	hasher ports.Hasher
}

// NewKeyDeriver creates a KeyDeriver encoding values with store and digesting them with hasher.
func NewKeyDeriver(store ports.Store, hasher ports.Hasher) *KeyDeriver {
	return &KeyDeriver{store: store, hasher: hasher}
}

// DeriveKeys hashes the canonical arguments, the cache function token if the task has one,
// and combines both with the task identity.
// Missing arguments contribute the identity of the output they reference, and handles
// carrying an in-process payload contribute the digest of that payload.
func (d *KeyDeriver) DeriveKeys(ctx context.Context, task *domain.Task, args domain.Args) (domain.CacheKeys, error) {
	encoded, err := d.encode(args.Canonical())
	if err != nil {
		return domain.CacheKeys{}, zerr.With(err, "task", task.ID.String())
	}
	keys := domain.CacheKeys{InputHash: d.hasher.Hash(encoded)}

	if task.Cache != nil {
		token, err := task.Cache(ctx, args)
		if err != nil {
			return domain.CacheKeys{}, zerr.With(zerr.Wrap(err, "cache function failed"), "task", task.ID.String())
		}
		encoded, err := d.encode(token)
		if err != nil {
			return domain.CacheKeys{}, zerr.With(zerr.With(err, "task", task.ID.String()), "source", "cache function")
		}
		keys.CacheFnHash = d.hasher.Hash(encoded)
	}

	keys.Combined = d.hasher.Combine(
		task.ID.Stage.String(),
		task.ID.Name.String(),
		task.ID.Position,
		keys.InputHash,
		keys.CacheFnHash,
	)
	return keys, nil
}

// encode returns the canonical encoding of v with every payload replaced by its
// content address, the same address the store gives the payload once persisted.
func (d *KeyDeriver) encode(v domain.Value) ([]byte, error) {
	addressed, err := domain.MapLeaves(v, domain.LeafFuncs{
		Table: func(t *domain.Table) (domain.Value, error) {
			if t.Data == nil {
				return t, nil
			}
			out := *t
			out.ObjectID, out.Data = d.hasher.Hash(t.Data), nil
			return &out, nil
		},
		Blob: func(b *domain.Blob) (domain.Value, error) {
			if b.Data == nil {
				return b, nil
			}
			out := *b
			out.ObjectID, out.Data = d.hasher.Hash(b.Data), nil
			return &out, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return d.store.Encode(addressed)
}
