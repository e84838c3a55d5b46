package materializer

import (
	"context"

	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/pipecache/internal/core/ports"
	"go.trai.ch/zerr"
)

// Rehydrator reloads outputs of upstream tasks that did not run in the current run.
type Rehydrator struct {
	store ports.Store
}

// NewRehydrator creates a Rehydrator reading records from store.
func NewRehydrator(store ports.Store) *Rehydrator {
	return &Rehydrator{store: store}
}

// Resolve returns the stored output referenced by ref.
// All records of the exact task identity are considered; they must agree on a single
// output, otherwise a *domain.CacheError is returned.
func (r *Rehydrator) Resolve(ctx context.Context, ref domain.Ref) (domain.Value, error) {
	records, err := r.store.FindMetadata(ctx, ref.Task)
	if err != nil {
		return nil, zerr.With(err, "task", ref.Task.String())
	}

	var (
		candidates []string
		values     = make(map[string]domain.Value)
	)
	for i := range records {
		rec := &records[i]
		if rec.Task != ref.Task {
			continue
		}
		v, err := r.store.Decode(rec.Output)
		if err != nil {
			return nil, zerr.With(zerr.With(err, "task", ref.Task.String()), "run_id", rec.RunID)
		}
		canonical, err := r.store.Encode(v)
		if err != nil {
			return nil, zerr.With(err, "task", ref.Task.String())
		}
		key := string(canonical)
		if _, seen := values[key]; !seen {
			candidates = append(candidates, key)
			values[key] = v
		}
	}

	switch len(candidates) {
	case 0:
		return nil, &domain.CacheError{Kind: domain.CacheMissing, Task: ref.Task}
	case 1:
	default:
		return nil, &domain.CacheError{Kind: domain.CacheAmbiguous, Task: ref.Task, Candidates: len(candidates)}
	}

	out := values[candidates[0]]
	return domain.Select(out, ref.Index)
}

// Fill returns args with every missing argument resolved. args itself is not modified.
func (r *Rehydrator) Fill(ctx context.Context, args domain.Args) (domain.Args, error) {
	missing := args.Missing()
	if len(missing) == 0 {
		return args, nil
	}
	out := make(domain.Args, len(args))
	copy(out, args)
	for _, i := range missing {
		v, err := r.Resolve(ctx, *out[i].Ref)
		if err != nil {
			return nil, zerr.With(err, "argument", out[i].Name)
		}
		out[i].Value = v
	}
	return out, nil
}
