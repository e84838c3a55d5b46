package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/pipecache/internal/core/domain"
	"go.trai.ch/zerr"
)

// PipelineFunc builds the flow that a run executes.
type PipelineFunc func() (*domain.Flow, error)

// ExamplePipeline returns the built-in pipeline:
//
//	raw/load -> raw/features/double -> raw/features/summarize
//	                               \-> raw/features/stats
//
// The cache token of stats changes once per day according to now.
func ExamplePipeline(now func() time.Time) PipelineFunc {
	return func() (*domain.Flow, error) {
		raw := domain.NewStage("raw", nil)
		features := domain.NewStage("features", raw)
		reg := domain.NewRegistry()
		flow := domain.NewFlow()

		loadTask, err := reg.Register(raw, load,
			domain.WithVersion("1"),
			domain.WithParams(domain.Param{Name: "rows", Default: domain.Int(4)}),
		)
		if err != nil {
			return nil, err
		}
		doubleTask, err := reg.Register(features, double,
			domain.WithVersion("1"),
			domain.WithParams(domain.Param{Name: "numbers"}),
		)
		if err != nil {
			return nil, err
		}
		summarizeTask, err := reg.Register(features, summarize,
			domain.WithLazy(true),
			domain.WithInputType(domain.InputReference),
			domain.WithParams(domain.Param{Name: "doubled"}),
		)
		if err != nil {
			return nil, err
		}
		statsTask, err := reg.Register(features, stats,
			domain.WithVersion("1"),
			domain.WithNOut(2),
			domain.WithCache(dailyToken(now)),
			domain.WithParams(
				domain.Param{Name: "doubled"},
				domain.Param{Name: "threshold", Default: domain.Int(4)},
			),
		)
		if err != nil {
			return nil, err
		}

		loadID, err := flow.Add(loadTask, nil, nil)
		if err != nil {
			return nil, err
		}
		doubleID, err := flow.Add(doubleTask, []domain.Input{domain.From(loadID)}, nil)
		if err != nil {
			return nil, err
		}
		if _, err := flow.Add(summarizeTask, []domain.Input{domain.From(doubleID)}, nil); err != nil {
			return nil, err
		}
		if _, err := flow.Add(statsTask, nil, map[string]domain.Input{"doubled": domain.From(doubleID)}); err != nil {
			return nil, err
		}
		return flow, nil
	}
}

func load(_ context.Context, args domain.Args) (domain.Value, error) {
	rows, _ := args.Get("rows").(domain.Int)
	var b strings.Builder
	for i := int64(1); i <= int64(rows); i++ {
		b.WriteString(strconv.FormatInt(i, 10))
		b.WriteByte('\n')
	}
	return domain.NewTable("numbers", []byte(b.String())), nil
}

func double(_ context.Context, args domain.Args) (domain.Value, error) {
	numbers, err := parseTable(args.Get("numbers"))
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, n := range numbers {
		b.WriteString(strconv.FormatInt(n*2, 10))
		b.WriteByte('\n')
	}
	return domain.NewTable("doubled", []byte(b.String())), nil
}

func summarize(_ context.Context, args domain.Args) (domain.Value, error) {
	t, ok := args.Get("doubled").(*domain.Table)
	if !ok {
		return nil, zerr.With(domain.ErrInvalidArguments, "param", "doubled")
	}
	return domain.NewLazyTable("summary", fmt.Sprintf("SELECT sum(value) FROM %q", t.ObjectID)), nil
}

func stats(_ context.Context, args domain.Args) (domain.Value, error) {
	numbers, err := parseTable(args.Get("doubled"))
	if err != nil {
		return nil, err
	}
	threshold, _ := args.Get("threshold").(domain.Int)
	var above int64
	for _, n := range numbers {
		if n > int64(threshold) {
			above++
		}
	}
	return domain.Seq(domain.Int(len(numbers)), domain.Int(above)), nil
}

func dailyToken(now func() time.Time) domain.CacheFunc {
	return func(context.Context, domain.Args) (domain.Value, error) {
		return domain.String(now().UTC().Format(time.DateOnly)), nil
	}
}

func parseTable(v domain.Value) ([]int64, error) {
	t, ok := v.(*domain.Table)
	if !ok {
		return nil, zerr.With(domain.ErrInvalidArguments, "kind", kindOf(v))
	}
	fields := strings.Fields(string(t.Data))
	out := make([]int64, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "malformed row"), "table", t.Name)
		}
		out = append(out, n)
	}
	return out, nil
}

func kindOf(v domain.Value) string {
	if v == nil {
		return "missing"
	}
	return v.Kind().String()
}
