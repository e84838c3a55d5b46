package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pipecache/internal/core/domain"
)

type flowFixture struct {
	reg   *domain.Registry
	stage *domain.Stage
}

func newFlowFixture() *flowFixture {
	return &flowFixture{reg: domain.NewRegistry(), stage: domain.NewStage("raw", nil)}
}

func (f *flowFixture) task(t *testing.T, name string, params ...string) *domain.Task {
	t.Helper()
	ps := make([]domain.Param, len(params))
	for i, p := range params {
		ps[i] = domain.Param{Name: p}
	}
	task, err := f.reg.Register(f.stage, double, domain.WithName(name), domain.WithParams(ps...))
	require.NoError(t, err)
	return task
}

func TestFlow_WalkOrder(t *testing.T) {
	fx := newFlowFixture()
	load := fx.task(t, "load", "x")
	scale := fx.task(t, "scale", "x")
	join := fx.task(t, "join", "a", "b")

	flow := domain.NewFlow()
	_, err := flow.Add(join, []domain.Input{domain.From(load.ID), domain.From(scale.ID)}, nil)
	require.NoError(t, err)
	_, err = flow.Add(scale, nil, map[string]domain.Input{"x": domain.From(load.ID)})
	require.NoError(t, err)
	_, err = flow.Add(load, []domain.Input{domain.Lit(domain.Int(1))}, nil)
	require.NoError(t, err)

	require.NoError(t, flow.Validate())

	var order []string
	for call := range flow.Walk() {
		order = append(order, call.Task.ID.Name.String())
	}
	assert.Equal(t, []string{"load", "scale", "join"}, order)

	assert.Equal(t, []domain.TaskID{join.ID, scale.ID}, flow.Dependents(load.ID))
	assert.Equal(t, 3, flow.Len())
}

func TestFlow_Cycle(t *testing.T) {
	fx := newFlowFixture()
	a := fx.task(t, "A", "in")
	b := fx.task(t, "B", "in")
	c := fx.task(t, "C", "in")

	tests := []struct {
		name  string
		setup func(*domain.Flow)
	}{
		{
			name: "Self Cycle",
			setup: func(f *domain.Flow) {
				_, _ = f.Add(a, []domain.Input{domain.From(a.ID)}, nil)
			},
		},
		{
			name: "Three Node Cycle",
			setup: func(f *domain.Flow) {
				_, _ = f.Add(a, []domain.Input{domain.From(b.ID)}, nil)
				_, _ = f.Add(b, []domain.Input{domain.From(c.ID)}, nil)
				_, _ = f.Add(c, []domain.Input{domain.From(a.ID)}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := domain.NewFlow()
			tt.setup(flow)
			err := flow.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, domain.ErrCycleDetected.Error())
		})
	}
}

func TestFlow_MissingDependency(t *testing.T) {
	fx := newFlowFixture()
	a := fx.task(t, "A", "in")
	b := fx.task(t, "B", "in")

	flow := domain.NewFlow()
	_, err := flow.Add(a, []domain.Input{domain.From(b.ID)}, nil)
	require.NoError(t, err)

	assert.ErrorContains(t, flow.Validate(), domain.ErrMissingDependency.Error())
}

func TestFlow_Add_Errors(t *testing.T) {
	fx := newFlowFixture()
	a := fx.task(t, "A", "in")

	flow := domain.NewFlow()
	_, err := flow.Add(a, []domain.Input{domain.Lit(domain.Int(1))}, nil)
	require.NoError(t, err)

	_, err = flow.Add(a, []domain.Input{domain.Lit(domain.Int(2))}, nil)
	assert.ErrorContains(t, err, domain.ErrTaskAlreadyExists.Error())

	other := fx.task(t, "B", "in")
	_, err = flow.Add(other, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArguments)
}

func TestFlow_Find(t *testing.T) {
	fx := newFlowFixture()
	a := fx.task(t, "A", "in")

	flow := domain.NewFlow()
	_, err := flow.Add(a, []domain.Input{domain.Lit(domain.Int(1))}, nil)
	require.NoError(t, err)

	assert.Equal(t, []domain.TaskID{a.ID}, flow.Find("A"))
	assert.Equal(t, []domain.TaskID{a.ID}, flow.Find("raw/A"))
	assert.Equal(t, []domain.TaskID{a.ID}, flow.Find(a.ID.String()))
	assert.Empty(t, flow.Find("B"))
}
