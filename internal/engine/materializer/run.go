package materializer

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Run is the state shared by all task calls of one pipeline run.
type Run struct {
	ID      string
	Started time.Time

	memo   *Memo
	stages *StageTracker
}

// NewRun starts a run with an empty memo and no opened stages.
func (m *Materializer) NewRun() *Run {
	now := m.now()
	return &Run{
		ID:      ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Started: now,
		memo:    NewMemo(),
		stages:  NewStageTracker(m.store),
	}
}

// Memo returns the run memo.
func (r *Run) Memo() *Memo {
	return r.memo
}

// OpenedStages returns the paths of the stages made ready during the run.
func (r *Run) OpenedStages() []string {
	return r.stages.Opened()
}
