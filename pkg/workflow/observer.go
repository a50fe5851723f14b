package workflow

import (
	"context"
	"errors"

	"discovery/pkg/logx"
)

// Observer is told about every state change. Calls are serialized in mutation order
// and receive private copies.
type Observer interface {
	StateChanged(ctx context.Context, s *State)
	PhaseChanged(ctx context.Context, s *State, from Phase)
	Failed(ctx context.Context, s *State, err error)
}

// NopObserver implements Observer with no-ops; embed it to override selectively.
type NopObserver struct{}

func (NopObserver) StateChanged(context.Context, *State)        {}
func (NopObserver) PhaseChanged(context.Context, *State, Phase) {}
func (NopObserver) Failed(context.Context, *State, error)       {}

// SnapshotStore persists run state for queries and resumption.
type SnapshotStore interface {
	Save(ctx context.Context, s *State) error
	Load(ctx context.Context, id string) (*State, error)
}

// snapshotObserver writes every observed change through to a SnapshotStore.
type snapshotObserver struct {
	NopObserver
	store  SnapshotStore
	logger *logx.Logger
}

// PersistSnapshots returns an Observer saving every state change. Failures are
// logged; the run continues on in-memory state.
func PersistSnapshots(store SnapshotStore) Observer {
	return &snapshotObserver{store: store, logger: logx.NewLogger("workflow-snapshots")}
}

func (o *snapshotObserver) StateChanged(ctx context.Context, s *State) {
	if err := o.store.Save(context.WithoutCancel(ctx), s); err != nil {
		o.logger.Warn("failed to persist workflow %s at %s: %v", s.ID, s.Phase, err)
	}
}

// PhaseMetrics receives phase-level counters; metrics.Recorder satisfies it.
type PhaseMetrics interface {
	PhaseTransition(from, to string)
	WorkflowFailed(phase, reason string)
}

type metricsObserver struct {
	NopObserver
	m PhaseMetrics
}

// RecordMetrics returns an Observer counting transitions and failures.
func RecordMetrics(m PhaseMetrics) Observer {
	return &metricsObserver{m: m}
}

func (o *metricsObserver) PhaseChanged(_ context.Context, s *State, from Phase) {
	o.m.PhaseTransition(string(from), string(s.Phase))
}

func (o *metricsObserver) Failed(_ context.Context, s *State, err error) {
	o.m.WorkflowFailed(string(s.Phase), failureReason(err))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrBlankInput):
		return "blank_input"
	case errors.Is(err, ErrResponseTimeout):
		return "response_timeout"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "activity_failed"
	}
}
