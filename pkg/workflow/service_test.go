package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, acts Activities, store SnapshotStore, cacheSize int) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{
		Activities: acts,
		NewHost:    func() Host { return NewLocalHost(fastHostConfig()) },
		Store:      store,
		CacheSize:  cacheSize,
	})
	require.NoError(t, err)
	return svc
}

func queryAwaiting(svc *Service, id string, phase Phase) func() bool {
	return func() bool {
		st, err := svc.Query(context.Background(), id)
		if err != nil {
			return false
		}
		return st.Phase == phase && st.AwaitingResponse
	}
}

func TestNewService_RequiresActivities(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	assert.Error(t, err)
}

func TestService_StartRespondWait(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeActivities{completeAfter: 1}, nil, 0)

	id, err := svc.Start(ctx, testInput(FourPhase))
	require.NoError(t, err)
	assert.Equal(t, "wf-test", id)
	assert.Contains(t, svc.Running(), id)

	require.Eventually(t, queryAwaiting(svc, id, PhaseInterview), time.Second, 5*time.Millisecond)
	accepted, err := svc.Respond(ctx, id, "we have high turnover")
	require.NoError(t, err)
	assert.True(t, accepted)

	require.Eventually(t, queryAwaiting(svc, id, PhaseSynthesize), time.Second, 5*time.Millisecond)
	released, err := svc.EditContext(ctx, id, &ContextDocument{Summary: "reviewed"})
	require.NoError(t, err)
	assert.True(t, released)

	st, err := svc.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, st.Phase)
	assert.Equal(t, "reviewed", st.ContextDocument.Summary)
	assert.Empty(t, svc.Running())

	// Finished runs stay queryable from the cache.
	cached, err := svc.Query(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, cached.Phase)

	again, err := svc.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, again.Phase)
}

func TestService_DuplicateStart(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeActivities{}, nil, 0)

	_, err := svc.Start(ctx, testInput(FourPhase))
	require.NoError(t, err)
	_, err = svc.Start(ctx, testInput(FourPhase))
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, svc.Cancel("wf-test"))
	_, _ = svc.Wait(ctx, "wf-test")
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeActivities{}, nil, 0)

	id, err := svc.Start(ctx, testInput(FivePhase))
	require.NoError(t, err)
	require.Eventually(t, queryAwaiting(svc, id, PhaseIntroduce), time.Second, 5*time.Millisecond)

	require.NoError(t, svc.Cancel(id))
	st, err := svc.Wait(ctx, id)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, PhaseIntroduce, st.Phase)
	assert.NotEmpty(t, st.Error)

	// The cached failure reports its error on later waits.
	_, err = svc.Wait(ctx, id)
	assert.ErrorIs(t, err, ErrFatal)
}

func TestService_UnknownID(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeActivities{}, nil, 0)

	_, err := svc.Respond(ctx, "missing", "x")
	assert.True(t, IsNotFound(err))
	_, err = svc.EditContext(ctx, "missing", &ContextDocument{})
	assert.True(t, IsNotFound(err))
	_, err = svc.Query(ctx, "missing")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(svc.Cancel("missing")))
	_, err = svc.Wait(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestService_QueryFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.Save(ctx, &State{ID: "old", Variant: FourPhase, Phase: PhaseComplete}))
	svc := newTestService(t, &fakeActivities{}, store, 1)

	st, err := svc.Query(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, st.Phase)
}

func TestService_PersistsAndResumes(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	acts := &fakeActivities{completeAfter: 1}

	first := newTestService(t, acts, store, 0)
	id, err := first.Start(ctx, testInput(FourPhase))
	require.NoError(t, err)
	require.Eventually(t, queryAwaiting(first, id, PhaseInterview), time.Second, 5*time.Millisecond)
	_, err = first.Respond(ctx, id, "answer")
	require.NoError(t, err)
	require.Eventually(t, queryAwaiting(first, id, PhaseSynthesize), time.Second, 5*time.Millisecond)

	// Simulate a restart: abandon the first service and resume from the store.
	require.NoError(t, first.Cancel(id))
	_, _ = first.Wait(ctx, id)
	saved, err := store.Load(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, PhaseSynthesize, saved.Phase)

	second := newTestService(t, acts, store, 0)
	require.NoError(t, second.Resume(ctx, id))
	require.Eventually(t, queryAwaiting(second, id, PhaseSynthesize), time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, acts.synthCalls, "a resumed review does not synthesize again")

	_, err = second.Respond(ctx, id, "looks right")
	require.NoError(t, err)
	st, err := second.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, st.Phase)
	require.NotNil(t, st.CompletedAt)

	persisted, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, persisted.Phase)
	assert.Empty(t, persisted.Error)
}

func TestService_ResumeRequiresStore(t *testing.T) {
	svc := newTestService(t, &fakeActivities{}, nil, 0)
	assert.Error(t, svc.Resume(context.Background(), "x"))

	withStore := newTestService(t, &fakeActivities{}, newMemStore(), 0)
	assert.True(t, IsNotFound(withStore.Resume(context.Background(), "x")))
}
