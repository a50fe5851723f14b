package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"discovery/pkg/interview"
	"discovery/pkg/resilience/retry"
)

// fakeActivities scripts the collaborators. completeAfter == 0 never completes.
type fakeActivities struct {
	mu            sync.Mutex
	completeAfter int
	failGenerate  int

	primeCalls    int
	generateCalls int
	processInputs []ResponseInput
	synthCalls    int
	recInput      *RecommendInput
}

func (f *fakeActivities) Prime(_ context.Context, _ Brief) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.primeCalls++
	return nil
}

func (f *fakeActivities) Introduce(_ context.Context, b Brief) (string, error) {
	return fmt.Sprintf("Welcome. Tell me about your role in %s.", b.Domain), nil
}

func (f *fakeActivities) GenerateQuestion(_ context.Context, in QuestionInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	if f.failGenerate > 0 {
		f.failGenerate--
		return "", errors.New("temporary glitch")
	}
	return fmt.Sprintf("Question %d?", len(in.Exchanges)+1), nil
}

func (f *fakeActivities) ProcessResponse(_ context.Context, in ResponseInput) (Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processInputs = append(f.processInputs, in)
	return Verdict{Complete: f.completeAfter > 0 && len(f.processInputs) >= f.completeAfter}, nil
}

func (f *fakeActivities) Synthesize(_ context.Context, in SynthesisInput) (*ContextDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synthCalls++
	return &ContextDocument{
		Summary:       fmt.Sprintf("%d exchanges about %s", len(in.Exchanges), in.Brief.Domain),
		Facts:         []string{"fact"},
		Constraints:   []string{"constraint"},
		Priorities:    []string{"priority"},
		Assumptions:   []string{"assumption"},
		Uncertainties: []string{"uncertainty"},
	}, nil
}

func (f *fakeActivities) Recommend(_ context.Context, in RecommendInput) (*RecommendationSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recInput = &in
	return &RecommendationSet{
		Items: []interview.Recommendation{
			{Title: "Option A", Rationale: "because", NextSteps: []string{"start"}},
			{Title: "Option B", Rationale: "also", NextSteps: []string{"plan"}},
		},
		ComparisonMarkdown: "| Facet | Option A | Option B |",
	}, nil
}

func (f *fakeActivities) processCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processInputs)
}

// autoHost answers every wait synchronously from the machine's own goroutine.
type autoHost struct {
	m      *Machine
	answer func(st *State) string
	exec   *LocalHost
	awaits int
}

func (h *autoHost) Await(ctx context.Context, _ time.Duration, cond func() bool) (bool, error) {
	h.awaits++
	if cond() {
		return false, nil
	}
	h.m.Respond(ctx, h.answer(h.m.State()))
	return !cond(), nil
}

func (h *autoHost) Execute(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if h.exec != nil {
		return h.exec.Execute(ctx, name, fn)
	}
	return fn(ctx)
}

func (h *autoHost) Notify() {}

func answerWith(s string) func(*State) string {
	return func(*State) string { return s }
}

func newAutoMachine(in Input, acts Activities, answer func(*State) string, opts ...Option) (*Machine, *autoHost) {
	host := &autoHost{answer: answer}
	m := New(in, acts, host, opts...)
	host.m = m
	return m, host
}

func fastHostConfig() HostConfig {
	return HostConfig{
		Retry: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  time.Millisecond,
			MaxDelay:      2 * time.Millisecond,
			BackoffFactor: 2,
		},
		AttemptTimeout: time.Second,
	}
}

func testInput(v Variant) Input {
	return Input{
		ID:        "wf-test",
		Domain:    "property management",
		Objective: "reduce tenant churn",
		Variant:   v,
	}
}

// recordingObserver captures phase changes and failures.
type recordingObserver struct {
	NopObserver
	mu          sync.Mutex
	transitions []string
	states      int
	failures    []error
}

func (o *recordingObserver) StateChanged(context.Context, *State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states++
}

func (o *recordingObserver) PhaseChanged(_ context.Context, s *State, from Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, string(from)+"->"+string(s.Phase))
}

func (o *recordingObserver) Failed(_ context.Context, _ *State, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, err)
}

// memStore is an in-memory SnapshotStore.
type memStore struct {
	mu     sync.Mutex
	states map[string]*State
	saves  int
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]*State)}
}

func (s *memStore) Save(_ context.Context, st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.ID] = st.Clone()
	s.saves++
	return nil
}

func (s *memStore) Load(_ context.Context, id string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return nil, nil
	}
	return st.Clone(), nil
}
