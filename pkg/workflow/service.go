package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"discovery/pkg/logx"
)

// DefaultCacheSize bounds how many finished runs stay queryable in memory.
const DefaultCacheSize = 128

// run is one live machine.
type run struct {
	machine *Machine
	cancel  context.CancelFunc
	done    chan struct{}
	result  *State
	err     error
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Activities Activities
	// NewHost creates the host for each run; defaults to a LocalHost per run.
	NewHost func() Host
	// Store, when set, receives every state change and backs Query and Resume.
	Store     SnapshotStore
	Observers []Observer
	Options   []Option
	CacheSize int
}

// Service is a registry of running machines keyed by id. Runs execute on their own
// goroutines, detached from the caller's context; Cancel stops them cooperatively.
type Service struct {
	cfg      ServiceConfig
	logger   *logx.Logger
	finished *lru.Cache[string, *State]

	mu      sync.Mutex
	running map[string]*run
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Activities == nil {
		return nil, fmt.Errorf("workflow service requires activities")
	}
	if cfg.NewHost == nil {
		cfg.NewHost = func() Host { return NewLocalHost(DefaultHostConfig()) }
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	finished, err := lru.New[string, *State](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create finished-run cache: %w", err)
	}
	return &Service{
		cfg:      cfg,
		logger:   logx.NewLogger("workflow-service"),
		finished: finished,
		running:  make(map[string]*run),
	}, nil
}

func (svc *Service) options() []Option {
	observers := append([]Observer(nil), svc.cfg.Observers...)
	if svc.cfg.Store != nil {
		observers = append(observers, PersistSnapshots(svc.cfg.Store))
	}
	opts := append([]Option(nil), svc.cfg.Options...)
	return append(opts, WithObservers(observers...))
}

// Start launches a new run and returns its id.
func (svc *Service) Start(ctx context.Context, in Input) (string, error) {
	m := New(in, svc.cfg.Activities, svc.cfg.NewHost(), svc.options()...)
	if err := svc.launch(ctx, m); err != nil {
		return "", err
	}
	return m.ID(), nil
}

// Resume restarts a persisted run at its saved phase. Completed runs are only cached.
func (svc *Service) Resume(ctx context.Context, id string) error {
	if svc.cfg.Store == nil {
		return fmt.Errorf("resume %s: no snapshot store configured", id)
	}
	st, err := svc.cfg.Store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("resume %s: %w", id, err)
	}
	if st == nil {
		return fmt.Errorf("resume %s: %w", id, ErrNotFound)
	}
	if IsTerminal(st.Phase) {
		svc.finished.Add(id, st)
		return nil
	}
	m, err := Restore(st, svc.cfg.Activities, svc.cfg.NewHost(), svc.options()...)
	if err != nil {
		return err
	}
	return svc.launch(ctx, m)
}

func (svc *Service) launch(ctx context.Context, m *Machine) error {
	id := m.ID()
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if _, exists := svc.running[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, id)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{machine: m, cancel: cancel, done: make(chan struct{})}
	svc.running[id] = r

	go func() {
		defer close(r.done)
		defer cancel()
		r.result, r.err = m.Run(runCtx)

		svc.mu.Lock()
		delete(svc.running, id)
		svc.finished.Add(id, r.result)
		svc.mu.Unlock()

		if r.err != nil {
			svc.logger.Warn("workflow %s ended with error: %v", id, r.err)
		} else {
			svc.logger.Info("workflow %s completed", id)
		}
	}()
	return nil
}

func (svc *Service) lookup(id string) (*run, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	r, ok := svc.running[id]
	return r, ok
}

// Respond delivers an answer to a running workflow. It reports whether the answer
// was consumed by a wait.
func (svc *Service) Respond(ctx context.Context, id, answer string) (bool, error) {
	r, ok := svc.lookup(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.machine.Respond(ctx, answer), nil
}

// EditContext replaces the context document of a running workflow.
func (svc *Service) EditContext(ctx context.Context, id string, doc *ContextDocument) (bool, error) {
	r, ok := svc.lookup(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.machine.EditContext(ctx, doc), nil
}

// Query returns the live state of a running workflow, or the final state of a
// finished one.
func (svc *Service) Query(ctx context.Context, id string) (*State, error) {
	if r, ok := svc.lookup(id); ok {
		return r.machine.State(), nil
	}
	if st, ok := svc.finished.Get(id); ok {
		return st.Clone(), nil
	}
	if svc.cfg.Store != nil {
		st, err := svc.cfg.Store.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", id, err)
		}
		if st != nil {
			return st, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Cancel stops a running workflow at its next suspension point.
func (svc *Service) Cancel(id string) error {
	r, ok := svc.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	svc.logger.Info("cancelling workflow %s", id)
	r.cancel()
	return nil
}

// Wait blocks until the run finishes or ctx ends.
func (svc *Service) Wait(ctx context.Context, id string) (*State, error) {
	r, ok := svc.lookup(id)
	if !ok {
		if st, cached := svc.finished.Get(id); cached {
			return st.Clone(), errorFromState(st)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	select {
	case <-r.done:
		return r.result.Clone(), r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for %s: %w", id, ctx.Err())
	}
}

// Running returns the ids of live runs.
func (svc *Service) Running() []string {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	ids := make([]string, 0, len(svc.running))
	for id := range svc.running {
		ids = append(ids, id)
	}
	return ids
}

func errorFromState(st *State) error {
	if st.Error == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrFatal, st.Error)
}

// IsNotFound reports whether err means the workflow id is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
