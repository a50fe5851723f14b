package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"discovery/pkg/logx"
)

// Option configures a Machine.
type Option func(*Machine)

// WithResponseTimeout bounds every wait for the user.
func WithResponseTimeout(d time.Duration) Option {
	return func(m *Machine) { m.responseTimeout = d }
}

// WithMaxExchanges caps the interview loop. The cap counts interview turns only: the
// five-phase introduction exchange is recorded in the transcript but does not use up a
// turn, so a capped five-phase run ends with n+1 exchanges.
func WithMaxExchanges(n int) Option {
	return func(m *Machine) { m.maxExchanges = n }
}

// WithObservers registers observers for state changes.
func WithObservers(obs ...Observer) Option {
	return func(m *Machine) { m.observers = append(m.observers, obs...) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine drives one adaptive interview. Signal handlers are usable as soon as the
// Machine exists, so a signal arriving before the first wait is not lost.
//
//nolint:govet // Logical field grouping preferred over memory alignment
type Machine struct {
	activities      Activities
	host            Host
	observers       []Observer
	responseTimeout time.Duration
	maxExchanges    int
	now             func() time.Time
	logger          *logx.Logger

	mu    sync.Mutex
	state State

	// notifyMu keeps observer calls in mutation order.
	notifyMu sync.Mutex
}

// New creates a machine for a fresh run. A blank ID gets a generated one and an
// unknown variant defaults to FivePhase.
func New(in Input, activities Activities, host Host, opts ...Option) *Machine {
	m := newMachine(activities, host, opts)
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if !IsValidVariant(in.Variant) {
		in.Variant = FivePhase
	}
	now := m.now()
	m.state = State{
		ID:               in.ID,
		Variant:          in.Variant,
		Phase:            PhasePrime,
		Domain:           in.Domain,
		Objective:        in.Objective,
		Constraints:      in.Constraints,
		GuidingQuestions: cloneStrings(in.GuidingQuestions),
		Exchanges:        []Exchange{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	m.logger = logx.NewLogger("workflow").With(shortID(in.ID))
	return m
}

// Restore rebuilds a machine from a persisted state; Run continues at its phase.
func Restore(s *State, activities Activities, host Host, opts ...Option) (*Machine, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot restore a nil state")
	}
	if !IsValidPhase(s.Variant, s.Phase) {
		return nil, fmt.Errorf("cannot restore workflow %s: phase %q is not part of variant %q", s.ID, s.Phase, s.Variant)
	}
	m := newMachine(activities, host, opts)
	m.state = *s.Clone()
	m.state.Error = ""
	if m.state.Exchanges == nil {
		m.state.Exchanges = []Exchange{}
	}
	// An outstanding question without an answer is asked again.
	if m.state.CurrentQuestion != "" && !m.state.AwaitingResponse && m.state.UserResponse == nil {
		m.state.AwaitingResponse = true
	}
	m.logger = logx.NewLogger("workflow").With(shortID(s.ID))
	return m, nil
}

func newMachine(activities Activities, host Host, opts []Option) *Machine {
	m := &Machine{
		activities:      activities,
		host:            host,
		responseTimeout: DefaultResponseTimeout,
		maxExchanges:    DefaultMaxExchanges,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ID returns the run id.
func (m *Machine) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ID
}

// State returns a snapshot of the live state.
func (m *Machine) State() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Respond delivers a user answer. It reports whether a wait consumed it; an answer
// arriving while nothing is awaited is recorded in the inbox slot and otherwise ignored.
func (m *Machine) Respond(ctx context.Context, answer string) bool {
	var accepted bool
	m.update(ctx, func(s *State) {
		a := answer
		s.UserResponse = &a
		if s.AwaitingResponse {
			s.AwaitingResponse = false
			accepted = true
		}
	})
	if accepted {
		m.host.Notify()
	} else {
		m.logger.Debug("response arrived while not awaiting input (phase %s); ignored", m.State().Phase)
	}
	return accepted
}

// EditContext replaces the context document. During synthesize it also releases the
// review wait; in any other phase the gate is left untouched.
func (m *Machine) EditContext(ctx context.Context, doc *ContextDocument) bool {
	var released bool
	m.update(ctx, func(s *State) {
		s.ContextDocument = doc.Clone()
		if s.Phase == PhaseSynthesize && s.AwaitingResponse {
			s.AwaitingResponse = false
			released = true
		}
	})
	if released {
		m.host.Notify()
	}
	return released
}

// Run advances phases until complete or a fatal error. The returned state is a
// snapshot of the final state in both cases.
func (m *Machine) Run(ctx context.Context) (*State, error) {
	m.logger.Info("🎯 adaptive interview starting at phase %s", m.State().Phase)

	for {
		current := m.State()
		if IsTerminal(current.Phase) {
			m.logger.Info("✅ adaptive interview complete with %d exchanges", len(current.Exchanges))
			return current, nil
		}

		next, err := m.executePhase(ctx, current.Phase)
		if err == nil && !IsValidTransition(current.Variant, current.Phase, next) {
			err = fmt.Errorf("%w: invalid transition %s → %s", ErrFatal, current.Phase, next)
		}
		if err != nil {
			if !errors.Is(err, ErrFatal) {
				err = fmt.Errorf("%w: %s: %w", ErrFatal, current.Phase, err)
			}
			m.fail(ctx, err)
			return m.State(), err
		}
		m.advance(ctx, current.Phase, next)
	}
}

// executePhase executes the current phase and returns the next one.
func (m *Machine) executePhase(ctx context.Context, phase Phase) (Phase, error) {
	switch phase {
	case PhasePrime:
		return m.handlePrime(ctx)
	case PhaseIntroduce:
		return m.handleIntroduce(ctx)
	case PhaseInterview:
		return m.handleInterview(ctx)
	case PhaseSynthesize:
		return m.handleSynthesize(ctx)
	case PhaseRecommend:
		return m.handleRecommend(ctx)
	default:
		return "", fmt.Errorf("unknown phase: %s", phase)
	}
}

func (m *Machine) handlePrime(ctx context.Context) (Phase, error) {
	st := m.State()
	if strings.TrimSpace(st.Domain) == "" || strings.TrimSpace(st.Objective) == "" {
		return "", ErrBlankInput
	}
	err := m.call(ctx, "prime", func(ctx context.Context) error {
		return m.activities.Prime(ctx, st.Brief())
	})
	if err != nil {
		return "", err
	}
	return NextPhase(st.Variant, PhasePrime), nil
}

func (m *Machine) handleIntroduce(ctx context.Context) (Phase, error) {
	st := m.State()
	if st.Introduction == "" || st.CurrentQuestion == "" {
		var intro string
		err := m.call(ctx, "introduce", func(ctx context.Context) error {
			var err error
			intro, err = m.activities.Introduce(ctx, st.Brief())
			return err
		})
		if err != nil {
			return "", err
		}
		m.ask(ctx, func(s *State) {
			s.Introduction = intro
			s.CurrentQuestion = intro
		})
	}

	answer, err := m.collectResponse(ctx)
	if err != nil {
		return "", err
	}
	m.update(ctx, func(s *State) {
		s.Exchanges = append(s.Exchanges, Exchange{Question: s.Introduction, Answer: answer})
		s.CurrentQuestion = ""
	})
	return PhaseInterview, nil
}

func (m *Machine) handleInterview(ctx context.Context) (Phase, error) {
	for {
		st := m.State()
		if st.InterviewTurns >= m.maxExchanges {
			m.logger.Info("interview reached the %d exchange cap", m.maxExchanges)
			break
		}

		question := st.CurrentQuestion
		if question == "" {
			err := m.call(ctx, "generate_question", func(ctx context.Context) error {
				var err error
				question, err = m.activities.GenerateQuestion(ctx, QuestionInput{
					Brief:            st.Brief(),
					Exchanges:        st.Exchanges,
					GuidingQuestions: st.GuidingQuestions,
				})
				return err
			})
			if err != nil {
				return "", err
			}
			m.ask(ctx, func(s *State) { s.CurrentQuestion = question })
		}

		answer, err := m.collectResponse(ctx)
		if err != nil {
			return "", err
		}

		var verdict Verdict
		err = m.call(ctx, "process_response", func(ctx context.Context) error {
			var err error
			verdict, err = m.activities.ProcessResponse(ctx, ResponseInput{
				Question:  question,
				Answer:    answer,
				Exchanges: st.Exchanges,
			})
			return err
		})
		if err != nil {
			return "", err
		}

		m.update(ctx, func(s *State) {
			s.Exchanges = append(s.Exchanges, Exchange{Question: question, Answer: answer})
			s.CurrentQuestion = ""
			s.InterviewTurns++
		})
		if verdict.Complete {
			m.logger.Info("interview marked complete after %d exchanges", st.InterviewTurns+1)
			break
		}
	}
	return PhaseSynthesize, nil
}

func (m *Machine) handleSynthesize(ctx context.Context) (Phase, error) {
	st := m.State()
	switch {
	case st.ContextDocument != nil && !st.AwaitingResponse:
		// A document already in place, edited or restored, is kept and only reviewed.
		m.ask(ctx, func(*State) {})
	case st.ContextDocument == nil:
		var doc *ContextDocument
		err := m.call(ctx, "synthesize", func(ctx context.Context) error {
			var err error
			doc, err = m.activities.Synthesize(ctx, SynthesisInput{Brief: st.Brief(), Exchanges: st.Exchanges})
			return err
		})
		if err != nil {
			return "", err
		}
		m.ask(ctx, func(s *State) { s.ContextDocument = doc.Clone() })
	}

	// Either a response or an edited document releases the review.
	if err := m.await(ctx); err != nil {
		return "", err
	}
	return PhaseRecommend, nil
}

func (m *Machine) handleRecommend(ctx context.Context) (Phase, error) {
	st := m.State()
	var recs *RecommendationSet
	err := m.call(ctx, "recommend", func(ctx context.Context) error {
		var err error
		recs, err = m.activities.Recommend(ctx, RecommendInput{Context: st.ContextDocument, Objective: st.Objective})
		return err
	})
	if err != nil {
		return "", err
	}
	m.update(ctx, func(s *State) { s.Recommendations = recs.Clone() })
	return PhaseComplete, nil
}

// call runs an activity through the host. Cancellation is cooperative: an in-flight
// call is allowed to finish and the cancel is observed afterwards.
func (m *Machine) call(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	err := m.host.Execute(context.WithoutCancel(ctx), name, fn)
	if ctx.Err() != nil {
		return ErrCancelled
	}
	if err != nil {
		m.logger.Error("❌ activity %s failed: %v", name, err)
		if errors.Is(err, ErrFatal) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	return nil
}

// ask opens the input gate after applying fn.
func (m *Machine) ask(ctx context.Context, fn func(s *State)) {
	m.update(ctx, func(s *State) {
		fn(s)
		s.AwaitingResponse = true
		s.UserResponse = nil
	})
}

// await suspends until the gate is released.
func (m *Machine) await(ctx context.Context) error {
	timedOut, err := m.host.Await(ctx, m.responseTimeout, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return !m.state.AwaitingResponse
	})
	if err != nil {
		return ErrCancelled
	}
	if timedOut {
		return ErrResponseTimeout
	}
	return nil
}

// collectResponse waits for the gate and returns the non-blank answer.
func (m *Machine) collectResponse(ctx context.Context) (string, error) {
	if err := m.await(ctx); err != nil {
		return "", err
	}
	st := m.State()
	if st.UserResponse == nil || strings.TrimSpace(*st.UserResponse) == "" {
		return "", ErrEmptyResponse
	}
	return *st.UserResponse, nil
}

func (m *Machine) advance(ctx context.Context, from, to Phase) {
	m.logger.Info("🔄 phase transition: %s → %s", from, to)
	logx.DebugState(logx.WithComponent(ctx, m.logger.Component()), "workflow", "transition", string(to))
	snap := m.mutate(func(s *State) {
		s.Phase = to
		if to == PhaseComplete && s.CompletedAt == nil {
			t := m.now()
			s.CompletedAt = &t
			s.AwaitingResponse = false
		}
	})
	defer m.notifyMu.Unlock()
	for _, o := range m.observers {
		o.PhaseChanged(ctx, snap.Clone(), from)
		o.StateChanged(ctx, snap.Clone())
	}
}

func (m *Machine) fail(ctx context.Context, err error) {
	m.logger.Error("❌ adaptive interview failed: %v", err)
	snap := m.mutate(func(s *State) { s.Error = err.Error() })
	defer m.notifyMu.Unlock()
	for _, o := range m.observers {
		o.StateChanged(ctx, snap.Clone())
		o.Failed(ctx, snap.Clone(), err)
	}
}

// update applies fn and notifies observers.
func (m *Machine) update(ctx context.Context, fn func(s *State)) {
	snap := m.mutate(fn)
	defer m.notifyMu.Unlock()
	for _, o := range m.observers {
		o.StateChanged(ctx, snap.Clone())
	}
}

// mutate applies fn under the state lock and returns with notifyMu held, so observer
// calls happen in the same order as mutations.
func (m *Machine) mutate(fn func(s *State)) *State {
	m.mu.Lock()
	fn(&m.state)
	m.state.UpdatedAt = m.now()
	snap := m.state.Clone()
	m.notifyMu.Lock()
	m.mu.Unlock()
	return snap
}
