// Package session manages the lifecycle of step-based interview sessions over a
// pluggable Storage.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"discovery/pkg/export"
	"discovery/pkg/interview"
	"discovery/pkg/interview/analyzer"
	"discovery/pkg/interview/engine"
	"discovery/pkg/logx"
)

// Metrics receives session lifecycle events. *metrics.Recorder implements it.
type Metrics interface {
	SessionCreated(interviewType string)
	SessionCompleted(interviewType string)
	ResponseProcessed(interviewType string, accepted bool)
}

type nopMetrics struct{}

func (nopMetrics) SessionCreated(string)          {}
func (nopMetrics) SessionCompleted(string)        {}
func (nopMetrics) ResponseProcessed(string, bool) {}

// CreateParams are the inputs to CreateSession.
type CreateParams struct {
	UserID         string         `json:"user_id"`
	InterviewType  string         `json:"interview_type"`
	InitialContext map[string]any `json:"initial_context,omitempty"`
}

// RespondResult is the outcome of answering the current question of a stored session.
type RespondResult struct {
	engine.ProcessResult
	Session  *interview.Session `json:"session"`
	Progress engine.Progress    `json:"progress"`
}

// Manager wraps Storage with session lifecycle rules. Writes are last-write-wins:
// concurrent updates to one session are not detected.
type Manager struct {
	storage  Storage
	bank     *interview.Bank
	engine   *engine.Engine
	analyzer *analyzer.Analyzer
	exporter export.Exporter
	metrics  Metrics
	now      func() time.Time
	newID    func() string
	logger   *logx.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// WithEngine replaces the default engine built over the manager's bank.
func WithEngine(e *engine.Engine) Option {
	return func(m *Manager) { m.engine = e }
}

// WithExporter exports analyses produced by Analyze.
func WithExporter(e export.Exporter) Option {
	return func(m *Manager) { m.exporter = e }
}

// WithMetrics records lifecycle events.
func WithMetrics(r Metrics) Option {
	return func(m *Manager) { m.metrics = r }
}

// NewManager creates a manager over storage and bank.
func NewManager(storage Storage, bank *interview.Bank, opts ...Option) *Manager {
	m := &Manager{
		storage:  storage,
		bank:     bank,
		exporter: export.NopExporter{},
		metrics:  nopMetrics{},
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logx.NewLogger("session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.engine == nil {
		m.engine = engine.New(bank, engine.WithClock(m.now))
	}
	m.analyzer = analyzer.New(bank)
	return m
}

// Engine returns the engine used by Respond.
func (m *Manager) Engine() *engine.Engine {
	return m.engine
}

// CreateSession starts a new active session at step 0.
func (m *Manager) CreateSession(ctx context.Context, p CreateParams) (*interview.Session, error) {
	if !m.bank.IsValid(p.InterviewType) {
		return nil, fmt.Errorf("%w: %q", interview.ErrInvalidInterviewType, p.InterviewType)
	}

	contextData := make(map[string]any, len(p.InitialContext))
	for k, v := range p.InitialContext {
		contextData[k] = v
	}

	now := m.now().UTC()
	s := &interview.Session{
		ID:            m.newID(),
		UserID:        p.UserID,
		InterviewType: p.InterviewType,
		Status:        interview.StatusActive,
		CurrentStep:   0,
		Responses:     map[string]interview.ResponseData{},
		ContextData:   contextData,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.storage.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.metrics.SessionCreated(s.InterviewType)
	m.logger.Info("created session %s (%s) for user %s", s.ID, s.InterviewType, s.UserID)
	return s, nil
}

// GetSession returns the stored session, or nil when it does not exist.
func (m *Manager) GetSession(ctx context.Context, id string) (*interview.Session, error) {
	s, err := m.storage.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

func (m *Manager) mustLoad(ctx context.Context, id string) (*interview.Session, error) {
	s, err := m.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %s", interview.ErrSessionNotFound, id)
	}
	return s, nil
}

// UpdateSession merges u over the stored session and stamps UpdatedAt. CompletedAt is
// set the first time the status becomes completed and never changes afterwards.
func (m *Manager) UpdateSession(ctx context.Context, id string, u interview.SessionUpdate) (*interview.Session, error) {
	s, err := m.mustLoad(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.apply(ctx, s, u)
}

func (m *Manager) apply(ctx context.Context, s *interview.Session, u interview.SessionUpdate) (*interview.Session, error) {
	wasCompleted := s.Status == interview.StatusCompleted
	u.Apply(s)

	now := m.now().UTC()
	s.UpdatedAt = now
	if s.Status == interview.StatusCompleted && s.CompletedAt == nil {
		s.CompletedAt = &now
	}

	if err := m.storage.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("update session %s: %w", s.ID, err)
	}
	if !wasCompleted && s.Status == interview.StatusCompleted {
		m.metrics.SessionCompleted(s.InterviewType)
		m.logger.Info("session %s completed", s.ID)
	}
	return s, nil
}

// PauseSession moves a session to paused. Completed sessions cannot be paused.
func (m *Manager) PauseSession(ctx context.Context, id string) (*interview.Session, error) {
	return m.transition(ctx, id, interview.StatusPaused)
}

// ResumeSession moves a session back to active. Completed sessions cannot be resumed.
func (m *Manager) ResumeSession(ctx context.Context, id string) (*interview.Session, error) {
	return m.transition(ctx, id, interview.StatusActive)
}

func (m *Manager) transition(ctx context.Context, id string, to interview.Status) (*interview.Session, error) {
	s, err := m.mustLoad(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status == interview.StatusCompleted {
		return nil, fmt.Errorf("%w: session %s is completed, cannot move to %s", interview.ErrInvalidTransition, id, to)
	}
	status := to
	return m.apply(ctx, s, interview.SessionUpdate{Status: &status})
}

// ListSessions returns sessions matching f in the storage's order.
func (m *Manager) ListSessions(ctx context.Context, f Filter) ([]*interview.Session, error) {
	sessions, err := m.storage.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session permanently.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	if _, err := m.mustLoad(ctx, id); err != nil {
		return err
	}
	if err := m.storage.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	m.logger.Info("deleted session %s", id)
	return nil
}

// Respond answers the current question of an active session and persists the engine's
// delta in a single write. Rejected answers leave the session untouched.
func (m *Manager) Respond(ctx context.Context, id string, raw any) (*RespondResult, error) {
	s, err := m.mustLoad(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status != interview.StatusActive {
		return nil, fmt.Errorf("%w: session %s is %s", interview.ErrInvalidTransition, id, s.Status)
	}

	res, err := m.engine.ProcessResponse(s, raw)
	if err != nil {
		return nil, err
	}
	m.metrics.ResponseProcessed(s.InterviewType, res.Success)

	out := &RespondResult{ProcessResult: res, Session: s}
	if res.Success {
		updated, err := m.apply(ctx, s, *res.Updates)
		if err != nil {
			return nil, err
		}
		out.Session = updated
	}
	if out.Progress, err = m.engine.Progress(out.Session); err != nil {
		return nil, err
	}
	return out, nil
}

// Analyze scores a completed session and exports the result.
func (m *Manager) Analyze(ctx context.Context, id string) (*interview.AnalysisResult, error) {
	s, err := m.mustLoad(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := m.analyzer.GenerateAnalysis(s)
	if err != nil {
		return nil, err
	}
	if err := m.exporter.Export(ctx, export.Key(export.KindAnalysis, s.ID), result); err != nil {
		// The analysis is derived data; a failed export does not fail the call.
		m.logger.Warn("export analysis for %s failed: %v", s.ID, err)
	}
	return result, nil
}
