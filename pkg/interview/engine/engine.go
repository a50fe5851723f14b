// Package engine implements step-based interview progression: which question is next,
// whether an answer is acceptable, and whether the interview has reached a terminal state.
//
// The engine never mutates the session it is given. ProcessResponse returns the delta
// the caller must persist, which keeps the engine usable against read snapshots while
// the storage-backed session manager owns the commit.
package engine

import (
	"context"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"discovery/pkg/interview"
	"discovery/pkg/logx"
)

// DonePolicy detects short "I'm finished" answers.
type DonePolicy struct {
	MaxLength int
	Phrases   []string
	Whole     []string
	pattern   *regexp.Regexp
	whole     *regexp.Regexp
}

// DefaultDonePolicy is the step-based interview's completion phrase gate.
func DefaultDonePolicy() DonePolicy {
	return NewDonePolicy(50, "done", "finished", "that's all", "no more", "that covers it", "nothing else")
}

// NewDonePolicy compiles a case-insensitive whole-word matcher over phrases.
func NewDonePolicy(maxLength int, phrases ...string) DonePolicy {
	quoted := make([]string, 0, len(phrases))
	for _, p := range phrases {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(p)))
	}
	return DonePolicy{
		MaxLength: maxLength,
		Phrases:   phrases,
		pattern:   regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`),
	}
}

// WithWholeAnswers returns a copy that also matches answers made of nothing but one of
// words, trailing punctuation allowed. Words listed here never match inside longer text.
func (p DonePolicy) WithWholeAnswers(words ...string) DonePolicy {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(w)))
	}
	p.Whole = words
	p.whole = regexp.MustCompile(`(?i)^(?:` + strings.Join(quoted, "|") + `)[.!]*$`)
	return p
}

// Matches reports whether raw is a short string containing a completion phrase.
func (p DonePolicy) Matches(raw any) bool {
	s, ok := raw.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > p.MaxLength {
		return false
	}
	if p.whole != nil && p.whole.MatchString(s) {
		return true
	}
	return p.pattern != nil && len(p.Phrases) > 0 && p.pattern.MatchString(s)
}

// ProcessResult is the outcome of answering the current question.
type ProcessResult struct {
	Success      bool                     `json:"success"`
	Error        string                   `json:"error,omitempty"`
	Completed    bool                     `json:"completed"`
	NextQuestion *interview.Question      `json:"next_question,omitempty"`
	Updates      *interview.SessionUpdate `json:"updates,omitempty"`
}

// Progress reports how far a session has advanced.
type Progress struct {
	CurrentStep          int `json:"current_step"`
	TotalSteps           int `json:"total_steps"`
	CompletionPercentage int `json:"completion_percentage"`
}

// Engine evaluates sessions against a question bank.
type Engine struct {
	bank   *interview.Bank
	done   DonePolicy
	now    func() time.Time
	logger *logx.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDonePolicy overrides the user_indicated_done phrase gate.
func WithDonePolicy(p DonePolicy) Option {
	return func(e *Engine) { e.done = p }
}

// New creates an engine over bank.
func New(bank *interview.Bank, opts ...Option) *Engine {
	e := &Engine{
		bank:   bank,
		done:   DefaultDonePolicy(),
		now:    time.Now,
		logger: logx.NewLogger("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bank returns the registry the engine resolves archetypes from.
func (e *Engine) Bank() *interview.Bank {
	return e.bank
}

// NextQuestion returns the question at the session's cursor, or nil once the cursor
// has reached the end of the archetype.
func (e *Engine) NextQuestion(s *interview.Session) (*interview.Question, error) {
	def, err := e.bank.Get(s.InterviewType)
	if err != nil {
		return nil, err
	}
	return questionAt(&def, s.CurrentStep), nil
}

func questionAt(def *interview.Definition, step int) *interview.Question {
	if step < 0 || step >= def.MaxSteps || step >= len(def.Questions) {
		return nil
	}
	q := def.Questions[step]
	return &q
}

// ProcessResponse validates raw against the current question and, when valid, returns
// the projected session delta. The input session is never modified.
func (e *Engine) ProcessResponse(s *interview.Session, raw any) (ProcessResult, error) {
	def, err := e.bank.Get(s.InterviewType)
	if err != nil {
		return ProcessResult{}, err
	}

	question := questionAt(&def, s.CurrentStep)
	if question == nil {
		return ProcessResult{Success: false, Error: "no current question"}, nil
	}

	if ok, reason := Validate(question, raw); !ok {
		logx.Debug(logx.WithComponent(context.Background(), s.ID), "engine",
			"rejected answer for %s: %s", question.ID, reason)
		return ProcessResult{Success: false, Error: reason}, nil
	}

	now := e.now().UTC()
	projected := s.Clone()

	// Skipped optional questions advance the cursor without recording an answer.
	if !IsEmpty(raw) {
		projected.Responses[question.ID] = interview.ResponseData{
			Response: raw,
			Metadata: interview.ResponseMetadata{
				QuestionID:   question.ID,
				QuestionText: question.Text,
				QuestionType: question.Type,
				Step:         s.CurrentStep,
			},
			Timestamp: now,
		}
	}
	projected.CurrentStep = s.CurrentStep + 1
	projected.UpdatedAt = now

	completed := e.checkCompletion(&def, projected)

	nextStep := projected.CurrentStep
	updates := &interview.SessionUpdate{
		CurrentStep: &nextStep,
		Responses:   projected.Responses,
		UpdatedAt:   &now,
	}

	result := ProcessResult{Success: true, Completed: completed, Updates: updates}
	if completed {
		status := interview.StatusCompleted
		updates.Status = &status
		if s.CompletedAt == nil {
			completedAt := now
			updates.CompletedAt = &completedAt
		}
		e.logger.Info("session %s completed at step %d", s.ID, nextStep)
	} else {
		result.NextQuestion = questionAt(&def, nextStep)
	}
	return result, nil
}

// CheckCompletion reports whether any declared completion rule holds. Sessions with an
// unknown archetype are never complete.
func (e *Engine) CheckCompletion(s *interview.Session) bool {
	def, err := e.bank.Get(s.InterviewType)
	if err != nil {
		return false
	}
	return e.checkCompletion(&def, s)
}

func (e *Engine) checkCompletion(def *interview.Definition, s *interview.Session) bool {
	for _, criterion := range def.CompletionCriteria {
		var met bool
		switch criterion {
		case interview.CriterionStepLimitReached:
			met = s.CurrentStep >= def.MaxSteps
		case interview.CriterionAllRequiredAnswered:
			met = allRequiredAnswered(def, s)
		case interview.CriterionUserIndicatedDone:
			if latest, ok := s.LatestResponse(); ok {
				met = e.done.Matches(latest.Response)
			}
		case interview.CriterionTimeout:
			met = timedOut(def, s)
		}
		if met {
			return true
		}
	}
	return false
}

// allRequiredAnswered needs every required answer and the cursor at the end.
func allRequiredAnswered(def *interview.Definition, s *interview.Session) bool {
	if s.CurrentStep < len(def.Questions) {
		return false
	}
	for _, id := range def.RequiredQuestionIDs() {
		if _, ok := s.Responses[id]; !ok {
			return false
		}
	}
	return true
}

func timedOut(def *interview.Definition, s *interview.Session) bool {
	if def.SessionTimeout <= 0 || s.CreatedAt.IsZero() || s.UpdatedAt.IsZero() {
		return false
	}
	return s.UpdatedAt.Sub(s.CreatedAt) >= def.SessionTimeout
}

// Progress reports the cursor position as a percentage of the archetype length.
func (e *Engine) Progress(s *interview.Session) (Progress, error) {
	def, err := e.bank.Get(s.InterviewType)
	if err != nil {
		return Progress{}, err
	}
	pct := int(math.Round(float64(s.CurrentStep) / float64(def.MaxSteps) * 100))
	if pct > 100 {
		pct = 100
	}
	return Progress{
		CurrentStep:          s.CurrentStep,
		TotalSteps:           def.MaxSteps,
		CompletionPercentage: pct,
	}, nil
}
