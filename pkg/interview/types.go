// Package interview defines the step-based interview domain: archetype definitions,
// sessions, responses and analysis results, plus the archetype registry (Bank).
package interview

import (
	"errors"
	"time"
)

// Sentinel errors. Not-found errors (unknown type, unknown session) are distinguishable
// from validation problems, which are reported as results rather than errors.
var (
	ErrInvalidInterviewType = errors.New("invalid interview type")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidTransition    = errors.New("invalid session transition")
	ErrIncompleteSession    = errors.New("session is not completed")
	ErrStorage              = errors.New("storage error")
)

// QuestionType is the closed set of answer shapes a question accepts.
type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionNumber         QuestionType = "number"
	QuestionYesNo          QuestionType = "yes_no"
	QuestionScale          QuestionType = "scale"
	QuestionDate           QuestionType = "date"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionMultipleSelect QuestionType = "multiple_select"
)

// AllQuestionTypes lists every known question type.
func AllQuestionTypes() []QuestionType {
	return []QuestionType{
		QuestionText,
		QuestionNumber,
		QuestionYesNo,
		QuestionScale,
		QuestionDate,
		QuestionMultipleChoice,
		QuestionMultipleSelect,
	}
}

// IsValid reports whether t is a known question type.
func (t QuestionType) IsValid() bool {
	for _, known := range AllQuestionTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// RequiresOptions reports whether questions of this type must declare options.
func (t QuestionType) RequiresOptions() bool {
	switch t {
	case QuestionScale, QuestionMultipleChoice, QuestionMultipleSelect:
		return true
	default:
		return false
	}
}

// CompletionCriterion names a rule that can end a step-based interview.
type CompletionCriterion string

const (
	CriterionAllRequiredAnswered CompletionCriterion = "all_required_answered"
	CriterionStepLimitReached    CompletionCriterion = "step_limit_reached"
	CriterionUserIndicatedDone   CompletionCriterion = "user_indicated_done"
	CriterionTimeout             CompletionCriterion = "timeout"
)

// IsValid reports whether c is a known completion criterion.
func (c CompletionCriterion) IsValid() bool {
	switch c {
	case CriterionAllRequiredAnswered, CriterionStepLimitReached, CriterionUserIndicatedDone, CriterionTimeout:
		return true
	default:
		return false
	}
}

// Question is one immutable prompt within an archetype.
type Question struct {
	ID       string            `json:"id" yaml:"id"`
	Text     string            `json:"text" yaml:"text"`
	Type     QuestionType      `json:"type" yaml:"type"`
	Required bool              `json:"required" yaml:"required"`
	Options  []string          `json:"options,omitempty" yaml:"options,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Definition is a statically defined interview archetype.
type Definition struct {
	Type               string                `json:"type" yaml:"type"`
	Description        string                `json:"description" yaml:"description"`
	MaxSteps           int                   `json:"max_steps" yaml:"max_steps"`
	Questions          []Question            `json:"questions" yaml:"questions"`
	CompletionCriteria []CompletionCriterion `json:"completion_criteria" yaml:"completion_criteria"`
	// SessionTimeout bounds the session lifetime for the timeout criterion. Zero disables it.
	SessionTimeout time.Duration `json:"session_timeout,omitempty" yaml:"session_timeout,omitempty"`
}

// HasCriterion reports whether the definition declares c.
func (d *Definition) HasCriterion(c CompletionCriterion) bool {
	for _, declared := range d.CompletionCriteria {
		if declared == c {
			return true
		}
	}
	return false
}

// RequiredQuestionIDs returns the ids of required questions in order.
func (d *Definition) RequiredQuestionIDs() []string {
	ids := make([]string, 0, len(d.Questions))
	for i := range d.Questions {
		if d.Questions[i].Required {
			ids = append(ids, d.Questions[i].ID)
		}
	}
	return ids
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// ResponseMetadata is a denormalized snapshot of the question at answer time.
type ResponseMetadata struct {
	QuestionID   string       `json:"question_id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Step         int          `json:"step"`
}

// ResponseData is one recorded answer.
type ResponseData struct {
	Response  any              `json:"response"`
	Metadata  ResponseMetadata `json:"metadata"`
	Timestamp time.Time        `json:"timestamp"`
}

// Session is the mutable aggregate for one step-based interview.
type Session struct {
	ID            string                  `json:"id"`
	UserID        string                  `json:"user_id"`
	InterviewType string                  `json:"interview_type"`
	Status        Status                  `json:"status"`
	CurrentStep   int                     `json:"current_step"`
	Responses     map[string]ResponseData `json:"responses"`
	ContextData   map[string]any          `json:"context_data"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
	CompletedAt   *time.Time              `json:"completed_at,omitempty"`
}

// Clone returns a copy whose maps can be modified without touching s.
// Response values themselves are shared; they are treated as immutable.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Responses = make(map[string]ResponseData, len(s.Responses))
	for k, v := range s.Responses {
		out.Responses[k] = v
	}
	out.ContextData = make(map[string]any, len(s.ContextData))
	for k, v := range s.ContextData {
		out.ContextData[k] = v
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// LatestResponse returns the answer with the highest recorded step.
func (s *Session) LatestResponse() (ResponseData, bool) {
	var (
		latest ResponseData
		found  bool
	)
	for _, r := range s.Responses {
		if !found || r.Metadata.Step > latest.Metadata.Step {
			latest = r
			found = true
		}
	}
	return latest, found
}

// SessionUpdate is a partial set of session fields. Nil fields are left unchanged.
type SessionUpdate struct {
	CurrentStep *int                    `json:"current_step,omitempty"`
	Responses   map[string]ResponseData `json:"responses,omitempty"`
	ContextData map[string]any          `json:"context_data,omitempty"`
	Status      *Status                 `json:"status,omitempty"`
	UpdatedAt   *time.Time              `json:"updated_at,omitempty"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

// Apply merges u into s in place.
func (u *SessionUpdate) Apply(s *Session) {
	if u == nil {
		return
	}
	if u.CurrentStep != nil {
		s.CurrentStep = *u.CurrentStep
	}
	if u.Responses != nil {
		s.Responses = u.Responses
	}
	if u.ContextData != nil {
		s.ContextData = u.ContextData
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.UpdatedAt != nil {
		s.UpdatedAt = *u.UpdatedAt
	}
	if u.CompletedAt != nil && s.CompletedAt == nil {
		t := *u.CompletedAt
		s.CompletedAt = &t
	}
}

// Priority ranks a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recommendation is an actionable outcome of an interview. Pros, Cons and Confidence
// are only filled by the adaptive workflow.
type Recommendation struct {
	Title          string   `json:"title"`
	Rationale      string   `json:"rationale"`
	NextSteps      []string `json:"next_steps"`
	Priority       Priority `json:"priority,omitempty"`
	AgentToExecute string   `json:"agent_to_execute,omitempty"`
	Pros           []string `json:"pros,omitempty"`
	Cons           []string `json:"cons,omitempty"`
	Confidence     string   `json:"confidence,omitempty"`
}

// AnalysisResult is derived from a completed session; it is never the record of truth.
type AnalysisResult struct {
	SessionID        string           `json:"session_id"`
	InterviewType    string           `json:"interview_type"`
	CompletionTimeMs int64            `json:"completion_time_ms"`
	ResponseCount    int              `json:"response_count"`
	CompletionRate   float64          `json:"completion_rate"`
	Insights         []string         `json:"insights"`
	Score            int              `json:"score"`
	Recommendations  []Recommendation `json:"recommendations,omitempty"`
}
