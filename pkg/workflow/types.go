// Package workflow implements the adaptive interview phase machine: prime, an optional
// introduction, a bounded question loop, synthesis of a context document, and
// recommendations.
//
// The machine is single-threaded. Signals (Respond, EditContext) and queries (State)
// may arrive from any goroutine and serialize on the machine mutex; no lock is held
// while the machine waits for the user or calls an activity.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"discovery/pkg/interview"
)

// Phase is a step of the adaptive interview.
type Phase string

const (
	PhasePrime      Phase = "prime"
	PhaseIntroduce  Phase = "introduce"
	PhaseInterview  Phase = "interview"
	PhaseSynthesize Phase = "synthesize"
	PhaseRecommend  Phase = "recommend"
	PhaseComplete   Phase = "complete"
)

// Variant selects the phase line-up.
type Variant string

const (
	// FourPhase skips the introduction.
	FourPhase Variant = "four_phase"
	// FivePhase gathers the user's own context before domain questioning.
	FivePhase Variant = "five_phase"
)

// Defaults for a run.
const (
	DefaultResponseTimeout = 24 * time.Hour
	DefaultMaxExchanges    = 20
	DefaultAttemptTimeout  = 5 * time.Minute
	DefaultAttempts        = 3
)

var (
	// ErrFatal is wrapped by every error that terminates a run.
	ErrFatal = errors.New("fatal workflow error")

	ErrBlankInput      = fmt.Errorf("%w: domain and objective are required", ErrFatal)
	ErrResponseTimeout = fmt.Errorf("%w: timed out waiting for a response", ErrFatal)
	ErrEmptyResponse   = fmt.Errorf("%w: empty response", ErrFatal)
	ErrCancelled       = fmt.Errorf("%w: cancelled", ErrFatal)

	// ErrNotFound reports an unknown workflow id.
	ErrNotFound = errors.New("workflow not found")
	// ErrAlreadyRunning reports a second start for a live id.
	ErrAlreadyRunning = errors.New("workflow already running")
)

// Exchange is one question and its answer. The transcript is append-only.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ContextDocument is the structured synthesis of a transcript.
type ContextDocument struct {
	Summary           string   `json:"summary"`
	Facts             []string `json:"facts"`
	Constraints       []string `json:"constraints"`
	Priorities        []string `json:"priorities"`
	Assumptions       []string `json:"assumptions"`
	Uncertainties     []string `json:"uncertainties"`
	StrategicAnalysis string   `json:"strategic_analysis,omitempty"`
}

// Clone returns a deep copy.
func (d *ContextDocument) Clone() *ContextDocument {
	if d == nil {
		return nil
	}
	c := *d
	c.Facts = cloneStrings(d.Facts)
	c.Constraints = cloneStrings(d.Constraints)
	c.Priorities = cloneStrings(d.Priorities)
	c.Assumptions = cloneStrings(d.Assumptions)
	c.Uncertainties = cloneStrings(d.Uncertainties)
	return &c
}

// RecommendationSet is the final output of a run.
type RecommendationSet struct {
	Items              []interview.Recommendation `json:"items"`
	ComparisonMarkdown string                     `json:"comparison_markdown,omitempty"`
}

// Clone returns a deep copy.
func (r *RecommendationSet) Clone() *RecommendationSet {
	if r == nil {
		return nil
	}
	c := &RecommendationSet{ComparisonMarkdown: r.ComparisonMarkdown}
	c.Items = make([]interview.Recommendation, len(r.Items))
	for i, item := range r.Items {
		item.NextSteps = cloneStrings(item.NextSteps)
		item.Pros = cloneStrings(item.Pros)
		item.Cons = cloneStrings(item.Cons)
		c.Items[i] = item
	}
	return c
}

// State is the machine's working memory. It is fully reconstructible from its own
// fields, which is what Restore relies on.
type State struct {
	ID               string             `json:"id"`
	Variant          Variant            `json:"variant"`
	Phase            Phase              `json:"phase"`
	Domain           string             `json:"domain"`
	Objective        string             `json:"objective"`
	Constraints      string             `json:"constraints,omitempty"`
	GuidingQuestions []string           `json:"guiding_questions,omitempty"`
	Exchanges        []Exchange         `json:"exchanges"`
	InterviewTurns   int                `json:"interview_turns"`
	Introduction     string             `json:"introduction,omitempty"`
	CurrentQuestion  string             `json:"current_question,omitempty"`
	ContextDocument  *ContextDocument   `json:"context_document,omitempty"`
	Recommendations  *RecommendationSet `json:"recommendations,omitempty"`
	UserResponse     *string            `json:"user_response,omitempty"`
	AwaitingResponse bool               `json:"awaiting_response"`
	Error            string             `json:"error,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *State) Clone() *State {
	c := *s
	c.GuidingQuestions = cloneStrings(s.GuidingQuestions)
	c.Exchanges = append([]Exchange(nil), s.Exchanges...)
	c.ContextDocument = s.ContextDocument.Clone()
	c.Recommendations = s.Recommendations.Clone()
	if s.UserResponse != nil {
		v := *s.UserResponse
		c.UserResponse = &v
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Brief returns the subject of the interview.
func (s *State) Brief() Brief {
	return Brief{Domain: s.Domain, Objective: s.Objective, Constraints: s.Constraints}
}

// Input starts a new run.
type Input struct {
	ID               string   `json:"id"`
	Domain           string   `json:"domain"`
	Objective        string   `json:"objective"`
	Constraints      string   `json:"constraints,omitempty"`
	GuidingQuestions []string `json:"guiding_questions,omitempty"`
	Variant          Variant  `json:"variant,omitempty"`
}

// Brief is what the interview is about.
type Brief struct {
	Domain      string
	Objective   string
	Constraints string
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
