package workflow

import "context"

// QuestionInput is handed to question generation.
type QuestionInput struct {
	Brief            Brief
	Exchanges        []Exchange
	GuidingQuestions []string
}

// ResponseInput is handed to the completion check.
type ResponseInput struct {
	Question  string
	Answer    string
	Exchanges []Exchange
}

// Verdict is the completion check's answer.
type Verdict struct {
	Complete bool
}

// SynthesisInput is handed to synthesis.
type SynthesisInput struct {
	Brief     Brief
	Exchanges []Exchange
}

// RecommendInput is handed to recommendation.
type RecommendInput struct {
	Context   *ContextDocument
	Objective string
}

// Activities are the external collaborators the machine calls. Any error wrapping
// ErrFatal ends the run immediately; other errors are retried by the Host.
type Activities interface {
	Prime(ctx context.Context, brief Brief) error
	Introduce(ctx context.Context, brief Brief) (string, error)
	GenerateQuestion(ctx context.Context, in QuestionInput) (string, error)
	ProcessResponse(ctx context.Context, in ResponseInput) (Verdict, error)
	Synthesize(ctx context.Context, in SynthesisInput) (*ContextDocument, error)
	Recommend(ctx context.Context, in RecommendInput) (*RecommendationSet, error)
}
