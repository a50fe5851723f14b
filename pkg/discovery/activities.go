// Package discovery implements the adaptive interview activities on top of a text
// completion client. Every activity has a deterministic fallback used when no client
// is configured, when the completion fails or when the model's output cannot be used;
// fallback output says so.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"discovery/pkg/interview/engine"
	"discovery/pkg/llm"
	"discovery/pkg/logx"
	"discovery/pkg/templates"
	"discovery/pkg/workflow"
)

const (
	// DefaultTranscriptBudget is the token budget for transcripts embedded in prompts.
	DefaultTranscriptBudget = 3000
	// situationalExchanges is how many opening exchanges focus on the user's situation.
	situationalExchanges = 2
	// maxDoneLength bounds answers the done-phrase check looks at.
	maxDoneLength = 100
)

// donePhrases end the interview when a short answer contains one of them. doneWords
// only count when they are the whole answer: "done" alone is a signal, "we have done
// a pilot" is not.
//
//nolint:gochecknoglobals // fixed phrase lists
var (
	donePhrases = []string{
		"that's all", "that is all", "i'm done", "im done", "i am done",
		"nothing more to add", "nothing more to say", "no more questions", "let's wrap up",
	}
	doneWords = []string{"done", "finished", "nothing more", "that's it"}
)

// Option configures Activities.
type Option func(*Activities)

// WithTranscriptBudget overrides DefaultTranscriptBudget.
func WithTranscriptBudget(tokens int) Option {
	return func(a *Activities) { a.transcriptBudget = tokens }
}

// WithTokenCounter sets the counter used to trim transcripts.
func WithTokenCounter(tc *llm.TokenCounter) Option {
	return func(a *Activities) { a.counter = tc }
}

// WithMaxExchanges tells prompts how long the interview may run.
func WithMaxExchanges(n int) Option {
	return func(a *Activities) { a.maxExchanges = n }
}

// Activities implements workflow.Activities.
type Activities struct {
	client           llm.Client
	renderer         *templates.Renderer
	counter          *llm.TokenCounter
	done             engine.DonePolicy
	logger           *logx.Logger
	transcriptBudget int
	maxExchanges     int
	maxTokens        int
}

var _ workflow.Activities = (*Activities)(nil)

// New creates the activities. A nil client selects the deterministic fallbacks for
// every call.
func New(client llm.Client, opts ...Option) (*Activities, error) {
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	a := &Activities{
		client:           client,
		renderer:         renderer,
		done:             engine.NewDonePolicy(maxDoneLength, donePhrases...).WithWholeAnswers(doneWords...),
		logger:           logx.NewLogger("activities"),
		transcriptBudget: DefaultTranscriptBudget,
		maxExchanges:     workflow.DefaultMaxExchanges,
		maxTokens:        llm.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Prime validates the brief before any user-facing work happens.
func (a *Activities) Prime(_ context.Context, brief workflow.Brief) error {
	if strings.TrimSpace(brief.Domain) == "" || strings.TrimSpace(brief.Objective) == "" {
		return workflow.ErrBlankInput
	}
	model := "fallback"
	if a.client != nil {
		model = a.client.ModelName()
	}
	a.logger.Info("🧭 priming interview for %q (model: %s)", brief.Domain, model)
	return nil
}

// Introduce writes the opening message of a five-phase interview.
func (a *Activities) Introduce(ctx context.Context, brief workflow.Brief) (string, error) {
	if a.client == nil {
		return fallbackIntroduction(brief), nil
	}
	prompt, err := a.renderer.Render(templates.IntroduceTemplate, a.baseData(brief))
	if err != nil {
		return "", fatal(err)
	}
	text, ok, err := a.complete(ctx, prompt, "", llm.TemperatureDefault)
	if err != nil {
		return "", err
	}
	if !ok {
		return fallbackIntroduction(brief), nil
	}
	return text, nil
}

// GenerateQuestion returns the next question. Uncovered guiding questions are asked
// verbatim, in order, before anything is generated.
func (a *Activities) GenerateQuestion(ctx context.Context, in workflow.QuestionInput) (string, error) {
	if q, ok := nextGuidingQuestion(in.GuidingQuestions, in.Exchanges); ok {
		a.logger.Debug("asking guiding question: %s", q)
		return q, nil
	}
	situational := len(in.Exchanges) < situationalExchanges
	if a.client == nil {
		return fallbackQuestion(in.Brief, in.Exchanges, situational), nil
	}

	data := a.baseData(in.Brief)
	data.Transcript, data.Omitted = a.transcript(in.Exchanges)
	data.TurnCount = len(in.Exchanges)
	data.MaxTurns = a.maxExchanges
	data.Situational = situational
	prompt, err := a.renderer.Render(templates.QuestionTemplate, data)
	if err != nil {
		return "", fatal(err)
	}
	text, ok, err := a.complete(ctx, prompt, "You ask one focused question at a time.", llm.TemperatureDefault)
	if err != nil {
		return "", err
	}
	if !ok {
		return fallbackQuestion(in.Brief, in.Exchanges, situational), nil
	}
	return cleanQuestion(text), nil
}

// ProcessResponse decides whether the interview has gathered enough. A short answer
// containing a done phrase ends it without consulting the model.
func (a *Activities) ProcessResponse(ctx context.Context, in workflow.ResponseInput) (workflow.Verdict, error) {
	if a.done.Matches(in.Answer) {
		a.logger.Info("user indicated the interview is done")
		return workflow.Verdict{Complete: true}, nil
	}
	if a.client == nil {
		return workflow.Verdict{}, nil
	}

	data := &templates.TemplateData{Question: in.Question, Answer: in.Answer}
	data.Transcript, data.Omitted = a.transcript(in.Exchanges)
	prompt, err := a.renderer.Render(templates.CompletionCheckTemplate, data)
	if err != nil {
		return workflow.Verdict{}, fatal(err)
	}
	text, ok, err := a.complete(ctx, prompt, "", llm.TemperatureDeterministic)
	if err != nil || !ok {
		return workflow.Verdict{}, err
	}
	return workflow.Verdict{Complete: parseVerdict(text)}, nil
}

// Synthesize turns the transcript into a context document.
func (a *Activities) Synthesize(ctx context.Context, in workflow.SynthesisInput) (*workflow.ContextDocument, error) {
	if a.client == nil {
		return fallbackContext(in.Brief, in.Exchanges, "no text-completion service is configured"), nil
	}

	data := a.baseData(in.Brief)
	data.Transcript, data.Omitted = a.transcript(in.Exchanges)
	prompt, err := a.renderer.Render(templates.SynthesizeTemplate, data)
	if err != nil {
		return nil, fatal(err)
	}
	text, ok, err := a.complete(ctx, prompt, "You return strictly valid JSON.", llm.TemperatureDeterministic)
	if err != nil {
		return nil, err
	}
	if !ok {
		return fallbackContext(in.Brief, in.Exchanges, "the text-completion service failed"), nil
	}
	doc, err := parseContextDocument(text)
	if err != nil {
		a.logger.Warn("⚠️ synthesis output unusable, using heuristic fallback: %v", err)
		return fallbackContext(in.Brief, in.Exchanges, "the synthesis output could not be parsed"), nil
	}
	return doc, nil
}

// Recommend proposes two to four approaches and compares them.
func (a *Activities) Recommend(ctx context.Context, in workflow.RecommendInput) (*workflow.RecommendationSet, error) {
	if in.Context == nil {
		return nil, fatal(errors.New("recommend requires a context document"))
	}
	if a.client == nil {
		return fallbackRecommendations(in.Context, in.Objective), nil
	}

	contextJSON, err := marshalIndent(in.Context)
	if err != nil {
		return nil, fatal(err)
	}
	prompt, err := a.renderer.Render(templates.RecommendTemplate, &templates.TemplateData{
		Objective:   in.Objective,
		ContextJSON: contextJSON,
		Facets:      Facets(),
	})
	if err != nil {
		return nil, fatal(err)
	}
	text, ok, err := a.complete(ctx, prompt, "You return strictly valid JSON.", llm.TemperatureDefault)
	if err != nil {
		return nil, err
	}
	if !ok {
		return fallbackRecommendations(in.Context, in.Objective), nil
	}
	candidates, err := parseCandidates(text)
	if err != nil {
		a.logger.Warn("⚠️ recommendation output unusable, using fallback: %v", err)
		return fallbackRecommendations(in.Context, in.Objective), nil
	}
	return buildSet(candidates), nil
}

// complete asks the model. A failed completion reports ok=false and the caller
// degrades to its fallback; only an ended attempt context is returned as an error, so
// the host can retry the activity.
func (a *Activities) complete(ctx context.Context, prompt, suffix string, temperature float32) (text string, ok bool, err error) {
	text, err = llm.Complete(ctx, a.client, prompt, suffix, a.maxTokens, temperature)
	if err == nil {
		return text, true, nil
	}
	if ctx.Err() != nil {
		return "", false, fmt.Errorf("completion interrupted: %w", ctx.Err())
	}
	a.logger.Warn("⚠️ completion failed (%s), using fallback: %v", llm.TypeOf(err), err)
	return "", false, nil
}

func fatal(err error) error {
	return fmt.Errorf("%w: %w", workflow.ErrFatal, err)
}

func (a *Activities) baseData(b workflow.Brief) *templates.TemplateData {
	return &templates.TemplateData{Domain: b.Domain, Objective: b.Objective, Constraints: b.Constraints}
}

// transcript keeps the newest exchanges that fit the token budget and reports how
// many were dropped.
func (a *Activities) transcript(exchanges []workflow.Exchange) ([]templates.TranscriptEntry, int) {
	rendered := make([]string, len(exchanges))
	for i, e := range exchanges {
		rendered[i] = "Q: " + e.Question + "\nA: " + e.Answer
	}
	kept := a.counter.FitTail(rendered, a.transcriptBudget)
	omitted := len(exchanges) - len(kept)

	out := make([]templates.TranscriptEntry, 0, len(kept))
	for _, e := range exchanges[omitted:] {
		out = append(out, templates.TranscriptEntry{Question: e.Question, Answer: e.Answer})
	}
	return out, omitted
}

// nextGuidingQuestion returns the first guiding question not yet asked.
func nextGuidingQuestion(guiding []string, exchanges []workflow.Exchange) (string, bool) {
	asked := make(map[string]bool, len(exchanges))
	for _, e := range exchanges {
		asked[normalize(e.Question)] = true
	}
	for _, q := range guiding {
		q = strings.TrimSpace(q)
		if q != "" && !asked[normalize(q)] {
			return q, true
		}
	}
	return "", false
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// cleanQuestion strips labels and quotes models like to add.
func cleanQuestion(text string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{"Question:", "Next question:", "Q:"} {
		if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
			text = strings.TrimSpace(text[len(prefix):])
		}
	}
	return strings.Trim(text, "\"“” ")
}

// parseVerdict reads the first word of the completion check.
func parseVerdict(text string) bool {
	fields := strings.Fields(strings.ToUpper(text))
	if len(fields) == 0 {
		return false
	}
	return strings.Trim(fields[0], ".,:;!*\"'`") == "COMPLETE"
}
