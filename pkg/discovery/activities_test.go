package discovery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discovery/internal/mocks"
	"discovery/pkg/llm"
	"discovery/pkg/workflow"
)

var brief = workflow.Brief{Domain: "dental clinics", Objective: "reduce no-show appointments", Constraints: "no new hires"}

func newActivities(t *testing.T, client llm.Client, opts ...Option) *Activities {
	t.Helper()
	a, err := New(client, opts...)
	require.NoError(t, err)
	return a
}

func TestPrime(t *testing.T) {
	a := newActivities(t, nil)
	assert.NoError(t, a.Prime(context.Background(), brief))

	err := a.Prime(context.Background(), workflow.Brief{Domain: "x", Objective: "  "})
	assert.ErrorIs(t, err, workflow.ErrBlankInput)
	assert.ErrorIs(t, err, workflow.ErrFatal)
}

func TestIntroduce(t *testing.T) {
	t.Run("fallback", func(t *testing.T) {
		intro, err := newActivities(t, nil).Introduce(context.Background(), brief)
		require.NoError(t, err)
		assert.Contains(t, intro, "dental clinics")
		assert.Contains(t, intro, "reduce no-show appointments")
	})

	t.Run("model", func(t *testing.T) {
		client := mocks.NewMockLLMClient()
		client.RespondWith("  Hi there! Tell me about your clinic.  ")
		intro, err := newActivities(t, client).Introduce(context.Background(), brief)
		require.NoError(t, err)
		assert.Equal(t, "Hi there! Tell me about your clinic.", intro)
		assert.True(t, client.AssertCompleteCalledWith("no new hires"))
	})
}

func TestGenerateQuestion_GuidingQuestionsFirst(t *testing.T) {
	client := mocks.NewMockLLMClient()
	client.RespondWith("Generated?")
	a := newActivities(t, client)
	in := workflow.QuestionInput{
		Brief:            brief,
		GuidingQuestions: []string{"How many chairs do you run?", "  ", "Which reminder system do you use?"},
		Exchanges:        []workflow.Exchange{{Question: "how many  chairs do you run?", Answer: "six"}},
	}

	q, err := a.GenerateQuestion(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Which reminder system do you use?", q)
	assert.Zero(t, client.GetCompleteCallCount())

	in.Exchanges = append(in.Exchanges, workflow.Exchange{Question: q, Answer: "SMS"})
	q, err = a.GenerateQuestion(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Generated?", q)
}

func TestGenerateQuestion_SituationalPrompt(t *testing.T) {
	client := mocks.NewMockLLMClient()
	var prompts []string
	client.OnPrompt(func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return `Question: "What is your role?"`, nil
	})
	a := newActivities(t, client)

	q, err := a.GenerateQuestion(context.Background(), workflow.QuestionInput{Brief: brief})
	require.NoError(t, err)
	assert.Equal(t, "What is your role?", q)

	exchanges := []workflow.Exchange{{Question: "a", Answer: "b"}, {Question: "c", Answer: "d"}}
	_, err = a.GenerateQuestion(context.Background(), workflow.QuestionInput{Brief: brief, Exchanges: exchanges})
	require.NoError(t, err)

	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "their own situation")
	assert.NotContains(t, prompts[1], "their own situation")
	assert.Contains(t, prompts[1], "question 3 of at most 20")
}

func TestGenerateQuestion_TrimsTranscriptToBudget(t *testing.T) {
	client := mocks.NewMockLLMClient()
	var prompt string
	client.OnPrompt(func(p string) (string, error) {
		prompt = p
		return "Next?", nil
	})
	a := newActivities(t, client, WithTranscriptBudget(12))

	long := strings.Repeat("word ", 20)
	exchanges := []workflow.Exchange{
		{Question: "first", Answer: long},
		{Question: "second", Answer: long},
		{Question: "newest", Answer: "short"},
	}
	_, err := a.GenerateQuestion(context.Background(), workflow.QuestionInput{Brief: brief, Exchanges: exchanges})
	require.NoError(t, err)
	assert.Contains(t, prompt, "newest")
	assert.NotContains(t, prompt, "first")
	assert.Contains(t, prompt, "(2 earlier exchanges omitted)")
}

func TestGenerateQuestion_Fallback(t *testing.T) {
	a := newActivities(t, nil)
	var exchanges []workflow.Exchange
	seen := map[string]bool{}
	for i := 0; i < 12; i++ {
		q, err := a.GenerateQuestion(context.Background(), workflow.QuestionInput{Brief: brief, Exchanges: exchanges})
		require.NoError(t, err)
		assert.False(t, seen[q], "question repeated: %s", q)
		seen[q] = true
		exchanges = append(exchanges, workflow.Exchange{Question: q, Answer: "ok"})
	}
	assert.Contains(t, exchanges[0].Question, "dental clinics")
}

func TestProcessResponse_DonePhrases(t *testing.T) {
	client := mocks.NewMockLLMClient()
	client.RespondWith("CONTINUE")
	a := newActivities(t, client)

	tests := []struct {
		answer string
		want   bool
	}{
		{"That's all", true},
		{"ok I'm done now", true},
		{"im done", true},
		{"let's wrap up", true},
		{"Done.", true},
		{"nothing more to add", true},
		{"Finished!", true},
		{"We abandoned the old system", false},
		{"I've done bookkeeping for this firm for about ten years.", false},
		{"We have done a pilot already but it stalled.", false},
		{"Nothing more than a spreadsheet today", false},
		{"We're done with paper invoices", false},
		{"I'm done " + strings.Repeat("x", 100), false},
	}
	for _, tt := range tests {
		v, err := a.ProcessResponse(context.Background(), workflow.ResponseInput{Question: "q", Answer: tt.answer})
		require.NoError(t, err)
		assert.Equal(t, tt.want, v.Complete, tt.answer)
	}
}

func TestProcessResponse_ModelVerdict(t *testing.T) {
	client := mocks.NewMockLLMClient()
	a := newActivities(t, client)
	in := workflow.ResponseInput{Question: "What else?", Answer: "We also lose patients on Mondays."}

	for text, want := range map[string]bool{
		"COMPLETE":           true,
		"**Complete**.":      true,
		"CONTINUE":           false,
		"I think INCOMPLETE": false,
	} {
		client.RespondWith(text)
		v, err := a.ProcessResponse(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, want, v.Complete, text)
	}

	v, err := newActivities(t, nil).ProcessResponse(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, v.Complete)
}

func TestActivities_CompletionFailuresDegrade(t *testing.T) {
	ctx := context.Background()
	client := mocks.NewMockLLMClient()
	a := newActivities(t, client)

	client.FailCompleteWith(errors.New("status code: 503 overloaded"))
	q, err := a.GenerateQuestion(ctx, workflow.QuestionInput{Brief: brief})
	require.NoError(t, err)
	assert.NotEmpty(t, q)

	client.FailCompleteWith(errors.New("status code: 401 invalid api key"))
	verdict, err := a.ProcessResponse(ctx, workflow.ResponseInput{Question: "Q", Answer: "a long and thoughtful answer"})
	require.NoError(t, err)
	assert.False(t, verdict.Complete)

	doc, err := a.Synthesize(ctx, workflow.SynthesisInput{Brief: brief, Exchanges: []workflow.Exchange{{Question: "Q", Answer: "Our budget is small."}}})
	require.NoError(t, err)
	assert.Contains(t, strings.Join(doc.Assumptions, " "), "text-completion service failed")

	recs, err := a.Recommend(ctx, workflow.RecommendInput{Context: doc, Objective: brief.Objective})
	require.NoError(t, err)
	assert.NotEmpty(t, recs.Items)

	client.RespondWith("   ")
	intro, err := a.Introduce(ctx, brief)
	require.NoError(t, err)
	assert.Equal(t, fallbackIntroduction(brief), intro)
}

func TestActivities_EndedAttemptIsReturned(t *testing.T) {
	client := mocks.NewMockLLMClient()
	client.OnComplete(func(ctx context.Context, _ llm.Request) (llm.Response, error) {
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	})
	a := newActivities(t, client)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := a.GenerateQuestion(ctx, workflow.QuestionInput{Brief: brief})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, workflow.ErrFatal)
}

func TestSynthesize(t *testing.T) {
	exchanges := []workflow.Exchange{
		{Question: "Tell me about the clinic", Answer: "We have six chairs. Our budget is tight this year."},
		{Question: "What matters most?", Answer: "The most important thing is filling Monday slots. I'm not sure why Mondays are bad."},
	}
	in := workflow.SynthesisInput{Brief: brief, Exchanges: exchanges}

	t.Run("model", func(t *testing.T) {
		client := mocks.NewMockLLMClient()
		client.RespondWith("```json\n{\"summary\":\"Six-chair clinic\",\"facts\":[\"six chairs\"],\"constraints\":[],\"priorities\":[\"Monday slots\"],\"assumptions\":[\"\"],\"uncertainties\":[\"why Mondays\"]}\n```")
		doc, err := newActivities(t, client).Synthesize(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "Six-chair clinic", doc.Summary)
		assert.Equal(t, []string{placeholder}, doc.Constraints)
		assert.Equal(t, []string{placeholder}, doc.Assumptions)
		assert.Equal(t, []string{"why Mondays"}, doc.Uncertainties)
	})

	t.Run("unparseable output falls back", func(t *testing.T) {
		client := mocks.NewMockLLMClient()
		client.RespondWith("Sorry, I cannot help with that.")
		doc, err := newActivities(t, client).Synthesize(context.Background(), in)
		require.NoError(t, err)
		assert.Contains(t, doc.Assumptions[0], "could not be parsed")
	})

	t.Run("fallback heuristics", func(t *testing.T) {
		doc, err := newActivities(t, nil).Synthesize(context.Background(), in)
		require.NoError(t, err)
		assert.Contains(t, doc.Summary, "2 exchanges")
		assert.Contains(t, doc.Facts, "We have six chairs")
		assert.Contains(t, doc.Constraints, "no new hires")
		assert.Contains(t, doc.Constraints, "Our budget is tight this year")
		assert.Contains(t, doc.Priorities, "The most important thing is filling Monday slots")
		assert.Contains(t, doc.Uncertainties, "I'm not sure why Mondays are bad")
		assert.Contains(t, doc.Assumptions[0], "synthesis was unavailable")
		assert.Equal(t, fallbackUncertainty, doc.Uncertainties[0])
	})
}

const recommendJSON = `Here you go:
{"recommendations": [
  {"title": "Automated reminders", "rationale": "Cheap. Works fast.", "next_steps": ["pick a vendor"], "priority": "HIGH",
   "pros": ["low cost"], "cons": ["patients | ignore texts"], "time_to_impact": "2 weeks", "resource_intensity": "Low", "confidence": "high"},
  {"title": "Overbooking", "rationale": "Fill gaps", "next_steps": [], "priority": "weird",
   "pros": [], "cons": ["crowding"], "approach": "Book 10% extra on Mondays", "confidence": "medium"},
  {"title": "Deposit policy", "rationale": "Skin in the game"},
  {"title": "Waitlist", "rationale": "Backfill"},
  {"title": "Fifth", "rationale": "dropped"}
]}`

func TestRecommend(t *testing.T) {
	doc := &workflow.ContextDocument{Summary: "s", Priorities: []string{"Monday slots"}, Constraints: []string{"no new hires"}, Uncertainties: []string{"why Mondays"}}

	t.Run("model", func(t *testing.T) {
		client := mocks.NewMockLLMClient()
		client.RespondWith(recommendJSON)
		set, err := newActivities(t, client).Recommend(context.Background(), workflow.RecommendInput{Context: doc, Objective: brief.Objective})
		require.NoError(t, err)
		require.Len(t, set.Items, 4)
		assert.Equal(t, "Automated reminders", set.Items[0].Title)
		assert.EqualValues(t, "high", set.Items[0].Priority)
		assert.EqualValues(t, "medium", set.Items[1].Priority)
		assert.Equal(t, "high", set.Items[0].Confidence)
		assert.Equal(t, "unknown", set.Items[2].Confidence)
		assert.Equal(t, []string{placeholder}, set.Items[1].Pros)
		assert.True(t, client.AssertCompleteCalledWith("Monday slots"))

		lines := strings.Split(set.ComparisonMarkdown, "\n")
		require.Len(t, lines, 2+len(Facets()))
		assert.Equal(t, "| Facet | Automated reminders | Overbooking | Deposit policy | Waitlist |", lines[0])
		assert.Equal(t, "|---|---|---|---|---|", lines[1])
		assert.Equal(t, "| Approach | Cheap. | Book 10% extra on Mondays | Skin in the game | Backfill |", lines[2])
		assert.Contains(t, lines[4], `patients \| ignore texts`)
		assert.True(t, strings.HasPrefix(lines[7], "| Confidence Level | high | medium | unknown |"))
	})

	t.Run("too few items falls back", func(t *testing.T) {
		client := mocks.NewMockLLMClient()
		client.RespondWith(`{"recommendations":[{"title":"Only one"}]}`)
		set, err := newActivities(t, client).Recommend(context.Background(), workflow.RecommendInput{Context: doc, Objective: "x"})
		require.NoError(t, err)
		assert.Len(t, set.Items, 3)
		for _, it := range set.Items {
			assert.Equal(t, "low", it.Confidence)
		}
	})

	t.Run("fallback derives from context", func(t *testing.T) {
		set, err := newActivities(t, nil).Recommend(context.Background(), workflow.RecommendInput{Context: doc, Objective: "x"})
		require.NoError(t, err)
		require.Len(t, set.Items, 3)
		assert.Contains(t, set.Items[0].NextSteps[0], "Monday slots")
		assert.Contains(t, set.Items[1].NextSteps[0], "no new hires")
		assert.Contains(t, set.Items[2].NextSteps[0], "why Mondays")
		assert.Contains(t, set.ComparisonMarkdown, "| Confidence Level | low | low | low |")
	})

	t.Run("missing context is fatal", func(t *testing.T) {
		_, err := newActivities(t, nil).Recommend(context.Background(), workflow.RecommendInput{Objective: "x"})
		assert.ErrorIs(t, err, workflow.ErrFatal)
	})
}

// answeringHost answers each wait from the machine's goroutine.
type answeringHost struct {
	m       *workflow.Machine
	answers []string
}

func (h *answeringHost) Await(ctx context.Context, _ time.Duration, cond func() bool) (bool, error) {
	if cond() {
		return false, nil
	}
	answer := "fine"
	if len(h.answers) > 0 {
		answer, h.answers = h.answers[0], h.answers[1:]
	}
	h.m.Respond(ctx, answer)
	return !cond(), nil
}

func (h *answeringHost) Execute(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (h *answeringHost) Notify() {}

func TestFallbackInterviewEndToEnd(t *testing.T) {
	a := newActivities(t, nil)
	host := &answeringHost{answers: []string{
		"I run the front desk at a six-chair clinic.",
		"Mondays are the worst. Our budget is limited.",
		"that's all",
		"looks good",
	}}
	m := workflow.New(workflow.Input{
		Domain:    brief.Domain,
		Objective: brief.Objective,
		Variant:   workflow.FivePhase,
	}, a, host)
	host.m = m

	st, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, workflow.PhaseComplete, st.Phase)
	assert.Len(t, st.Exchanges, 3)
	require.NotNil(t, st.ContextDocument)
	assert.Contains(t, st.ContextDocument.Constraints, "Our budget is limited")
	require.NotNil(t, st.Recommendations)
	assert.Len(t, st.Recommendations.Items, 3)
}
