package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	assert.Equal(t, []StateTemplate{
		CompletionCheckTemplate,
		IntroduceTemplate,
		QuestionTemplate,
		RecommendTemplate,
		SynthesizeTemplate,
	}, renderer.GetAvailableTemplates())

	data := &TemplateData{Domain: "retail", Objective: "grow online sales"}
	for _, name := range renderer.GetAvailableTemplates() {
		out, err := renderer.Render(name, data)
		require.NoError(t, err, name)
		assert.NotContains(t, out, "<no value>", name)
	}
}

func TestRenderQuestionTemplate(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	data := &TemplateData{
		Domain:    "retail",
		Objective: "grow online sales",
		Transcript: []TranscriptEntry{
			{Question: "What do you sell?", Answer: "Handmade ceramics"},
		},
		Omitted:     3,
		TurnCount:   4,
		MaxTurns:    20,
		Situational: true,
	}
	out, err := renderer.Render(QuestionTemplate, data)
	require.NoError(t, err)

	assert.Contains(t, out, "Q1: What do you sell?")
	assert.Contains(t, out, "A1: Handmade ceramics")
	assert.Contains(t, out, "(3 earlier exchanges omitted)")
	assert.Contains(t, out, "question 5 of at most 20")
	assert.Contains(t, out, "their own situation")
	assert.NotContains(t, out, "no exchanges yet")
}

func TestRenderRecommendTemplateListsFacets(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	out, err := renderer.Render(RecommendTemplate, &TemplateData{
		Objective:   "cut costs",
		ContextJSON: `{"summary":"x"}`,
		Facets:      []string{"Approach", "Key Risk"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, `{"summary":"x"}`)
	assert.Contains(t, out, "compared on: Approach, Key Risk.")
}

func TestRenderUnknownTemplate(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)
	_, err = renderer.Render("missing.tpl.md", &TemplateData{})
	assert.Error(t, err)
}
