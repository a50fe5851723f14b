// Package templates renders the prompts sent to the text-completion service.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

//go:embed prompts/*.tpl.md
var templateFS embed.FS

// TranscriptEntry is one question/answer pair as shown to the model.
type TranscriptEntry struct {
	Question string
	Answer   string
}

// TemplateData holds the data for template rendering.
type TemplateData struct {
	Extra       map[string]any `json:"extra,omitempty"`
	Domain      string         `json:"domain"`
	Objective   string         `json:"objective"`
	Constraints string         `json:"constraints,omitempty"`
	// Interview transcript, possibly trimmed to the newest entries
	Transcript []TranscriptEntry `json:"transcript,omitempty"`
	Omitted    int               `json:"omitted,omitempty"` // entries dropped from the front of Transcript
	TurnCount  int               `json:"turn_count,omitempty"`
	MaxTurns   int               `json:"max_turns,omitempty"`
	// Situational is set while the interview is still learning about the user.
	Situational bool `json:"situational,omitempty"`
	// Latest exchange, for the completion check
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
	// Synthesized context as JSON, for recommendations
	ContextJSON string   `json:"context_json,omitempty"`
	Facets      []string `json:"facets,omitempty"`
}

// StateTemplate names an embedded prompt.
type StateTemplate string

const (
	// IntroduceTemplate opens a five-phase interview.
	IntroduceTemplate StateTemplate = "prompts/introduce.tpl.md"
	// QuestionTemplate asks for the next interview question.
	QuestionTemplate StateTemplate = "prompts/question.tpl.md"
	// CompletionCheckTemplate asks whether the interview has gathered enough.
	CompletionCheckTemplate StateTemplate = "prompts/completion_check.tpl.md"
	// SynthesizeTemplate turns the transcript into a context document.
	SynthesizeTemplate StateTemplate = "prompts/synthesize.tpl.md"
	// RecommendTemplate asks for the recommendation set.
	RecommendTemplate StateTemplate = "prompts/recommend.tpl.md"
)

// Renderer handles prompt rendering.
type Renderer struct {
	templates map[StateTemplate]*template.Template
}

// NewRenderer parses every embedded prompt.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[StateTemplate]*template.Template),
	}

	templateNames := []StateTemplate{
		IntroduceTemplate,
		QuestionTemplate,
		CompletionCheckTemplate,
		SynthesizeTemplate,
		RecommendTemplate,
	}

	for _, name := range templateNames {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}

		tmpl, err := template.New(string(name)).Funcs(template.FuncMap{
			"join": strings.Join,
			"add":  func(a, b int) int { return a + b },
		}).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		r.templates[name] = tmpl
	}

	return r, nil
}

// Render renders the specified template with the given data.
func (r *Renderer) Render(templateName StateTemplate, data *TemplateData) (string, error) {
	tmpl, exists := r.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// GetAvailableTemplates returns every loaded template name, sorted.
func (r *Renderer) GetAvailableTemplates() []StateTemplate {
	templates := make([]StateTemplate, 0, len(r.templates))
	for name := range r.templates {
		templates = append(templates, name)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i] < templates[j] })
	return templates
}
