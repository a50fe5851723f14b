package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"discovery/pkg/interview"
	"discovery/pkg/workflow"
)

const (
	minRecommendations = 2
	maxRecommendations = 4
)

// placeholder fills lists the model left empty.
const placeholder = "None stated in the interview"

var errNoJSON = errors.New("no JSON object found in output")

// extractJSON strips markdown fences and returns the outermost {...} span.
func extractJSON(text string) (string, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", errNoJSON
	}
	return text[start : end+1], nil
}

func parseContextDocument(text string) (*workflow.ContextDocument, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var doc workflow.ContextDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode context document: %w", err)
	}
	if strings.TrimSpace(doc.Summary) == "" {
		return nil, errors.New("context document has no summary")
	}
	doc.Facts = nonEmpty(doc.Facts)
	doc.Constraints = nonEmpty(doc.Constraints)
	doc.Priorities = nonEmpty(doc.Priorities)
	doc.Assumptions = nonEmpty(doc.Assumptions)
	doc.Uncertainties = nonEmpty(doc.Uncertainties)
	return &doc, nil
}

// nonEmpty drops blank entries and guarantees at least one.
func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return []string{placeholder}
	}
	return out
}

// candidate is a recommendation as the model returns it, including the comparison
// facets that are not part of interview.Recommendation.
type candidate struct {
	Title             string   `json:"title"`
	Rationale         string   `json:"rationale"`
	NextSteps         []string `json:"next_steps"`
	Priority          string   `json:"priority"`
	Pros              []string `json:"pros"`
	Cons              []string `json:"cons"`
	Approach          string   `json:"approach"`
	TimeToImpact      string   `json:"time_to_impact"`
	ResourceIntensity string   `json:"resource_intensity"`
	Confidence        string   `json:"confidence"`
}

func parseCandidates(text string) ([]candidate, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Recommendations []candidate `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}

	var out []candidate
	for _, c := range payload.Recommendations {
		if strings.TrimSpace(c.Title) == "" {
			continue
		}
		out = append(out, c)
	}
	if len(out) < minRecommendations {
		return nil, fmt.Errorf("expected at least %d recommendations, got %d", minRecommendations, len(out))
	}
	if len(out) > maxRecommendations {
		out = out[:maxRecommendations]
	}
	return out, nil
}

func buildSet(candidates []candidate) *workflow.RecommendationSet {
	set := &workflow.RecommendationSet{Items: make([]interview.Recommendation, 0, len(candidates))}
	for _, c := range candidates {
		set.Items = append(set.Items, interview.Recommendation{
			Title:      strings.TrimSpace(c.Title),
			Rationale:  strings.TrimSpace(c.Rationale),
			NextSteps:  nonEmpty(c.NextSteps),
			Priority:   normalizePriority(c.Priority),
			Pros:       nonEmpty(c.Pros),
			Cons:       nonEmpty(c.Cons),
			Confidence: normalizeLevel(c.Confidence),
		})
	}
	set.ComparisonMarkdown = comparisonTable(candidates)
	return set
}

func normalizePriority(p string) interview.Priority {
	switch interview.Priority(strings.ToLower(strings.TrimSpace(p))) {
	case interview.PriorityHigh:
		return interview.PriorityHigh
	case interview.PriorityLow:
		return interview.PriorityLow
	default:
		return interview.PriorityMedium
	}
}

func normalizeLevel(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "low":
		return "low"
	case "high":
		return "high"
	case "medium":
		return "medium"
	default:
		return "unknown"
	}
}

// Facets are the comparison rows of the recommendation table, in order.
func Facets() []string {
	return []string{"Approach", "Key Advantage", "Key Risk", "Time to Impact", "Resource Intensity", "Confidence Level"}
}

// facetValues returns c's cell for each of Facets.
func facetValues(c candidate) []string {
	return []string{
		firstOf(c.Approach, firstSentence(c.Rationale)),
		firstOf(first(c.Pros)),
		firstOf(first(c.Cons)),
		firstOf(c.TimeToImpact),
		firstOf(strings.ToLower(c.ResourceIntensity)),
		normalizeLevel(c.Confidence),
	}
}

// comparisonTable renders a markdown table with one column per recommendation.
func comparisonTable(candidates []candidate) string {
	var b strings.Builder
	b.WriteString("| Facet |")
	for _, c := range candidates {
		b.WriteString(" " + cell(c.Title) + " |")
	}
	b.WriteString("\n|---|")
	for range candidates {
		b.WriteString("---|")
	}

	values := make([][]string, len(candidates))
	for i, c := range candidates {
		values[i] = facetValues(c)
	}
	for row, facet := range Facets() {
		b.WriteString("\n| " + facet + " |")
		for i := range candidates {
			b.WriteString(" " + cell(values[i][row]) + " |")
		}
	}
	return b.String()
}

func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", "\\|")
}

func first(items []string) string {
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			return it
		}
	}
	return ""
}

// firstOf returns the first non-blank value, or "Not specified".
func firstOf(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return "Not specified"
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".!?"); i > 0 {
		return s[:i+1]
	}
	return s
}

func marshalIndent(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode context document: %w", err)
	}
	return string(data), nil
}
