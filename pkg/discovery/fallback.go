package discovery

import (
	"fmt"
	"strings"

	"discovery/pkg/workflow"
)

// Fallback notes are attached to degraded output so consumers can tell it apart.
const (
	fallbackAssumption  = "Automated synthesis was unavailable (%s); this document was assembled from keyword matches over the transcript."
	fallbackUncertainty = "Facts and priorities below were not validated by a synthesis step and may be incomplete."
	fallbackRationale   = "Derived without the recommendation service from the synthesized context; treat as a starting point."
)

//nolint:gochecknoglobals // fixed keyword tables
var (
	situationalQuestions = []string{
		"Could you describe your role in {domain} and what a typical week looks like for you?",
		"What prompted you to focus on this objective now: {objective}?",
	}
	probingQuestions = []string{
		"What does success look like for \"{objective}\", and how would you measure it?",
		"What have you already tried, and what happened?",
		"What constraints do you have to work within (budget, time, people, rules)?",
		"Who else is affected by this, and what do they care about most?",
		"What is the biggest risk if nothing changes?",
		"Which part of the problem matters most to solve first, and why?",
		"What tools, data or processes do you rely on today?",
	}

	constraintKeywords  = []string{"budget", "deadline", "cannot", "can't", "must", "limit", "only", "regulat", "cost", "afford", "policy", "restrict"}
	priorityKeywords    = []string{"priority", "important", "most", "need", "goal", "focus", "urgent", "key", "want"}
	uncertaintyKeywords = []string{"not sure", "unsure", "maybe", "don't know", "do not know", "unclear", "probably", "might"}
)

func fallbackIntroduction(b workflow.Brief) string {
	return fmt.Sprintf("Hello! I'd like to learn about your work in %s so we can make progress on your objective: %s. "+
		"I'll ask a series of questions, one at a time; answer in as much detail as you like. "+
		"To start, could you tell me about your role and what your day-to-day looks like?",
		b.Domain, b.Objective)
}

// fallbackQuestion picks the first canned question not asked yet.
func fallbackQuestion(b workflow.Brief, exchanges []workflow.Exchange, situational bool) string {
	pool := probingQuestions
	if situational {
		pool = append(append([]string{}, situationalQuestions...), probingQuestions...)
	}
	asked := make(map[string]bool, len(exchanges))
	for _, e := range exchanges {
		asked[normalize(e.Question)] = true
	}
	fill := strings.NewReplacer("{domain}", b.Domain, "{objective}", b.Objective)
	for _, tmpl := range pool {
		q := fill.Replace(tmpl)
		if !asked[normalize(q)] {
			return q
		}
	}
	return fmt.Sprintf("Is there anything else about %s that we haven't covered yet? (%d)", b.Domain, len(exchanges)+1)
}

// fallbackContext builds a context document from keyword matches over the answers.
func fallbackContext(b workflow.Brief, exchanges []workflow.Exchange, reason string) *workflow.ContextDocument {
	var facts, constraints, priorities, uncertainties []string
	if c := strings.TrimSpace(b.Constraints); c != "" {
		constraints = append(constraints, c)
	}
	for _, e := range exchanges {
		for _, sentence := range sentences(e.Answer) {
			lower := strings.ToLower(sentence)
			switch {
			case containsAny(lower, uncertaintyKeywords):
				uncertainties = append(uncertainties, sentence)
			case containsAny(lower, constraintKeywords):
				constraints = append(constraints, sentence)
			case containsAny(lower, priorityKeywords):
				priorities = append(priorities, sentence)
			default:
				facts = append(facts, sentence)
			}
		}
	}

	return &workflow.ContextDocument{
		Summary: fmt.Sprintf("Discovery interview about %s with the objective: %s. %d exchanges were recorded.",
			b.Domain, b.Objective, len(exchanges)),
		Facts:         nonEmpty(facts),
		Constraints:   nonEmpty(constraints),
		Priorities:    nonEmpty(append(priorities, b.Objective)),
		Assumptions:   []string{fmt.Sprintf(fallbackAssumption, reason)},
		Uncertainties: append([]string{fallbackUncertainty}, uncertainties...),
	}
}

// fallbackRecommendations derives low-confidence recommendations from the context.
func fallbackRecommendations(doc *workflow.ContextDocument, objective string) *workflow.RecommendationSet {
	topPriority := firstOf(first(doc.Priorities), objective)
	topConstraint := firstOf(first(doc.Constraints))
	topUncertainty := firstOf(first(doc.Uncertainties))

	candidates := []candidate{
		{
			Title:             "Focus on the top priority",
			Rationale:         fallbackRationale,
			NextSteps:         []string{"Confirm the priority with stakeholders: " + topPriority, "Define one measurable outcome", "Plan a first small step"},
			Priority:          "high",
			Pros:              []string{"Directly targets what was said to matter most"},
			Cons:              []string{"May ignore constraints that surface later"},
			Approach:          "Address: " + topPriority,
			TimeToImpact:      "Weeks",
			ResourceIntensity: "medium",
			Confidence:        "low",
		},
		{
			Title:             "Work within the main constraint",
			Rationale:         fallbackRationale,
			NextSteps:         []string{"Quantify the constraint: " + topConstraint, "List options that respect it", "Pick the cheapest viable option"},
			Priority:          "medium",
			Pros:              []string{"Low risk of exceeding known limits"},
			Cons:              []string{"Slower progress on the objective"},
			Approach:          "Respect: " + topConstraint,
			TimeToImpact:      "Months",
			ResourceIntensity: "low",
			Confidence:        "low",
		},
		{
			Title:             "Resolve the open questions first",
			Rationale:         fallbackRationale,
			NextSteps:         []string{"Investigate: " + topUncertainty, "Gather missing data", "Revisit the recommendations"},
			Priority:          "medium",
			Pros:              []string{"Reduces the chance of solving the wrong problem"},
			Cons:              []string{"Delays visible results"},
			Approach:          "Clarify: " + topUncertainty,
			TimeToImpact:      "Days",
			ResourceIntensity: "low",
			Confidence:        "low",
		},
	}

	return buildSet(candidates)
}

// sentences splits text on terminal punctuation and newlines.
func sentences(text string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n' || r == ';'
	}) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
