// Package analyzer scores completed step-based interviews and derives insights and
// recommendations from their answers.
package analyzer

import (
	"fmt"
	"math"
	"strings"

	"discovery/pkg/interview"
	"discovery/pkg/interview/engine"
	"discovery/pkg/logx"
)

// Score component caps.
const (
	maxCompleteness = 40.0
	maxQuality      = 30.0
	maxTime         = 30.0
	defaultTime     = 15.0
)

const urgentInsightPrefix = "Urgent request"

// DispatchAgent executes service-request recommendations.
const DispatchAgent = "maintenance-dispatch-agent"

// Analyzer computes AnalysisResults.
type Analyzer struct {
	bank   *interview.Bank
	logger *logx.Logger
}

// New creates an analyzer resolving archetypes through bank.
func New(bank *interview.Bank) *Analyzer {
	return &Analyzer{bank: bank, logger: logx.NewLogger("analyzer")}
}

// GenerateAnalysis scores a completed session. Sessions that are not completed fail
// with interview.ErrIncompleteSession.
func (a *Analyzer) GenerateAnalysis(s *interview.Session) (*interview.AnalysisResult, error) {
	if s.Status != interview.StatusCompleted {
		return nil, fmt.Errorf("%w: session %s has status %s", interview.ErrIncompleteSession, s.ID, s.Status)
	}

	insights := a.ExtractInsights(s)
	result := &interview.AnalysisResult{
		SessionID:        s.ID,
		InterviewType:    s.InterviewType,
		CompletionTimeMs: completionTimeMs(s),
		ResponseCount:    len(s.Responses),
		CompletionRate:   1.0,
		Insights:         insights,
		Score:            a.CalculateScore(s),
		Recommendations:  a.generateRecommendations(s, insights),
	}
	a.logger.Info("analyzed session %s (%s): score=%d responses=%d",
		s.ID, s.InterviewType, result.Score, result.ResponseCount)
	return result, nil
}

func completionTimeMs(s *interview.Session) int64 {
	if s.CompletedAt == nil || s.CreatedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.CreatedAt).Milliseconds()
}

// CalculateScore returns a 0-100 score: completeness (40), answer quality (30) and
// pacing (30). Unknown archetypes score 0.
func (a *Analyzer) CalculateScore(s *interview.Session) int {
	def, err := a.bank.Get(s.InterviewType)
	if err != nil {
		return 0
	}

	total := completenessScore(len(s.Responses), def.MaxSteps) + qualityScore(s) + timeScore(s)
	score := int(math.Round(total))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func completenessScore(count, maxSteps int) float64 {
	if maxSteps <= 0 {
		return 0
	}
	return math.Min(float64(count)/float64(maxSteps)*maxCompleteness, maxCompleteness)
}

func qualityScore(s *interview.Session) float64 {
	if len(s.Responses) == 0 {
		return 0
	}
	var points float64
	for _, r := range s.Responses {
		if engine.IsEmpty(r.Response) {
			continue
		}
		points += 2
		switch v := r.Response.(type) {
		case string:
			if len(v) > 20 {
				points++
			}
		default:
			if items, ok := engine.ToStringList(v); ok && len(items) > 1 {
				points++
			}
		}
	}
	return math.Min(points/float64(len(s.Responses)*3)*maxQuality, maxQuality)
}

func timeScore(s *interview.Session) float64 {
	if s.CompletedAt == nil || s.CreatedAt.IsZero() {
		return defaultTime
	}
	minutes := s.CompletedAt.Sub(s.CreatedAt).Minutes()
	switch {
	case minutes < 5:
		// Rushing is penalized more steeply than lingering.
		return math.Max(10, maxTime-(5-minutes)*4)
	case minutes > 15:
		return math.Max(10, maxTime-(minutes-15)*2)
	default:
		return maxTime
	}
}

// ExtractInsights returns human-readable observations: completeness, pace, then
// archetype-specific findings. Unknown archetypes yield no insights.
func (a *Analyzer) ExtractInsights(s *interview.Session) []string {
	def, err := a.bank.Get(s.InterviewType)
	if err != nil {
		return []string{}
	}

	insights := make([]string, 0, 6)
	count := len(s.Responses)
	if count >= def.MaxSteps {
		insights = append(insights, fmt.Sprintf("Completed all %d questions", def.MaxSteps))
	} else {
		insights = append(insights, fmt.Sprintf("Completed %d of %d questions", count, def.MaxSteps))
	}
	insights = append(insights, paceInsight(s))

	switch s.InterviewType {
	case interview.TypeFinancialQualification:
		insights = append(insights, financialInsights(s)...)
	case interview.TypeServiceRequest:
		insights = append(insights, serviceInsights(s)...)
	case interview.TypeClientOnboarding:
		insights = append(insights, onboardingInsights(s)...)
	case interview.TypeGeneralDiscovery:
		insights = append(insights, generalInsights(s)...)
	}
	return insights
}

func paceInsight(s *interview.Session) string {
	if s.CompletedAt == nil || s.CreatedAt.IsZero() {
		return "Completion time not recorded"
	}
	minutes := s.CompletedAt.Sub(s.CreatedAt).Minutes()
	switch {
	case minutes < 5:
		return "Completed quickly, in under 5 minutes"
	case minutes > 30:
		return "Took more than 30 minutes to complete"
	default:
		return fmt.Sprintf("Completed at a steady pace (%.0f minutes)", minutes)
	}
}

func stringAnswer(s *interview.Session, id string) (string, bool) {
	r, ok := s.Responses[id]
	if !ok {
		return "", false
	}
	v, ok := r.Response.(string)
	return strings.TrimSpace(v), ok
}

func numberAnswer(s *interview.Session, id string) (float64, bool) {
	r, ok := s.Responses[id]
	if !ok {
		return 0, false
	}
	return engine.ToNumber(r.Response)
}

func financialInsights(s *interview.Session) []string {
	var out []string
	if status, ok := stringAnswer(s, "employment_status"); ok {
		if status == "Unemployed" {
			out = append(out, "Applicant is currently unemployed; additional income verification needed")
		} else {
			out = append(out, fmt.Sprintf("Employment status: %s", status))
		}
	}
	if income, ok := numberAnswer(s, "monthly_income"); ok {
		switch {
		case income >= 5000:
			out = append(out, fmt.Sprintf("Strong monthly income ($%.0f)", income))
		case income >= 2000:
			out = append(out, fmt.Sprintf("Moderate monthly income ($%.0f)", income))
		default:
			out = append(out, fmt.Sprintf("Monthly income ($%.0f) is below the typical qualification threshold", income))
		}
	}
	if history, ok := stringAnswer(s, "rental_history"); ok {
		lower := strings.ToLower(history)
		if strings.Contains(lower, "no") || strings.Contains(lower, "first time") {
			out = append(out, "First-time renter; consider a guarantor or additional deposit")
		}
	}
	return out
}

func serviceInsights(s *interview.Session) []string {
	var out []string
	if urgency, ok := stringAnswer(s, "urgency"); ok {
		if strings.HasPrefix(urgency, "Emergency") || strings.HasPrefix(urgency, "Urgent") {
			out = append(out, fmt.Sprintf("%s: %s", urgentInsightPrefix, urgency))
		} else {
			out = append(out, fmt.Sprintf("Scheduling window: %s", urgency))
		}
	}
	if category, ok := stringAnswer(s, "service_category"); ok {
		out = append(out, fmt.Sprintf("Service category: %s", category))
	}
	if _, ok := s.Responses["photos"]; ok {
		out = append(out, "Photos provided for remote triage")
	}
	return out
}

func onboardingInsights(s *interview.Session) []string {
	var out []string
	if source, ok := stringAnswer(s, "acquisition_source"); ok {
		if source == "Referral" {
			out = append(out, "Acquired through a referral; likely a high-intent client")
		} else {
			out = append(out, fmt.Sprintf("Acquisition source: %s", source))
		}
	}
	if budget, ok := stringAnswer(s, "budget_range"); ok {
		out = append(out, fmt.Sprintf("Budget tier: %s", budgetTier(budget)))
	}
	return out
}

func budgetTier(budget string) string {
	switch budget {
	case "Under $100":
		return "starter"
	case "$100-$500":
		return "growth"
	case "$500-$2000":
		return "professional"
	case "Over $2000":
		return "enterprise"
	default:
		return "unspecified"
	}
}

func generalInsights(s *interview.Session) []string {
	var out []string
	if level, ok := numberAnswer(s, "experience_level"); ok {
		switch {
		case level <= 2:
			out = append(out, "Limited experience in this area; guided support recommended")
		case level >= 4:
			out = append(out, "Experienced in this area; can move quickly to specifics")
		default:
			out = append(out, "Moderate experience in this area")
		}
	}
	if goal, ok := stringAnswer(s, "primary_goal"); ok {
		switch {
		case len(goal) > 100:
			out = append(out, "Provided a detailed description of their goal")
		case len(goal) < 20:
			out = append(out, "Goal description is brief; a follow-up conversation would clarify scope")
		}
	}
	return out
}

func hasUrgentInsight(insights []string) bool {
	for _, insight := range insights {
		if strings.HasPrefix(insight, urgentInsightPrefix) {
			return true
		}
	}
	return false
}

// generateRecommendations returns exactly one archetype-tailored recommendation.
func (a *Analyzer) generateRecommendations(s *interview.Session, insights []string) []interview.Recommendation {
	switch s.InterviewType {
	case interview.TypeFinancialQualification:
		return []interview.Recommendation{{
			Title:     "Proceed to application review",
			Rationale: "The applicant has provided the employment, income and history details needed for a qualification decision.",
			NextSteps: []string{
				"Verify income with recent pay stubs or bank statements",
				"Run the consented credit check",
				"Confirm availability for the requested move-in date",
			},
			Priority: interview.PriorityMedium,
		}}
	case interview.TypeServiceRequest:
		priority := interview.PriorityMedium
		if hasUrgentInsight(insights) {
			priority = interview.PriorityHigh
		}
		return []interview.Recommendation{{
			Title:     "Dispatch a maintenance technician",
			Rationale: "The request contains the category, location and access details needed to schedule a visit.",
			NextSteps: []string{
				"Assign a technician matching the service category",
				"Confirm the visit window with the resident",
				"Record the resolution once the work is complete",
			},
			Priority:       priority,
			AgentToExecute: DispatchAgent,
		}}
	case interview.TypeClientOnboarding:
		return []interview.Recommendation{{
			Title:     "Start the onboarding plan",
			Rationale: "The client's profile, interests and budget are known, so an onboarding plan can be tailored.",
			NextSteps: []string{
				"Assign an onboarding specialist",
				"Prepare a walkthrough of the selected features",
				"Propose a plan that fits the stated budget tier",
			},
			Priority: interview.PriorityMedium,
		}}
	default:
		return []interview.Recommendation{{
			Title:     "Schedule a follow-up discovery session",
			Rationale: "The goals, experience and constraints gathered here are enough to plan a focused next conversation.",
			NextSteps: []string{
				"Summarize the stated goal and challenges",
				"Identify resources suited to the experience level",
				"Agree on milestones that fit the timeline",
			},
			Priority: interview.PriorityMedium,
		}}
	}
}
