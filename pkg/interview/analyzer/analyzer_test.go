package analyzer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discovery/pkg/interview"
	"discovery/pkg/interview/engine"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) //nolint:gochecknoglobals

func completedSession(interviewType string, elapsed time.Duration, answers map[string]any) *interview.Session {
	done := start.Add(elapsed)
	s := &interview.Session{
		ID:            "s-1",
		InterviewType: interviewType,
		Status:        interview.StatusCompleted,
		Responses:     map[string]interview.ResponseData{},
		CreatedAt:     start,
		UpdatedAt:     done,
		CompletedAt:   &done,
	}
	step := 0
	for id, v := range answers {
		s.Responses[id] = interview.ResponseData{Response: v, Metadata: interview.ResponseMetadata{QuestionID: id, Step: step}}
		step++
	}
	return s
}

func TestGenerateAnalysisRequiresCompleted(t *testing.T) {
	a := New(interview.DefaultBank())
	s := completedSession(interview.TypeGeneralDiscovery, time.Minute, nil)
	s.Status = interview.StatusActive

	_, err := a.GenerateAnalysis(s)
	assert.True(t, errors.Is(err, interview.ErrIncompleteSession))

	s.Status = interview.StatusPaused
	_, err = a.GenerateAnalysis(s)
	assert.Error(t, err)
}

func TestCalculateScoreUnknownType(t *testing.T) {
	a := New(interview.DefaultBank())
	s := completedSession("unknown", 10*time.Minute, map[string]any{"x": "y"})
	assert.Equal(t, 0, a.CalculateScore(s))
	assert.Empty(t, a.ExtractInsights(s))
}

func TestCalculateScoreComponents(t *testing.T) {
	a := New(interview.DefaultBank())

	// 5/5 answered, all long strings, 10 minutes: 40 + 30 + 30.
	full := completedSession(interview.TypeGeneralDiscovery, 10*time.Minute, map[string]any{
		"primary_goal":       "Improve tenant retention across buildings",
		"experience_level":   "long enough answer for bonus",
		"current_challenges": "Slow maintenance responses and turnover",
		"timeline":           "Over the next two quarters of the year",
		"additional_notes":   "We recently acquired two new properties",
	})
	assert.Equal(t, 100, a.CalculateScore(full))

	// 2/5 short answers, 2 minutes:
	// completeness 16, quality (2+2)/(2*3)*30 = 20, time max(10, 30-3*4) = 18 -> 54.
	short := completedSession(interview.TypeGeneralDiscovery, 2*time.Minute, map[string]any{
		"primary_goal":     "Grow",
		"experience_level": "3",
	})
	assert.Equal(t, 54, a.CalculateScore(short))

	// Lingering: 25 minutes -> time max(10, 30-10*2) = 10.
	slow := completedSession(interview.TypeGeneralDiscovery, 25*time.Minute, map[string]any{
		"primary_goal":     "Grow",
		"experience_level": "3",
	})
	assert.Equal(t, 16+20+10, a.CalculateScore(slow))
}

func TestCalculateScoreDefaultsTimeWithoutTimestamps(t *testing.T) {
	a := New(interview.DefaultBank())
	s := completedSession(interview.TypeGeneralDiscovery, 0, nil)
	s.CompletedAt = nil
	// No responses: completeness 0, quality 0, time default 15.
	assert.Equal(t, 15, a.CalculateScore(s))
}

func TestCalculateScoreArrayBonus(t *testing.T) {
	a := New(interview.DefaultBank())
	s := completedSession(interview.TypeClientOnboarding, 10*time.Minute, map[string]any{
		"features_of_interest": []any{"Reporting", "Automation"},
	})
	// completeness 40/6, quality 3/3*30, time 30.
	assert.Equal(t, 67, a.CalculateScore(s))
}

func TestScoreAlwaysInRange(t *testing.T) {
	a := New(interview.DefaultBank())
	for _, elapsed := range []time.Duration{0, time.Second, 4 * time.Minute, 15 * time.Minute, 3 * time.Hour} {
		s := completedSession(interview.TypeFinancialQualification, elapsed, map[string]any{
			"employment_status": "Retired",
			"monthly_income":    "1200",
		})
		score := a.CalculateScore(s)
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, 100)
	}
}

func TestFinancialInsights(t *testing.T) {
	a := New(interview.DefaultBank())
	s := completedSession(interview.TypeFinancialQualification, 3*time.Minute, map[string]any{
		"employment_status": "Employed full-time",
		"monthly_income":    6500.0,
		"rental_history":    "This is my first time renting",
	})
	insights := a.ExtractInsights(s)
	assert.Equal(t, "Completed 3 of 8 questions", insights[0])
	assert.Equal(t, "Completed quickly, in under 5 minutes", insights[1])
	assert.Contains(t, insights, "Employment status: Employed full-time")
	assert.Contains(t, insights, "Strong monthly income ($6500)")
	assert.Contains(t, insights, "First-time renter; consider a guarantor or additional deposit")

	s = completedSession(interview.TypeFinancialQualification, 40*time.Minute, map[string]any{
		"monthly_income": "2500",
	})
	insights = a.ExtractInsights(s)
	assert.Equal(t, "Took more than 30 minutes to complete", insights[1])
	assert.Contains(t, insights, "Moderate monthly income ($2500)")
}

func TestServiceRequestPriority(t *testing.T) {
	a := New(interview.DefaultBank())

	urgent := completedSession(interview.TypeServiceRequest, 8*time.Minute, map[string]any{
		"service_category": "Plumbing",
		"urgency":          interview.UrgencyOptions[0],
	})
	res, err := a.GenerateAnalysis(urgent)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, interview.PriorityHigh, res.Recommendations[0].Priority)
	assert.Equal(t, DispatchAgent, res.Recommendations[0].AgentToExecute)
	assert.Contains(t, res.Insights, "Service category: Plumbing")

	routine := completedSession(interview.TypeServiceRequest, 8*time.Minute, map[string]any{
		"urgency": interview.UrgencyOptions[3],
	})
	res, err = a.GenerateAnalysis(routine)
	require.NoError(t, err)
	assert.Equal(t, interview.PriorityMedium, res.Recommendations[0].Priority)
}

func TestOnboardingAndGeneralInsights(t *testing.T) {
	a := New(interview.DefaultBank())
	onb := completedSession(interview.TypeClientOnboarding, 6*time.Minute, map[string]any{
		"acquisition_source": "Referral",
		"budget_range":       "$500-$2000",
	})
	insights := a.ExtractInsights(onb)
	assert.Contains(t, insights, "Acquired through a referral; likely a high-intent client")
	assert.Contains(t, insights, "Budget tier: professional")

	gen := completedSession(interview.TypeGeneralDiscovery, 6*time.Minute, map[string]any{
		"experience_level": "1",
		"primary_goal":     "Grow",
	})
	insights = a.ExtractInsights(gen)
	assert.Contains(t, insights, "Limited experience in this area; guided support recommended")
	assert.Contains(t, insights, "Goal description is brief; a follow-up conversation would clarify scope")
}

// Round trip: answer every question through the engine, then analyze.
func TestRoundTripThroughEngine(t *testing.T) {
	bank := interview.DefaultBank()
	now := start
	eng := engine.New(bank, engine.WithClock(func() time.Time {
		now = now.Add(90 * time.Second)
		return now
	}))
	a := New(bank)

	answers := map[string]any{
		"employment_status":        "Self-employed",
		"monthly_income":           "5400",
		"employer_name":            "Acme Renovations LLC",
		"employment_length_months": 18.0,
		"rental_history":           "Rented two apartments over six years",
		"credit_check_consent":     "yes",
		"move_in_date":             "2026-05-01",
		"household_size":           "2",
	}

	s := &interview.Session{
		ID:            "rt",
		InterviewType: interview.TypeFinancialQualification,
		Status:        interview.StatusActive,
		Responses:     map[string]interview.ResponseData{},
		CreatedAt:     start,
		UpdatedAt:     start,
	}
	for {
		q, err := eng.NextQuestion(s)
		require.NoError(t, err)
		if q == nil || s.Status == interview.StatusCompleted {
			break
		}
		res, err := eng.ProcessResponse(s, answers[q.ID])
		require.NoError(t, err)
		require.True(t, res.Success, "%s: %s", q.ID, res.Error)
		res.Updates.Apply(s)
	}

	require.Equal(t, interview.StatusCompleted, s.Status)
	res, err := a.GenerateAnalysis(s)
	require.NoError(t, err)
	assert.Equal(t, 8, res.ResponseCount)
	assert.Equal(t, 1.0, res.CompletionRate)
	assert.Equal(t, int64(12*time.Minute/time.Millisecond), res.CompletionTimeMs)
	assert.Equal(t, "Completed all 8 questions", res.Insights[0])
}
