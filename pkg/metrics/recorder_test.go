package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderWriteText(t *testing.T) {
	r := NewRecorder("")
	r.SessionCreated("general_discovery")
	r.SessionCreated("general_discovery")
	r.SessionCompleted("general_discovery")
	r.ResponseProcessed("general_discovery", true)
	r.ResponseProcessed("general_discovery", false)
	r.PhaseTransition("prime", "introduce")
	r.WorkflowFailed("interview", "response_timeout")
	r.ObserveLLMRequest("claude", 120, 40, true, "", 250*time.Millisecond)

	var sb strings.Builder
	require.NoError(t, r.WriteText(&sb))
	out := sb.String()

	assert.Contains(t, out, `discovery_sessions_created_total{interview_type="general_discovery"} 2`)
	assert.Contains(t, out, `discovery_sessions_completed_total{interview_type="general_discovery"} 1`)
	assert.Contains(t, out, `discovery_responses_total{interview_type="general_discovery",outcome="rejected"} 1`)
	assert.Contains(t, out, `discovery_workflow_phase_transitions_total{from="prime",to="introduce"} 1`)
	assert.Contains(t, out, `discovery_workflow_failures_total{phase="interview",reason="response_timeout"} 1`)
	assert.Contains(t, out, `discovery_llm_tokens_total{model="claude",type="prompt"} 120`)
	assert.Contains(t, out, "discovery_llm_request_duration_seconds_count")
}

func TestRecordersAreIndependent(t *testing.T) {
	a := NewRecorder("a")
	b := NewRecorder("a")
	a.SessionCreated("x")

	var sb strings.Builder
	require.NoError(t, b.WriteText(&sb))
	assert.NotContains(t, sb.String(), "sessions_created_total")
}

type fakeQuerier struct {
	results map[string]model.Value
	err     error
}

func (f *fakeQuerier) Query(_ context.Context, query string, _ time.Time, _ ...v1.Option) (model.Value, v1.Warnings, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	if v, ok := f.results[query]; ok {
		return v, nil, nil
	}
	return model.Vector{}, nil, nil
}

func TestInterviewTotals(t *testing.T) {
	q := newQueryService(&fakeQuerier{results: map[string]model.Value{
		`sum by (interview_type) (discovery_sessions_created_total)`: model.Vector{
			{Metric: model.Metric{"interview_type": "service_request"}, Value: 4},
			{Metric: model.Metric{"interview_type": "general_discovery"}, Value: 2},
		},
		`sum(discovery_llm_requests_total)`: model.Vector{{Value: 9}},
	}}, "")

	totals, err := q.InterviewTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), totals.SessionsCreated["service_request"])
	assert.Equal(t, int64(2), totals.SessionsCreated["general_discovery"])
	assert.Empty(t, totals.SessionsCompleted)
	assert.Equal(t, int64(9), totals.LLMRequests)
	assert.Equal(t, int64(0), totals.LLMErrors)
}

func TestInterviewTotalsPropagatesErrors(t *testing.T) {
	q := newQueryService(&fakeQuerier{err: errors.New("connection refused")}, "")
	_, err := q.InterviewTotals(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}
