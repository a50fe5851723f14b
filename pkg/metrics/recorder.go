// Package metrics records interview, workflow and LLM metrics with Prometheus.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "discovery"

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Recorder owns a dedicated registry so several recorders can coexist in one process
// (tests, embedded use).
type Recorder struct {
	registry *prometheus.Registry

	sessionsCreated   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	responsesTotal    *prometheus.CounterVec
	phaseTransitions  *prometheus.CounterVec
	workflowFailures  *prometheus.CounterVec
	llmRequests       *prometheus.CounterVec
	llmTokens         *prometheus.CounterVec
	llmDuration       *prometheus.HistogramVec
}

// NewRecorder creates a recorder under namespace (DefaultNamespace when empty).
func NewRecorder(namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		sessionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_created_total",
				Help:      "Step-based interview sessions created, by interview type",
			},
			[]string{"interview_type"},
		),
		sessionsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_completed_total",
				Help:      "Step-based interview sessions completed, by interview type",
			},
			[]string{"interview_type"},
		),
		responsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "responses_total",
				Help:      "Answers processed by the interview engine, by outcome",
			},
			[]string{"interview_type", "outcome"},
		),
		phaseTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_phase_transitions_total",
				Help:      "Adaptive interview phase transitions",
			},
			[]string{"from", "to"},
		),
		workflowFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_failures_total",
				Help:      "Adaptive interviews terminated by a fatal error, by phase",
			},
			[]string{"phase", "reason"},
		),
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Text completion requests by model and status",
			},
			[]string{"model", "status", "error_type"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Tokens used by text completion requests",
			},
			[]string{"model", "type"},
		),
		llmDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Duration of text completion requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"model"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// SessionCreated counts a new step-based session.
func (r *Recorder) SessionCreated(interviewType string) {
	r.sessionsCreated.WithLabelValues(interviewType).Inc()
}

// SessionCompleted counts a session reaching the completed status.
func (r *Recorder) SessionCompleted(interviewType string) {
	r.sessionsCompleted.WithLabelValues(interviewType).Inc()
}

// ResponseProcessed counts an accepted or rejected answer.
func (r *Recorder) ResponseProcessed(interviewType string, accepted bool) {
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	r.responsesTotal.WithLabelValues(interviewType, outcome).Inc()
}

// PhaseTransition counts an adaptive interview moving between phases.
func (r *Recorder) PhaseTransition(from, to string) {
	r.phaseTransitions.WithLabelValues(from, to).Inc()
}

// WorkflowFailed counts a fatal adaptive interview failure.
func (r *Recorder) WorkflowFailed(phase, reason string) {
	r.workflowFailures.WithLabelValues(phase, reason).Inc()
}

// ObserveLLMRequest records one completion request.
func (r *Recorder) ObserveLLMRequest(model string, promptTokens, completionTokens int, success bool, errorType string, duration time.Duration) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	r.llmRequests.WithLabelValues(model, status, errorType).Inc()
	if success {
		r.llmTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
		r.llmTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	r.llmDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// WriteText dumps every registered metric family in the Prometheus text format.
func (r *Recorder) WriteText(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
