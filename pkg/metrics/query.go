package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// InterviewTotals aggregates scraped interview metrics across every process reporting
// to a Prometheus server.
type InterviewTotals struct {
	SessionsCreated   map[string]int64 `json:"sessions_created"`
	SessionsCompleted map[string]int64 `json:"sessions_completed"`
	WorkflowFailures  int64            `json:"workflow_failures"`
	LLMRequests       int64            `json:"llm_requests"`
	LLMErrors         int64            `json:"llm_errors"`
}

// querier is the subset of the Prometheus HTTP API used here.
type querier interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...v1.Option) (model.Value, v1.Warnings, error)
}

// QueryService reads aggregated metrics back from a Prometheus server.
type QueryService struct {
	queryAPI  querier
	namespace string
	now       func() time.Time
}

// NewQueryService creates a query service against prometheusURL.
func NewQueryService(prometheusURL, namespace string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return newQueryService(v1.NewAPI(client), namespace), nil
}

func newQueryService(q querier, namespace string) *QueryService {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &QueryService{queryAPI: q, namespace: namespace, now: time.Now}
}

// InterviewTotals queries session, workflow and LLM counters.
func (q *QueryService) InterviewTotals(ctx context.Context) (*InterviewTotals, error) {
	totals := &InterviewTotals{}

	var err error
	totals.SessionsCreated, err = q.sumBy(ctx, fmt.Sprintf(`sum by (interview_type) (%s_sessions_created_total)`, q.namespace), "interview_type")
	if err != nil {
		return nil, err
	}
	totals.SessionsCompleted, err = q.sumBy(ctx, fmt.Sprintf(`sum by (interview_type) (%s_sessions_completed_total)`, q.namespace), "interview_type")
	if err != nil {
		return nil, err
	}
	if totals.WorkflowFailures, err = q.scalar(ctx, fmt.Sprintf(`sum(%s_workflow_failures_total)`, q.namespace)); err != nil {
		return nil, err
	}
	if totals.LLMRequests, err = q.scalar(ctx, fmt.Sprintf(`sum(%s_llm_requests_total)`, q.namespace)); err != nil {
		return nil, err
	}
	if totals.LLMErrors, err = q.scalar(ctx, fmt.Sprintf(`sum(%s_llm_requests_total{status=%q})`, q.namespace, statusError)); err != nil {
		return nil, err
	}
	return totals, nil
}

func (q *QueryService) scalar(ctx context.Context, query string) (int64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, q.now())
	if err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", query, err)
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return int64(vector[0].Value), nil
	}
	return 0, nil
}

func (q *QueryService) sumBy(ctx context.Context, query, label string) (map[string]int64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, q.now())
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", query, err)
	}
	out := make(map[string]int64)
	if vector, ok := result.(model.Vector); ok {
		for _, sample := range vector {
			out[string(sample.Metric[model.LabelName(label)])] = int64(sample.Value)
		}
	}
	return out, nil
}
