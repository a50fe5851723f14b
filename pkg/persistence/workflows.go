package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"discovery/pkg/workflow"
)

// WorkflowStore implements workflow.SnapshotStore over the adaptive_interviews table.
// The full state is kept as JSON; the other columns exist for ad-hoc queries.
type WorkflowStore struct {
	store *Store
}

var _ workflow.SnapshotStore = (*WorkflowStore)(nil)

// Save upserts the snapshot. completed_at is written once, when the run first
// reaches complete, and never changes afterwards.
func (ws *WorkflowStore) Save(ctx context.Context, s *workflow.State) error {
	state, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode workflow %s: %w", s.ID, err)
	}
	exchanges, err := json.Marshal(s.Exchanges)
	if err != nil {
		return fmt.Errorf("encode exchanges for %s: %w", s.ID, err)
	}
	contextDoc, err := optionalJSON(s.ContextDocument, s.ContextDocument == nil)
	if err != nil {
		return fmt.Errorf("encode context document for %s: %w", s.ID, err)
	}
	recs, err := optionalJSON(s.Recommendations, s.Recommendations == nil)
	if err != nil {
		return fmt.Errorf("encode recommendations for %s: %w", s.ID, err)
	}

	var completedAt any
	if s.Phase == workflow.PhaseComplete {
		t := s.UpdatedAt
		if s.CompletedAt != nil {
			t = *s.CompletedAt
		}
		completedAt = formatTime(t)
	}

	query := `
		INSERT INTO adaptive_interviews (id, variant, domain, objective, constraints, phase,
			exchanges, context_document, recommendations, state, error,
			created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phase = excluded.phase,
			exchanges = excluded.exchanges,
			context_document = excluded.context_document,
			recommendations = excluded.recommendations,
			state = excluded.state,
			error = excluded.error,
			updated_at = excluded.updated_at,
			completed_at = COALESCE(adaptive_interviews.completed_at, excluded.completed_at)`

	err = ws.store.exec(ctx, query,
		s.ID, string(s.Variant), s.Domain, s.Objective, s.Constraints, string(s.Phase),
		string(exchanges), contextDoc, recs, string(state), s.Error,
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt), completedAt)
	if err != nil {
		return fmt.Errorf("save workflow %s: %w", s.ID, err)
	}
	return nil
}

// Load returns the snapshot or (nil, nil) when the id is unknown. CompletedAt comes
// from the column, so the first completion time wins.
func (ws *WorkflowStore) Load(ctx context.Context, id string) (*workflow.State, error) {
	var (
		state       string
		completedAt sql.NullString
	)
	query := ws.store.rebind(`SELECT state, completed_at FROM adaptive_interviews WHERE id = ?`)
	err := ws.store.db.QueryRowContext(ctx, query, id).Scan(&state, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absent is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", id, err)
	}

	var s workflow.State
	if err := json.Unmarshal([]byte(state), &s); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", id, err)
	}
	if s.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", id, err)
	}
	if s.Exchanges == nil {
		s.Exchanges = []workflow.Exchange{}
	}
	return &s, nil
}

// WorkflowSummary is one row of List.
type WorkflowSummary struct {
	ID          string
	Domain      string
	Objective   string
	Phase       workflow.Phase
	Exchanges   int
	Error       string
	UpdatedAt   string
	CompletedAt *string
}

// List returns summaries of every stored run, most recently updated first.
func (ws *WorkflowStore) List(ctx context.Context) ([]WorkflowSummary, error) {
	rows, err := ws.store.db.QueryContext(ctx, `SELECT id, domain, objective, phase, exchanges, error,
		updated_at, completed_at FROM adaptive_interviews ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []WorkflowSummary
	for rows.Next() {
		var (
			sum         WorkflowSummary
			phase       string
			exchanges   string
			completedAt sql.NullString
		)
		if err := rows.Scan(&sum.ID, &sum.Domain, &sum.Objective, &phase, &exchanges,
			&sum.Error, &sum.UpdatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("list workflows: %w", err)
		}
		sum.Phase = workflow.Phase(phase)
		var ex []workflow.Exchange
		if err := json.Unmarshal([]byte(exchanges), &ex); err != nil {
			return nil, fmt.Errorf("decode exchanges for %s: %w", sum.ID, err)
		}
		sum.Exchanges = len(ex)
		if completedAt.Valid {
			v := completedAt.String
			sum.CompletedAt = &v
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return out, nil
}

func optionalJSON(v any, isNil bool) (any, error) {
	if isNil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap
	}
	return string(data), nil
}
