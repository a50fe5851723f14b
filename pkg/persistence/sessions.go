package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"discovery/pkg/interview"
	"discovery/pkg/session"
)

// SessionStore implements session.Storage over the interview_sessions table.
type SessionStore struct {
	store *Store
}

var _ session.Storage = (*SessionStore)(nil)

const sessionColumns = `id, user_id, interview_type, status, current_step, responses, context_data,
	created_at, updated_at, completed_at`

// Save upserts a session.
func (ss *SessionStore) Save(ctx context.Context, s *interview.Session) error {
	responses, err := json.Marshal(s.Responses)
	if err != nil {
		return fmt.Errorf("%w: encode responses for %s: %v", interview.ErrStorage, s.ID, err)
	}
	contextData, err := json.Marshal(s.ContextData)
	if err != nil {
		return fmt.Errorf("%w: encode context data for %s: %v", interview.ErrStorage, s.ID, err)
	}

	query := `
		INSERT INTO interview_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			interview_type = excluded.interview_type,
			status = excluded.status,
			current_step = excluded.current_step,
			responses = excluded.responses,
			context_data = excluded.context_data,
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at`

	err = ss.store.exec(ctx, query,
		s.ID, s.UserID, s.InterviewType, string(s.Status), s.CurrentStep,
		string(responses), string(contextData),
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt), formatTimePtr(s.CompletedAt))
	if err != nil {
		return fmt.Errorf("%w: save session %s: %v", interview.ErrStorage, s.ID, err)
	}
	return nil
}

// Load returns the session or (nil, nil) when the id is unknown.
func (ss *SessionStore) Load(ctx context.Context, id string) (*interview.Session, error) {
	query := ss.store.rebind(`SELECT ` + sessionColumns + ` FROM interview_sessions WHERE id = ?`)
	s, err := scanSession(ss.store.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absent is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load session %s: %v", interview.ErrStorage, id, err)
	}
	return s, nil
}

// List returns sessions matching f, newest first. Filters run in SQL; pagination
// applies after filtering.
func (ss *SessionStore) List(ctx context.Context, f session.Filter) ([]*interview.Session, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.InterviewType != "" {
		where = append(where, "interview_type = ?")
		args = append(args, f.InterviewType)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.CreatedAfter != nil {
		where = append(where, "created_at > ?")
		args = append(args, formatTime(*f.CreatedAfter))
	}
	if f.CreatedBefore != nil {
		where = append(where, "created_at < ?")
		args = append(args, formatTime(*f.CreatedBefore))
	}

	query := `SELECT ` + sessionColumns + ` FROM interview_sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	paginated := f.Limit > 0
	if paginated {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, max(f.Offset, 0))
	}

	rows, err := ss.store.db.QueryContext(ctx, ss.store.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", interview.ErrStorage, err)
	}
	defer func() { _ = rows.Close() }()

	out := []*interview.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: list sessions: %v", interview.ErrStorage, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", interview.ErrStorage, err)
	}
	if !paginated {
		out = f.Paginate(out)
	}
	return out, nil
}

// Delete removes a session; deleting an unknown id is not an error.
func (ss *SessionStore) Delete(ctx context.Context, id string) error {
	if err := ss.store.exec(ctx, `DELETE FROM interview_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: delete session %s: %v", interview.ErrStorage, id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*interview.Session, error) {
	var (
		s                              interview.Session
		status, responses, contextData string
		createdAt, updatedAt           string
		completedAt                    sql.NullString
	)
	err := row.Scan(&s.ID, &s.UserID, &s.InterviewType, &status, &s.CurrentStep,
		&responses, &contextData, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with ErrStorage
	}
	s.Status = interview.Status(status)

	if err := json.Unmarshal([]byte(responses), &s.Responses); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	if err := json.Unmarshal([]byte(contextData), &s.ContextData); err != nil {
		return nil, fmt.Errorf("decode context data: %w", err)
	}
	if s.Responses == nil {
		s.Responses = map[string]interview.ResponseData{}
	}
	if s.ContextData == nil {
		s.ContextData = map[string]any{}
	}

	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if s.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
