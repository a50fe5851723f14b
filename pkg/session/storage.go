package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"discovery/pkg/interview"
)

// Filter selects sessions for ListSessions. Zero values match everything; Limit and
// Offset apply after filtering.
type Filter struct {
	UserID        string
	InterviewType string
	Status        interview.Status
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// Matches reports whether s satisfies the filter's predicates (not pagination).
func (f *Filter) Matches(s *interview.Session) bool {
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	if f.InterviewType != "" && s.InterviewType != f.InterviewType {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.CreatedAfter != nil && !s.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !s.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

// Paginate applies Offset and Limit to an already filtered, ordered slice.
func (f *Filter) Paginate(sessions []*interview.Session) []*interview.Session {
	if f.Offset > 0 {
		if f.Offset >= len(sessions) {
			return []*interview.Session{}
		}
		sessions = sessions[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(sessions) {
		sessions = sessions[:f.Limit]
	}
	return sessions
}

// Storage persists sessions. Load returns (nil, nil) when the id is unknown.
// Implementations wrap failures in interview.ErrStorage.
type Storage interface {
	Save(ctx context.Context, s *interview.Session) error
	Load(ctx context.Context, id string) (*interview.Session, error)
	List(ctx context.Context, f Filter) ([]*interview.Session, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStorage keeps sessions in process memory. Sessions are deep-copied through
// JSON on save so callers never share maps with the store; answers therefore come back
// in their JSON shapes (numbers as float64, lists as []any). List orders by CreatedAt
// descending, then by id.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemoryStorage creates an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sessions: make(map[string][]byte)}
}

// Save implements Storage.
func (m *MemoryStorage) Save(_ context.Context, s *interview.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: encode session %s: %v", interview.ErrStorage, s.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = data
	return nil
}

// Load implements Storage.
func (m *MemoryStorage) Load(_ context.Context, id string) (*interview.Session, error) {
	m.mu.RLock()
	data, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil //nolint:nilnil // absent is not an error
	}
	return decode(data)
}

// List implements Storage.
func (m *MemoryStorage) List(_ context.Context, f Filter) ([]*interview.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*interview.Session, 0, len(m.sessions))
	for _, data := range m.sessions {
		s, err := decode(data)
		if err != nil {
			return nil, err
		}
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return f.Paginate(out), nil
}

// Delete implements Storage.
func (m *MemoryStorage) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func decode(data []byte) (*interview.Session, error) {
	var s interview.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: decode session: %v", interview.ErrStorage, err)
	}
	if s.Responses == nil {
		s.Responses = map[string]interview.ResponseData{}
	}
	if s.ContextData == nil {
		s.ContextData = map[string]any{}
	}
	return &s, nil
}
