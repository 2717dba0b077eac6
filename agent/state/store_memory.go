package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps encoded records in process memory. Records are stored
// serialized, so a loaded session never aliases a saved one.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	updated map[string]time.Time
	opts    []SessionOption
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(opts ...SessionOption) *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte, 8),
		updated: make(map[string]time.Time, 8),
		opts:    opts,
	}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*Session, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, ErrInvalidSession
	}

	m.mu.RLock()
	raw, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	var rec SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session record: %w", err)
	}
	return RestoreSession(rec, m.opts...)
}

func (m *MemoryStore) Save(_ context.Context, sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(sess.ID) == "" {
		return ErrInvalidSession
	}
	if sess.UpdatedAt.IsZero() {
		sess.Touch(time.Now())
	}

	raw, err := json.Marshal(sess.Record())
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	m.mu.Lock()
	m.records[sess.ID] = raw
	m.updated[sess.ID] = sess.UpdatedAt
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return ErrInvalidSession
	}
	m.mu.Lock()
	delete(m.records, id)
	delete(m.updated, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}

	m.mu.RLock()
	ids := make([]string, 0, len(m.updated))
	for id := range m.updated {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := m.updated[ids[i]], m.updated[ids[j]]
		if ti.Equal(tj) {
			return ids[i] < ids[j]
		}
		return ti.After(tj)
	})
	m.mu.RUnlock()

	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}
