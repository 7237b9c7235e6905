// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows relay and command tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	events []*LedgerEvent
	// SaveErr, when set, is returned by SaveEvent.
	SaveErr error
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// SaveEvent stores a copy of the event.
func (m *MockStore) SaveEvent(ctx context.Context, event *LedgerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}

	// Make a copy to avoid external modification
	e := *event
	m.events = append(m.events, &e)
	return nil
}

// ListEventsByConversation returns events for a conversation, oldest first.
func (m *MockStore) ListEventsByConversation(ctx context.Context, conversationKey string, limit int) ([]*LedgerEvent, error) {
	events := m.byConversation(conversationKey)
	if limit = clampLimit(limit); len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// ListRecentEvents returns the newest events for a conversation, oldest first.
func (m *MockStore) ListRecentEvents(ctx context.Context, conversationKey string, limit int) ([]*LedgerEvent, error) {
	events := m.byConversation(conversationKey)
	if limit = clampLimit(limit); len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// PruneBefore removes events older than cutoff.
func (m *MockStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	var n int64
	for _, e := range m.events {
		if e.Timestamp.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return n, nil
}

// Events returns copies of every stored event in insertion order.
func (m *MockStore) Events() []LedgerEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LedgerEvent, len(m.events))
	for i, e := range m.events {
		out[i] = *e
	}
	return out
}

// Close is a no-op.
func (m *MockStore) Close() error { return nil }

func (m *MockStore) byConversation(key string) []*LedgerEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*LedgerEvent
	for _, e := range m.events {
		if e.ConversationKey == key {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
