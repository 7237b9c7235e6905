package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPruner_PruneNow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	for i, age := range []time.Duration{48 * time.Hour, 25 * time.Hour, time.Hour} {
		require.NoError(t, s.SaveEvent(ctx, &LedgerEvent{
			ID:              string(rune('a' + i)),
			RequestID:       "req",
			ConversationKey: "room",
			Direction:       EventDirectionInbound,
			Provider:        "claude",
			Model:           "opus",
			Timestamp:       now.Add(-age),
			Type:            EventTypeMessage,
			Text:            "hi",
		}))
	}

	p, err := NewPruner(s, 24*time.Hour, "@daily", nil)
	require.NoError(t, err)
	p.now = func() time.Time { return now }

	n, err := p.PruneNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	events, err := s.ListEventsByConversation(ctx, "room", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "c", events[0].ID)
}

func TestNewPruner_Validation(t *testing.T) {
	s := NewMockStore()

	_, err := NewPruner(s, 0, "@daily", nil)
	assert.Error(t, err)

	_, err = NewPruner(s, time.Hour, "every tuesday", nil)
	assert.Error(t, err)

	p, err := NewPruner(s, time.Hour, "0 3 * * *", nil)
	require.NoError(t, err)
	p.Start()
	p.Stop()
}
