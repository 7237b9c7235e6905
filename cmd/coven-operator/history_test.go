// ABOUTME: Tests for the history command's recent and full-transcript views
// ABOUTME: Runs against the in-memory ledger so no SQLite file is needed

package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-operator/internal/store"
)

func seedLedger(t *testing.T, n int) *store.MockStore {
	t.Helper()
	s := store.NewMockStore()
	base := time.Now().Add(-time.Hour)
	for i := range n {
		require.NoError(t, s.SaveEvent(context.Background(), &store.LedgerEvent{
			ID:              fmt.Sprintf("e%d", i),
			ConversationKey: "!room:test",
			Direction:       store.EventDirectionInbound,
			Provider:        "claude",
			Model:           "opus",
			Timestamp:       base.Add(time.Duration(i) * time.Minute),
			Type:            store.EventTypeMessage,
			Text:            fmt.Sprintf("prompt %d", i),
		}))
	}
	return s
}

func TestWriteHistory_RecentWindow(t *testing.T) {
	s := seedLedger(t, 30)
	var buf bytes.Buffer

	require.NoError(t, writeHistory(context.Background(), &buf, s, "!room:test", 3, false))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "prompt 27"))
	assert.True(t, strings.HasSuffix(lines[2], "prompt 29"))
}

func TestWriteHistory_AllStartsAtFirstEntry(t *testing.T) {
	s := seedLedger(t, 30)
	var buf bytes.Buffer

	require.NoError(t, writeHistory(context.Background(), &buf, s, "!room:test", 3, true))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 30, "the limit flag does not apply to the full transcript")
	assert.True(t, strings.HasSuffix(lines[0], "prompt 0"))
	assert.True(t, strings.HasSuffix(lines[29], "prompt 29"))
}

func TestWriteHistory_Empty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, writeHistory(context.Background(), &buf, store.NewMockStore(), "!nobody:test", 20, true))
	assert.Equal(t, "No history yet.\n", buf.String())
}
