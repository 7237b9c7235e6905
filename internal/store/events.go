// ABOUTME: Ledger event persistence for prompts and request outcomes
// ABOUTME: Save, list per conversation and prune by age

package store

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// timestampLayout is fixed width so timestamps compare correctly as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const eventColumns = `event_id, request_id, conversation_key, direction, author, provider, model,
		       timestamp, type, text, elapsed_seconds`

// SaveEvent persists a ledger event to the database
func (s *SQLiteStore) SaveEvent(ctx context.Context, event *LedgerEvent) error {
	query := `
		INSERT INTO ledger_events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.RequestID,
		event.ConversationKey,
		string(event.Direction),
		event.Author,
		event.Provider,
		event.Model,
		event.Timestamp.UTC().Format(timestampLayout),
		string(event.Type),
		event.Text,
		event.ElapsedSeconds,
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	s.logger.Debug("saved ledger event",
		"event_id", event.ID,
		"request_id", event.RequestID,
		"conversation_key", event.ConversationKey,
		"type", event.Type,
	)
	return nil
}

// ListEventsByConversation retrieves events for a conversation key, ordered by timestamp ASC
func (s *SQLiteStore) ListEventsByConversation(ctx context.Context, conversationKey string, limit int) ([]*LedgerEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM ledger_events
		WHERE conversation_key = ?
		ORDER BY timestamp ASC, rowid ASC
		LIMIT ?
	`
	return s.queryEvents(ctx, query, conversationKey, clampLimit(limit))
}

// ListRecentEvents retrieves the newest events for a conversation, returned oldest first
func (s *SQLiteStore) ListRecentEvents(ctx context.Context, conversationKey string, limit int) ([]*LedgerEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM ledger_events
		WHERE conversation_key = ?
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`
	events, err := s.queryEvents(ctx, query, conversationKey, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	slices.Reverse(events)
	return events, nil
}

// PruneBefore deletes events with a timestamp before cutoff
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ledger_events WHERE timestamp < ?`,
		cutoff.UTC().Format(timestampLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned events: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned ledger events", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*LedgerEvent, error) {
	event := &LedgerEvent{}
	var timestampStr, direction, eventType string

	if err := row.Scan(
		&event.ID,
		&event.RequestID,
		&event.ConversationKey,
		&direction,
		&event.Author,
		&event.Provider,
		&event.Model,
		&timestampStr,
		&eventType,
		&event.Text,
		&event.ElapsedSeconds,
	); err != nil {
		return nil, err
	}

	event.Direction = EventDirection(direction)
	event.Type = EventType(eventType)
	ts, err := time.Parse(timestampLayout, timestampStr)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}
	event.Timestamp = ts
	return event, nil
}

// queryEvents is a helper that executes a query and returns events
func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...any) ([]*LedgerEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []*LedgerEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}

	return events, nil
}
