// ABOUTME: Store interface and ledger data types for coven-operator persistence
// ABOUTME: Describes one immutable ledger row per prompt or outcome

package store

import (
	"context"
	"time"
)

// EventDirection indicates whether an event went to the agent or came back from it
type EventDirection string

const (
	EventDirectionInbound  EventDirection = "inbound_to_agent"
	EventDirectionOutbound EventDirection = "outbound_from_agent"
)

// EventType categorizes the kind of event
type EventType string

const (
	EventTypeMessage EventType = "message"  // prompt or final response
	EventTypeError   EventType = "error"    // agent or orchestration error
	EventTypeStopped EventType = "stopped"  // request cancelled by the user
	EventTypeEmpty   EventType = "empty"    // agent finished without output
)

// LedgerEvent is one row of the request ledger.
type LedgerEvent struct {
	ID              string
	RequestID       string
	ConversationKey string // transport conversation id, e.g. "!room:server.com"
	Direction       EventDirection
	Author          string // sender for inbound rows, provider for outbound rows
	Provider        string
	Model           string
	Timestamp       time.Time
	Type            EventType
	Text            string
	ElapsedSeconds  int
}

// Store is the ledger persistence interface.
type Store interface {
	SaveEvent(ctx context.Context, event *LedgerEvent) error
	// ListEventsByConversation returns events oldest first.
	ListEventsByConversation(ctx context.Context, conversationKey string, limit int) ([]*LedgerEvent, error)
	// ListRecentEvents returns the newest limit events, oldest first.
	ListRecentEvents(ctx context.Context, conversationKey string, limit int) ([]*LedgerEvent, error)
	// PruneBefore deletes events older than cutoff and reports how many went.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 500 {
		return 500
	}
	return limit
}
