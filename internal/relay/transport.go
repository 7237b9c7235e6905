// ABOUTME: Transport contract between the orchestrator and a chat front end
// ABOUTME: Plain sends plus a single editable status message per request

package relay

import "context"

// StatusHandle identifies a status message previously sent by SendStatus.
type StatusHandle string

// Transport delivers messages for one conversation.
type Transport interface {
	// Send posts a new message.
	Send(ctx context.Context, text string) error
	// SendStatus posts the live indicator and returns a handle to it.
	SendStatus(ctx context.Context, text string) (StatusHandle, error)
	// EditStatus replaces the indicator's text.
	EditStatus(ctx context.Context, h StatusHandle, text string) error
	// DeleteStatus removes the indicator.
	DeleteStatus(ctx context.Context, h StatusHandle) error
}
