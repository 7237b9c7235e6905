// ABOUTME: Per-room relay transport backed by the Matrix client-server API
// ABOUTME: Status notices are edited with m.replace and removed by redaction

package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-operator/internal/relay"
)

// typingTimeout is how long one typing notification lasts on the server.
const typingTimeout = 30 * time.Second

// sendTimeout bounds a single API call when the caller's context has no deadline.
const sendTimeout = 30 * time.Second

// API is the subset of *mautrix.Client the transport needs.
type API interface {
	SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON any, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error)
	RedactEvent(ctx context.Context, roomID id.RoomID, eventID id.EventID, extra ...mautrix.ReqRedact) (*mautrix.RespSendEvent, error)
	UserTyping(ctx context.Context, roomID id.RoomID, typing bool, timeout time.Duration) (*mautrix.RespTyping, error)
}

// Transport delivers relay output to one Matrix room.
type Transport struct {
	api     API
	room    id.RoomID
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ relay.Transport = (*Transport)(nil)

// NewTransport creates a transport for room. A nil limiter disables rate limiting.
func NewTransport(api API, room id.RoomID, limiter *rate.Limiter, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		api:     api,
		room:    room,
		limiter: limiter,
		logger:  logger.With("room", room.String()),
	}
}

// Send posts text as an m.text message.
func (t *Transport) Send(ctx context.Context, text string) error {
	_, err := t.send(ctx, textContent(event.MsgText, text))
	return err
}

// SendStatus posts the status indicator as an m.notice.
func (t *Transport) SendStatus(ctx context.Context, text string) (relay.StatusHandle, error) {
	eventID, err := t.send(ctx, &event.MessageEventContent{MsgType: event.MsgNotice, Body: text})
	if err != nil {
		return "", err
	}
	return relay.StatusHandle(eventID), nil
}

// EditStatus replaces the status notice's text.
func (t *Transport) EditStatus(ctx context.Context, h relay.StatusHandle, text string) error {
	if h == "" {
		return fmt.Errorf("edit status: empty handle")
	}
	content := &event.MessageEventContent{MsgType: event.MsgNotice, Body: text}
	content.SetEdit(id.EventID(h))
	_, err := t.send(ctx, content)
	return err
}

// DeleteStatus redacts the status notice.
func (t *Transport) DeleteStatus(ctx context.Context, h relay.StatusHandle) error {
	if h == "" {
		return nil
	}
	if err := t.wait(ctx); err != nil {
		return err
	}
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()
	if _, err := t.api.RedactEvent(ctx, t.room, id.EventID(h)); err != nil {
		return fmt.Errorf("redacting status: %w", err)
	}
	return nil
}

// Typing shows the typing indicator until the returned stop function is
// called, refreshing it before the server-side timeout expires.
func (t *Transport) Typing(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		refresh := time.NewTicker(typingTimeout * 5 / 6)
		defer refresh.Stop()
		for {
			t.setTyping(ctx, true)
			select {
			case <-ctx.Done():
				return
			case <-refresh.C:
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
		t.setTyping(context.Background(), false)
	}
}

func (t *Transport) setTyping(ctx context.Context, typing bool) {
	var timeout time.Duration
	if typing {
		timeout = typingTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := t.api.UserTyping(ctx, t.room, typing, timeout); err != nil {
		t.logger.Debug("failed to set typing indicator", "error", err)
	}
}

func (t *Transport) send(ctx context.Context, content *event.MessageEventContent) (id.EventID, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()
	resp, err := t.api.SendMessageEvent(ctx, t.room, event.EventMessage, content)
	if err != nil {
		return "", fmt.Errorf("sending message: %w", err)
	}
	return resp.EventID, nil
}

func (t *Transport) wait(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, sendTimeout)
}
