// ABOUTME: Tests for Matrix message filtering and routing
// ABOUTME: Drives the bridge with synthetic events and fake handlers

package matrix

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-operator/internal/config"
	"github.com/2389/coven-operator/internal/relay"
)

const botID = id.UserID("@operator:example.org")

type fakeHandler struct {
	mu   sync.Mutex
	reqs []relay.Request
	err  error
}

func (f *fakeHandler) Handle(ctx context.Context, req relay.Request, t relay.Transport) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return t.Send(ctx, "agent says hi")
}

type fakeCommander struct{}

func (fakeCommander) Dispatch(_ context.Context, conversation, text string) (string, bool) {
	if text == "!status" {
		return "Provider: claude\nModel: opus", true
	}
	return "", false
}

func newTestBridge(t *testing.T, cfg config.MatrixConfig) (*Bridge, *fakeAPI, *fakeHandler) {
	t.Helper()
	api := &fakeAPI{}
	h := &fakeHandler{}
	b := newBridge(api, botID, Options{
		Config:   cfg,
		Handler:  h,
		Commands: fakeCommander{},
	})
	return b, api, h
}

func textEvent(room id.RoomID, sender id.UserID, body string, ts time.Time) *event.Event {
	return &event.Event{
		ID:        "$evt",
		RoomID:    room,
		Sender:    sender,
		Type:      event.EventMessage,
		Timestamp: ts.UnixMilli(),
		Content: event.Content{Parsed: &event.MessageEventContent{
			MsgType: event.MsgText,
			Body:    body,
		}},
	}
}

func TestBridge_Accept(t *testing.T) {
	b, _, _ := newTestBridge(t, config.MatrixConfig{
		AllowedRooms: []string{"!room:example.org"},
		AllowedUsers: []string{"@alice:example.org"},
	})
	now := time.Now().Add(time.Second)
	alice := id.UserID("@alice:example.org")

	text, ok := b.accept(textEvent(testRoom, alice, "  hello  ", now))
	assert.True(t, ok)
	assert.Equal(t, "hello", text)

	_, ok = b.accept(textEvent(testRoom, botID, "echo", now))
	assert.False(t, ok, "own messages are ignored")

	_, ok = b.accept(textEvent(testRoom, alice, "old", now.Add(-time.Hour)))
	assert.False(t, ok, "messages from before startup are ignored")

	_, ok = b.accept(textEvent("!other:example.org", alice, "hi", now))
	assert.False(t, ok, "room not allowed")

	_, ok = b.accept(textEvent(testRoom, "@mallory:example.org", "hi", now))
	assert.False(t, ok, "user not allowed")

	_, ok = b.accept(textEvent(testRoom, alice, "   ", now))
	assert.False(t, ok, "blank body")

	notice := textEvent(testRoom, alice, "note", now)
	notice.Content.Parsed.(*event.MessageEventContent).MsgType = event.MsgNotice
	_, ok = b.accept(notice)
	assert.False(t, ok, "only m.text is handled")

	edit := textEvent(testRoom, alice, "* fixed", now)
	edit.Content.Parsed.(*event.MessageEventContent).SetEdit("$orig")
	_, ok = b.accept(edit)
	assert.False(t, ok, "edits are not new prompts")
}

func TestBridge_AcceptOpenLists(t *testing.T) {
	b, _, _ := newTestBridge(t, config.MatrixConfig{})
	_, ok := b.accept(textEvent("!any:example.org", "@anyone:example.org", "hi", time.Now().Add(time.Second)))
	assert.True(t, ok)
}

func TestBridge_ProcessCommand(t *testing.T) {
	b, api, h := newTestBridge(t, config.MatrixConfig{TypingIndicator: true})

	b.process(context.Background(), testRoom, "@alice:example.org", "!status")

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Provider: claude\nModel: opus", msgs[0].Body)
	assert.Empty(t, h.reqs, "commands never reach the agent")
	assert.Empty(t, api.typingCalls(), "commands do not show typing")
}

func TestBridge_ProcessPrompt(t *testing.T) {
	b, api, h := newTestBridge(t, config.MatrixConfig{TypingIndicator: true})

	b.process(context.Background(), testRoom, "@alice:example.org", "fix the build")

	require.Len(t, h.reqs, 1)
	assert.Equal(t, relay.Request{
		Conversation: testRoom.String(),
		Sender:       "@alice:example.org",
		Prompt:       "fix the build",
	}, h.reqs[0])

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "agent says hi", msgs[0].Body)

	calls := api.typingCalls()
	require.NotEmpty(t, calls)
	assert.False(t, calls[len(calls)-1], "typing cleared after the request")
}

func TestBridge_ProcessHandlerErrors(t *testing.T) {
	for _, err := range []error{relay.ErrBusy, relay.ErrStopped, errors.New("boom")} {
		b, api, h := newTestBridge(t, config.MatrixConfig{})
		h.err = err
		b.process(context.Background(), testRoom, "@alice:example.org", "hi")
		assert.Len(t, h.reqs, 1)
		assert.Empty(t, api.messages())
	}
}

func TestBridge_TransportPerRoom(t *testing.T) {
	b, _, _ := newTestBridge(t, config.MatrixConfig{SendRate: 2, SendBurst: 3})

	a1 := b.transport(testRoom)
	a2 := b.transport(testRoom)
	other := b.transport("!other:example.org")

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, other)
	require.NotNil(t, a1.limiter)
	assert.Equal(t, 3, a1.limiter.Burst())
}

func TestBridge_TransportUnlimited(t *testing.T) {
	b, _, _ := newTestBridge(t, config.MatrixConfig{})
	assert.Nil(t, b.transport(testRoom).limiter)
}

func TestBridge_DeclinesInviteFromUnknownUser(t *testing.T) {
	b, _, _ := newTestBridge(t, config.MatrixConfig{AllowedUsers: []string{"@alice:example.org"}})
	stateKey := botID.String()
	evt := &event.Event{
		RoomID:   testRoom,
		Sender:   "@mallory:example.org",
		Type:     event.StateMember,
		StateKey: &stateKey,
		Content:  event.Content{Parsed: &event.MemberEventContent{Membership: event.MembershipInvite}},
	}
	// The bridge has no client in tests; reaching JoinRoomByID would panic.
	assert.NotPanics(t, func() { b.handleMember(context.Background(), evt) })
}

func TestBridge_HandleMessageDeduplicates(t *testing.T) {
	b, _, h := newTestBridge(t, config.MatrixConfig{})
	evt := textEvent(testRoom, "@alice:example.org", "hello", time.Now().Add(time.Second))

	b.handleMessage(context.Background(), evt)
	b.handleMessage(context.Background(), evt)
	b.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Len(t, h.reqs, 1)
}
