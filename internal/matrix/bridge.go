// ABOUTME: Matrix bridge core for coven-operator
// ABOUTME: Syncs with the homeserver and routes room messages to commands or agents

package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-operator/internal/config"
	"github.com/2389/coven-operator/internal/relay"
)

// networkTimeout bounds joins and other one-off API calls.
const networkTimeout = 10 * time.Second

// Handler runs an agent request for a conversation.
type Handler interface {
	Handle(ctx context.Context, req relay.Request, t relay.Transport) error
}

// Commander answers chat commands.
type Commander interface {
	Dispatch(ctx context.Context, conversation, text string) (string, bool)
}

// Options configures a Bridge.
type Options struct {
	Config config.MatrixConfig
	// DataDir holds the encryption key database.
	DataDir  string
	Handler  Handler
	Commands Commander
	Logger   *slog.Logger
}

// Bridge connects Matrix rooms to the orchestrator.
type Bridge struct {
	cfg      config.MatrixConfig
	dataDir  string
	client   *mautrix.Client
	api      API
	userID   id.UserID
	handler  Handler
	commands Commander
	logger   *slog.Logger

	allowedRooms map[id.RoomID]bool
	allowedUsers map[id.UserID]bool
	// startedAt is in milliseconds; older events are history.
	startedAt int64
	seen      *seenEvents

	mu         sync.Mutex
	transports map[id.RoomID]*Transport

	ctx context.Context
	wg  sync.WaitGroup
}

// NewBridge creates a bridge with a Matrix client for opts.Config.
func NewBridge(opts Options) (*Bridge, error) {
	cfg := opts.Config
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	b := newBridge(client, id.UserID(cfg.UserID), opts)
	b.client = client
	return b, nil
}

func newBridge(api API, userID id.UserID, opts Options) *Bridge {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	b := &Bridge{
		cfg:          opts.Config,
		dataDir:      opts.DataDir,
		api:          api,
		userID:       userID,
		handler:      opts.Handler,
		commands:     opts.Commands,
		logger:       opts.Logger.With("component", "matrix"),
		allowedRooms: make(map[id.RoomID]bool),
		allowedUsers: make(map[id.UserID]bool),
		startedAt:    time.Now().UnixMilli(),
		seen:         newSeenEvents(seenTTL, seenMaxSize),
		transports:   make(map[id.RoomID]*Transport),
		ctx:          context.Background(),
	}
	for _, r := range opts.Config.AllowedRooms {
		b.allowedRooms[id.RoomID(r)] = true
	}
	for _, u := range opts.Config.AllowedUsers {
		b.allowedUsers[id.UserID(u)] = true
	}
	return b
}

// UserID returns the bot's Matrix user ID, known after Login.
func (b *Bridge) UserID() id.UserID { return b.userID }

// Login authenticates with the homeserver. With an access token it only
// resolves the device ID; otherwise it performs a password login.
func (b *Bridge) Login(ctx context.Context) error {
	if b.cfg.AccessToken != "" {
		resp, err := b.client.Whoami(ctx)
		if err != nil {
			return fmt.Errorf("checking access token: %w", err)
		}
		b.client.UserID = resp.UserID
		b.client.DeviceID = resp.DeviceID
		b.userID = resp.UserID
		b.logger.Info("using access token", "user_id", resp.UserID, "device_id", resp.DeviceID)
		return nil
	}

	resp, err := b.client.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: b.cfg.Username,
		},
		Password:                 b.cfg.Password,
		InitialDeviceDisplayName: "coven-operator",
		StoreCredentials:         true,
	})
	if err != nil {
		return fmt.Errorf("password login: %w", err)
	}
	b.userID = resp.UserID
	b.logger.Info("logged in", "user_id", resp.UserID, "device_id", resp.DeviceID)
	return nil
}

// Run syncs until ctx is cancelled, then waits for in-flight messages.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("starting matrix bridge",
		"homeserver", b.cfg.Homeserver,
		"user_id", b.userID,
		"allowed_rooms", len(b.allowedRooms),
		"allowed_users", len(b.allowedUsers),
	)
	if len(b.allowedUsers) == 0 {
		b.logger.Warn("allowed_users is empty; any user in a joined room can run agents")
	}

	var crypto *CryptoManager
	if b.cfg.RecoveryKey != "" {
		var err error
		crypto, err = SetupCrypto(ctx, b.client, b.cfg.RecoveryKey, b.dataDir, b.logger)
		if err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		defer crypto.Close()
	} else {
		b.logger.Info("encryption disabled (no recovery key)")
	}

	syncer, ok := b.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.client.Syncer)
	}
	syncer.OnSync(b.client.DontProcessOldEvents)
	syncer.OnEventType(event.EventMessage, b.handleMessage)
	syncer.OnEventType(event.StateMember, b.handleMember)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.ctx = runCtx
	b.startedAt = time.Now().UnixMilli()

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- b.client.SyncWithContext(runCtx)
	}()
	b.logger.Info("matrix bridge running")

	var err error
	select {
	case <-ctx.Done():
		b.logger.Info("shutting down matrix bridge")
	case err = <-syncErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("matrix sync failed: %w", err)
		} else {
			err = nil
		}
	}
	cancel()
	b.client.StopSync()
	b.wg.Wait()
	return err
}

// handleMessage filters a message event and processes it off the sync loop.
func (b *Bridge) handleMessage(_ context.Context, evt *event.Event) {
	text, ok := b.accept(evt)
	if !ok {
		return
	}
	if !b.seen.markNew(evt.ID) {
		b.logger.Debug("ignoring duplicate event", "event_id", evt.ID)
		return
	}
	b.logger.Info("received message",
		"room", evt.RoomID.String(),
		"sender", evt.Sender.String(),
		"content", relay.Truncate(text, 50),
	)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.process(b.ctx, evt.RoomID, evt.Sender, text)
	}()
}

// accept returns the message text when evt should be handled.
func (b *Bridge) accept(evt *event.Event) (string, bool) {
	if evt.Sender == b.userID {
		return "", false
	}
	if evt.Timestamp < b.startedAt {
		b.logger.Debug("ignoring event from before startup", "event_id", evt.ID)
		return "", false
	}
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return "", false
	}
	if content.RelatesTo != nil && content.RelatesTo.Type == event.RelReplace {
		return "", false
	}
	if !b.roomAllowed(evt.RoomID) {
		b.logger.Debug("ignoring message from non-allowed room", "room", evt.RoomID.String())
		return "", false
	}
	if !b.userAllowed(evt.Sender) {
		b.logger.Debug("ignoring message from non-allowed user", "sender", evt.Sender.String())
		return "", false
	}
	text := strings.TrimSpace(content.Body)
	return text, text != ""
}

// process runs a command or an agent request for one message.
func (b *Bridge) process(ctx context.Context, room id.RoomID, sender id.UserID, text string) {
	t := b.transport(room)
	conversation := room.String()

	if reply, handled := b.commands.Dispatch(ctx, conversation, text); handled {
		if err := t.Send(ctx, reply); err != nil {
			b.logger.Error("failed to send command reply", "room", conversation, "error", err)
		}
		return
	}

	if b.cfg.TypingIndicator {
		stop := t.Typing(ctx)
		defer stop()
	}

	err := b.handler.Handle(ctx, relay.Request{
		Conversation: conversation,
		Sender:       sender.String(),
		Prompt:       text,
	}, t)
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrBusy), errors.Is(err, relay.ErrStopped), errors.Is(err, context.Canceled):
		b.logger.Debug("request ended early", "room", conversation, "reason", err)
	default:
		b.logger.Error("request failed", "room", conversation, "error", err)
	}
}

// handleMember accepts invites for the bot from allowed users and rooms.
func (b *Bridge) handleMember(ctx context.Context, evt *event.Event) {
	content := evt.Content.AsMember()
	if content.Membership != event.MembershipInvite || id.UserID(evt.GetStateKey()) != b.userID {
		return
	}
	if !b.roomAllowed(evt.RoomID) || !b.userAllowed(evt.Sender) {
		b.logger.Info("declining invite", "room", evt.RoomID.String(), "inviter", evt.Sender.String())
		return
	}

	joinCtx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()
	if _, err := b.client.JoinRoomByID(joinCtx, evt.RoomID); err != nil {
		b.logger.Error("failed to join room", "room", evt.RoomID.String(), "error", err)
		return
	}
	b.logger.Info("joined room", "room", evt.RoomID.String(), "inviter", evt.Sender.String())
}

func (b *Bridge) roomAllowed(room id.RoomID) bool {
	return len(b.allowedRooms) == 0 || b.allowedRooms[room]
}

func (b *Bridge) userAllowed(user id.UserID) bool {
	return len(b.allowedUsers) == 0 || b.allowedUsers[user]
}

// transport returns the room's transport, sharing one limiter per room.
func (b *Bridge) transport(room id.RoomID) *Transport {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.transports[room]; ok {
		return t
	}
	var limiter *rate.Limiter
	if b.cfg.SendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.cfg.SendRate), max(b.cfg.SendBurst, 1))
	}
	t := NewTransport(b.api, room, limiter, b.logger)
	b.transports[room] = t
	return t
}
