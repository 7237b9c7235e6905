// ABOUTME: Per-conversation runtime state: providers, models, sessions, locks, running handles
// ABOUTME: Mutations of persisted fields trigger a full snapshot save through the Store

package state

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FallbackModel is used when a provider has no configured models.
const FallbackModel = "default"

// Store persists snapshots of the durable runtime state.
type Store interface {
	Load() (*Snapshot, error)
	Save(snap *Snapshot) error
}

// Snapshot is the durable subset of runtime state. Model and session maps are
// keyed conversation -> provider -> value.
type Snapshot struct {
	ActiveProvider map[string]string            `json:"active_provider_by_chat"`
	ActiveModel    map[string]map[string]string `json:"active_model_by_chat_provider"`
	Sessions       map[string]map[string]string `json:"session_by_chat_provider"`
}

// NewSnapshot returns an empty snapshot with initialised maps.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		ActiveProvider: make(map[string]string),
		ActiveModel:    make(map[string]map[string]string),
		Sessions:       make(map[string]map[string]string),
	}
}

// Stopper terminates a running agent process.
type Stopper interface {
	Stop() error
}

// Running describes the in-flight request of a conversation.
type Running struct {
	RequestID string
	Provider  string
	StartedAt time.Time
	Cancel    context.CancelCauseFunc

	mu      sync.Mutex
	process Stopper
}

// Attach records the process serving this request so Stop can reach it.
func (r *Running) Attach(p Stopper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.process = p
}

// Process returns the attached process, if any.
func (r *Running) Process() Stopper {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.process
}

type key struct {
	conversation string
	provider     string
}

// Options configures a Runtime.
type Options struct {
	// DefaultProvider is returned for conversations that never chose one.
	DefaultProvider string
	// Models lists configured models per provider; the first is the default.
	Models map[string][]string
	// Store persists state; nil keeps everything in memory.
	Store  Store
	Logger *slog.Logger
}

// Runtime is the per-conversation state shared by the orchestrator and the
// command handlers. It is safe for concurrent use.
type Runtime struct {
	defaultProvider string
	models          map[string][]string
	store           Store
	logger          *slog.Logger

	mu             sync.Mutex
	activeProvider map[string]string
	activeModel    map[key]string
	sessions       map[key]string
	running        map[string]*Running
	locks          map[string]*sync.Mutex

	// saveMu serialises saves so the newest snapshot is always written last.
	saveMu sync.Mutex
}

// New creates an empty Runtime. Call Load to restore persisted state.
func New(opts Options) *Runtime {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	models := make(map[string][]string, len(opts.Models))
	for name, list := range opts.Models {
		models[name] = append([]string(nil), list...)
	}
	return &Runtime{
		defaultProvider: opts.DefaultProvider,
		models:          models,
		store:           opts.Store,
		logger:          opts.Logger.With("component", "state"),
		activeProvider:  make(map[string]string),
		activeModel:     make(map[key]string),
		sessions:        make(map[key]string),
		running:         make(map[string]*Running),
		locks:           make(map[string]*sync.Mutex),
	}
}

// Models returns the configured models for a provider.
func (r *Runtime) Models(provider string) []string {
	return append([]string(nil), r.models[provider]...)
}

// ActiveProvider returns the conversation's provider, or the default.
func (r *Runtime) ActiveProvider(conversation string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.activeProvider[conversation]; ok {
		return p
	}
	return r.defaultProvider
}

// ActiveModel returns the stored override when it is still configured for
// the provider, else the provider's first model, else FallbackModel.
func (r *Runtime) ActiveModel(conversation, provider string) string {
	r.mu.Lock()
	stored, ok := r.activeModel[key{conversation, provider}]
	r.mu.Unlock()

	models := r.models[provider]
	if ok {
		for _, m := range models {
			if m == stored {
				return stored
			}
		}
	}
	if len(models) > 0 {
		return models[0]
	}
	return FallbackModel
}

// SessionID returns the stored session id for (conversation, provider).
func (r *Runtime) SessionID(conversation, provider string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.sessions[key{conversation, provider}]
	return id, ok
}

// SetActiveProvider records the conversation's provider and persists.
func (r *Runtime) SetActiveProvider(conversation, provider string) {
	r.mu.Lock()
	r.activeProvider[conversation] = provider
	r.mu.Unlock()
	r.persist()
}

// SetActiveModel records a model override and persists.
func (r *Runtime) SetActiveModel(conversation, provider, model string) {
	r.mu.Lock()
	r.activeModel[key{conversation, provider}] = model
	r.mu.Unlock()
	r.persist()
}

// SetSessionID overwrites the session id for (conversation, provider) and
// persists immediately.
func (r *Runtime) SetSessionID(conversation, provider, sessionID string) {
	r.mu.Lock()
	r.sessions[key{conversation, provider}] = sessionID
	r.mu.Unlock()
	r.persist()
}

// ClearSessionID removes the session id and returns the previous value.
func (r *Runtime) ClearSessionID(conversation, provider string) (string, bool) {
	r.mu.Lock()
	k := key{conversation, provider}
	prev, ok := r.sessions[k]
	delete(r.sessions, k)
	r.mu.Unlock()
	r.persist()
	return prev, ok
}

// Lock returns the conversation's lock, creating it on first use.
func (r *Runtime) Lock(conversation string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[conversation]
	if !ok {
		l = &sync.Mutex{}
		r.locks[conversation] = l
	}
	return l
}

// SetRunning registers the in-flight request for a conversation.
func (r *Runtime) SetRunning(conversation string, run *Running) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[conversation] = run
}

// ClearRunning removes run if it is still the registered request.
func (r *Runtime) ClearRunning(conversation string, run *Running) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[conversation] == run {
		delete(r.running, conversation)
	}
}

// Running returns the in-flight request for a conversation, if any.
func (r *Runtime) Running(conversation string) (*Running, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.running[conversation]
	return run, ok
}

// Snapshot copies the durable state.
func (r *Runtime) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := NewSnapshot()
	for conv, p := range r.activeProvider {
		snap.ActiveProvider[conv] = p
	}
	for k, m := range r.activeModel {
		setNested(snap.ActiveModel, k, m)
	}
	for k, s := range r.sessions {
		setNested(snap.Sessions, k, s)
	}
	return snap
}

// Save writes the current snapshot to the store. Errors are logged and
// returned; in-memory state stays authoritative either way.
func (r *Runtime) Save() error {
	if r.store == nil {
		return nil
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	snap := r.Snapshot()
	if err := r.store.Save(snap); err != nil {
		r.logger.Error("failed to save state", "error", err)
		return err
	}
	r.logger.Debug("state saved",
		"providers", len(snap.ActiveProvider),
		"sessions", countNested(snap.Sessions),
	)
	return nil
}

// Load replaces in-memory durable state with the store's snapshot. Missing
// or malformed data leaves the runtime empty.
func (r *Runtime) Load() error {
	if r.store == nil {
		return nil
	}
	snap, err := r.store.Load()
	if err != nil {
		r.logger.Error("failed to load state, starting fresh", "error", err)
		return err
	}
	if snap == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for conv, p := range snap.ActiveProvider {
		r.activeProvider[conv] = p
	}
	for conv, byProvider := range snap.ActiveModel {
		for p, m := range byProvider {
			r.activeModel[key{conv, p}] = m
		}
	}
	for conv, byProvider := range snap.Sessions {
		for p, s := range byProvider {
			r.sessions[key{conv, p}] = s
		}
	}
	r.logger.Info("loaded state",
		"providers", len(r.activeProvider),
		"sessions", len(r.sessions),
		"model_overrides", len(r.activeModel),
	)
	return nil
}

func (r *Runtime) persist() {
	_ = r.Save()
}

func setNested(m map[string]map[string]string, k key, v string) {
	inner, ok := m[k.conversation]
	if !ok {
		inner = make(map[string]string)
		m[k.conversation] = inner
	}
	inner[k.provider] = v
}

func countNested(m map[string]map[string]string) int {
	n := 0
	for _, inner := range m {
		n += len(inner)
	}
	return n
}
