// ABOUTME: Provider registry mapping names to implementations, plus shared base behaviour
// ABOUTME: Aggregation policy and CLI path are per-provider options from configuration

package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownProvider is returned when a provider name is not registered.
var ErrUnknownProvider = errors.New("unknown provider")

// Aggregation selects how response fragments become the final message.
type Aggregation string

const (
	// AggregateDefault keeps the provider's built-in policy.
	AggregateDefault Aggregation = ""
	// AggregateLast keeps only the last fragment.
	AggregateLast Aggregation = "last"
	// AggregateConcat joins all fragments in order.
	AggregateConcat Aggregation = "concat"
)

// ParseAggregation validates an aggregation name from configuration.
func ParseAggregation(s string) (Aggregation, error) {
	switch Aggregation(strings.ToLower(strings.TrimSpace(s))) {
	case AggregateDefault:
		return AggregateDefault, nil
	case AggregateLast:
		return AggregateLast, nil
	case AggregateConcat:
		return AggregateConcat, nil
	default:
		return "", fmt.Errorf("invalid aggregation %q (want last or concat)", s)
	}
}

// Options configures a single provider instance.
type Options struct {
	// Path is the CLI binary; defaults to the provider name.
	Path string
	// DisplayName overrides the capitalised provider name.
	DisplayName string
	// Aggregate overrides the provider's default aggregation policy.
	Aggregate Aggregation
}

// Names lists the built-in providers in a stable order.
var Names = []string{"claude", "codex", "gemini"}

// New creates a built-in provider by name.
func New(name string, opts Options) (Provider, error) {
	switch name {
	case "claude":
		return newClaude(opts), nil
	case "codex":
		return newCodex(opts), nil
	case "gemini":
		return newGemini(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
}

// Registry holds the configured providers.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from per-provider options. Names missing from
// opts are registered with default options so every built-in is available.
func NewRegistry(opts map[string]Options) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(Names))}
	for _, name := range Names {
		p, err := New(name, opts[name])
		if err != nil {
			return nil, err
		}
		r.providers[name] = p
	}
	for name := range opts {
		if _, ok := r.providers[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
	}
	return r, nil
}

// Register adds or replaces a provider. Intended for tests and extensions.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.providers[name]
	return ok
}

// Names returns the registered provider names, built-ins first.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	seen := make(map[string]bool, len(r.providers))
	for _, name := range Names {
		if _, ok := r.providers[name]; ok {
			names = append(names, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range r.providers {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// base carries the behaviour shared by all built-in providers.
type base struct {
	name        string
	path        string
	displayName string
	aggregate   Aggregation
}

func newBase(name string, opts Options, defaultAggregate Aggregation) base {
	b := base{
		name:        name,
		path:        opts.Path,
		displayName: opts.DisplayName,
		aggregate:   opts.Aggregate,
	}
	if b.path == "" {
		b.path = name
	}
	if b.displayName == "" {
		b.displayName = Capitalize(name)
	}
	if b.aggregate == AggregateDefault {
		b.aggregate = defaultAggregate
	}
	return b
}

func (b base) Name() string        { return b.name }
func (b base) DisplayName() string { return b.displayName }
func (b base) MergeStderr() bool   { return false }
func (b base) BufferLimit() int    { return 0 }

func (b base) ParseLine(line string) (Record, bool) {
	return parseJSONLine(line)
}

func (b base) Aggregate(parts []string) string {
	return AggregateWith(b.aggregate, parts)
}

func (b base) ClearSession(sessionID, _ string) string {
	if sessionID != "" {
		return "session cleared"
	}
	return "no session"
}

// AggregateWith applies an aggregation policy to response fragments.
func AggregateWith(policy Aggregation, parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	if policy == AggregateConcat {
		return strings.Join(parts, "")
	}
	return parts[len(parts)-1]
}

// Capitalize upper-cases the first letter of a provider name for display.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
