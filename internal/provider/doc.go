// Package provider adapts command-line agent tools to a common event stream.
//
// # Overview
//
// Each supported agent CLI (claude, codex, gemini) has a Provider that knows
// how to build the subprocess command line for a prompt, how to recognise a
// structured output line, and how to classify a parsed line into a small set
// of normalized events:
//
//   - KindStatus: human-readable progress text ("Reading main.go...")
//   - KindResponse: a fragment of the final answer
//   - KindSession: a resumable session id reported by the agent
//   - KindError: an error the agent reported through its structured output
//
// Providers never leak their native JSON schema upward; everything above this
// package only sees Event values.
//
// # Registry
//
// A Registry maps provider names to implementations:
//
//	reg := provider.NewRegistry(map[string]provider.Options{
//	    "claude": {Path: "/usr/local/bin/claude"},
//	})
//	p, err := reg.Get("claude")
//
// # Aggregation
//
// Agents that emit one cumulative final block use AggregateLast ("last
// fragment wins"); agents that stream deltas use AggregateConcat. The default
// is per provider and can be overridden through Options.
package provider
