// Package relay runs one user prompt through an agent subprocess and delivers
// the result to a chat transport.
//
// # Request lifecycle
//
// Orchestrator.Handle takes the conversation's lock without waiting. A
// second prompt for a conversation that is already busy is rejected with
// ErrBusy and a short notice; requests are never queued.
//
// With the lock held the orchestrator resolves the conversation's provider,
// model and stored session id, posts a live status indicator, and starts a
// ticker that rewrites the indicator every tick with the elapsed seconds and
// the latest status text from the agent:
//
//	[Claude/opus 12s] Reading main.go
//
// Agent events are consumed in order. Status events only update the
// indicator, response events are collected and aggregated with the
// provider's policy when the process exits, and the first error event is
// kept for display when no response arrives.
//
// # Outcomes
//
//   - Response: the indicator is removed and the aggregated text is sent in
//     chunks that fit the transport's message limit, each prefixed with
//     "[Display/model Ns]".
//   - No response: the first agent error is sent, or "(No response)".
//   - Stopped: the indicator is edited to "[Display/model] Stopped." and
//     Handle returns ErrStopped. This applies only when the stop actually
//     cut the agent short; a stop that lands after the agent exited leaves
//     its response to be delivered normally.
//   - Failure (spawn or read error): the indicator is edited to the error,
//     falling back to a fresh message when the edit fails.
//
// Every path stops the ticker, releases the lock and clears the running
// handle before Handle returns.
//
// # Transports
//
// Transport is the only coupling to a chat network. The Matrix bridge
// implements it per room; tests use an in-memory recorder.
package relay
