// ABOUTME: Hooks the orchestrator calls so metrics stay out of the request path
// ABOUTME: The no-op observer is used when metrics are disabled

package relay

import "time"

// Outcome labels how a request ended.
type Outcome string

const (
	OutcomeResponse Outcome = "response"
	OutcomeError    Outcome = "error"
	OutcomeEmpty    Outcome = "empty"
	OutcomeStopped  Outcome = "stopped"
	OutcomeFailed   Outcome = "failed"
)

// Observer receives request lifecycle notifications.
type Observer interface {
	RequestStarted(provider string)
	RequestFinished(provider string, outcome Outcome, duration time.Duration)
	BusyRejected()
	SessionCaptured(provider string)
	ProcessExited(provider string, exitCode int)
}

type nopObserver struct{}

func (nopObserver) RequestStarted(string)                          {}
func (nopObserver) RequestFinished(string, Outcome, time.Duration) {}
func (nopObserver) BusyRejected()                                  {}
func (nopObserver) SessionCaptured(string)                         {}
func (nopObserver) ProcessExited(string, int)                      {}
