package engine

import (
	"time"

	"github.com/HendryAvila/devflow/internal/project"
)

// Outcome of one phase call.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Transition describes one handled phase call, successful or not.
type Transition struct {
	ProjectID string
	Action    project.Phase
	From      project.Phase
	To        project.Phase
	Outcome   string
	Code      project.Code
	Message   string
	At        time.Time
}

// TransitionObserver is notified after every phase call. It's an optional
// dependency: the engine works fine with none registered.
//
// Observers are best-effort. They must not fail the call, so they report
// their own errors (typically by logging) and return nothing.
type TransitionObserver interface {
	OnTransition(Transition)
}

// TransitionObserverFunc adapts a function to TransitionObserver.
type TransitionObserverFunc func(Transition)

// OnTransition calls f(t).
func (f TransitionObserverFunc) OnTransition(t Transition) { f(t) }

// notifyObserver is a nil-safe helper called once per Handle.
func notifyObserver(obs TransitionObserver, t Transition) {
	if obs == nil {
		return
	}
	obs.OnTransition(t)
}
