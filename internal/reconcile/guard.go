package reconcile

import "fmt"

// Phase is the state of the reconciliation guard.
type Phase int

const (
	// Idle means no host mutation is in progress.
	Idle Phase = iota
	// Reconciling means the reconciler is mutating the host.
	Reconciling
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Reconciling:
		return "reconciling"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ReentrancyError is the panic value raised when the reconciler is entered
// while it is already reconciling.
type ReentrancyError struct {
	Op string
}

func (e *ReentrancyError) Error() string {
	return fmt.Sprintf("%s: re-entered while reconciling", e.Op)
}

// Guard is the Idle/Reconciling state machine that keeps host mutations
// exclusive and lets the change handler recognize its own feedback.
//
// Like the Store it is confined to the session's task loop.
type Guard struct {
	phase Phase
}

// Phase returns the current phase.
func (g *Guard) Phase() Phase {
	return g.phase
}

// Reconciling reports whether a host mutation is in progress.
func (g *Guard) Reconciling() bool {
	return g.phase == Reconciling
}

// Enter moves Idle -> Reconciling and returns the func that moves back.
// The release func must be deferred so that every exit path, panics
// included, returns the guard to Idle. Entering twice panics with a
// *ReentrancyError.
func (g *Guard) Enter(op string) (release func()) {
	if g.phase != Idle {
		panic(&ReentrancyError{Op: op})
	}
	g.phase = Reconciling
	return func() {
		g.phase = Idle
	}
}
