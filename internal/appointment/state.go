package appointment

import "fmt"

type BookingState string

const (
	StateIdle             BookingState = "idle"
	StateCollecting       BookingState = "collecting"
	StateValidating       BookingState = "validating"
	StatePersisting       BookingState = "persisting"
	StateCommitted        BookingState = "committed"
	StatePartialCommitted BookingState = "partial_committed"
)

// Persisting may repeat for every occurrence of a series, hence the self edge.
var bookingTransitions = map[BookingState][]BookingState{
	StateIdle:             {StateCollecting},
	StateCollecting:       {StateValidating, StateIdle},
	StateValidating:       {StateCollecting, StatePersisting},
	StatePersisting:       {StatePersisting, StateCollecting, StateCommitted, StatePartialCommitted},
	StateCommitted:        {StateIdle},
	StatePartialCommitted: {StateIdle},
}

// Attempt tracks one booking attempt through the coordinator states.
type Attempt struct {
	state BookingState
	trace []BookingState
}

func newAttempt() *Attempt {
	return &Attempt{state: StateIdle, trace: []BookingState{StateIdle}}
}

func (a *Attempt) State() BookingState {
	return a.state
}

// Trace returns every state the attempt went through, in order.
func (a *Attempt) Trace() []BookingState {
	out := make([]BookingState, len(a.trace))
	copy(out, a.trace)
	return out
}

func (a *Attempt) to(next BookingState) error {
	for _, allowed := range bookingTransitions[a.state] {
		if allowed == next {
			a.state = next
			a.trace = append(a.trace, next)
			return nil
		}
	}
	return fmt.Errorf("invalid booking transition %s -> %s", a.state, next)
}

// mustTo is used for transitions the coordinator drives itself; a failure is a
// programming error in the coordinator.
func (a *Attempt) mustTo(next BookingState) {
	if err := a.to(next); err != nil {
		panic(err)
	}
}
