package appointment

import (
	"reflect"
	"testing"
)

func TestAttemptHappyPath(t *testing.T) {
	a := newAttempt()
	for _, s := range []BookingState{StateCollecting, StateValidating, StatePersisting, StateCommitted, StateIdle} {
		if err := a.to(s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	want := []BookingState{StateIdle, StateCollecting, StateValidating, StatePersisting, StateCommitted, StateIdle}
	if !reflect.DeepEqual(a.Trace(), want) {
		t.Errorf("trace = %v", a.Trace())
	}
}

func TestAttemptRejectsShortcuts(t *testing.T) {
	tests := []struct {
		from []BookingState
		to   BookingState
	}{
		{nil, StatePersisting},
		{[]BookingState{StateCollecting}, StateCommitted},
		{[]BookingState{StateCollecting, StateValidating}, StateCommitted},
		{[]BookingState{StateCollecting, StateValidating, StatePersisting, StateCommitted}, StateCollecting},
	}
	for _, tt := range tests {
		a := newAttempt()
		for _, s := range tt.from {
			a.mustTo(s)
		}
		if err := a.to(tt.to); err == nil {
			t.Errorf("%s -> %s should be rejected", a.State(), tt.to)
		}
	}
}

func TestAttemptTraceIsCopy(t *testing.T) {
	a := newAttempt()
	tr := a.Trace()
	tr[0] = StateCommitted
	if a.Trace()[0] != StateIdle {
		t.Error("Trace must return a copy")
	}
}
