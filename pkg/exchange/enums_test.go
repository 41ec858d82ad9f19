package exchange

import (
	"errors"
	"testing"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "Idle"},
		{StateSending, "Sending"},
		{StateAwaitingResponse, "AwaitingResponse"},
		{StateObserving, "Observing"},
		{StateResolved, "Resolved"},
		{StateClosed, "Closed"},
		{State(42), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
	if State(42).IsValid() || !StateClosed.IsValid() {
		t.Error("IsValid() mismatch")
	}
}

func TestObserveStateString(t *testing.T) {
	if ObserveNone.String() != "None" || ObserveActive.String() != "Active" || ObserveCancelled.String() != "Cancelled" {
		t.Error("ObserveState names mismatch")
	}
}

func TestErrorIs(t *testing.T) {
	cause := errors.New("boom")
	err := newError(UDPSocketError, cause)

	if !errors.Is(err, ErrUDPSocketError) {
		t.Error("errors.Is(UDPSocketError) = false")
	}
	if errors.Is(err, ErrNoResponseExpected) {
		t.Error("UDPSocketError matched ErrNoResponseExpected")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not unwrapped")
	}
	if err.Error() != "exchange: UDPSocketError: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if got := newError(NoResponseExpected, nil).Error(); got != "exchange: NoResponseExpected" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(newError(BodyTooLarge, nil), ErrBodyTooLarge) {
		t.Error("errors.Is(BodyTooLarge) = false")
	}
}
