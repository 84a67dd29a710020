package queue

import "testing"

func TestTransitionTable(t *testing.T) {
	allowed := map[State][]State{
		StatePending:      {StateClaimed},
		StateClaimed:      {StateProbing},
		StateProbing:      {StateEncoding, StateFailed},
		StateEncoding:     {StateFinalizing, StateRetryPending, StateFailed},
		StateRetryPending: {StateClaimed},
		StateFinalizing:   {StateSucceeded, StateFailed},
	}
	for _, from := range allStates {
		for _, to := range allStates {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCancelCheckpointsMayFail(t *testing.T) {
	cancelled := Payload{Error: &JobError{Kind: OutcomePermanentFailure, Reason: ReasonCancelled}}
	for _, from := range []State{StateClaimed, StateProbing, StateEncoding} {
		if err := validateTransition(1, from, StateFailed, cancelled); err != nil {
			t.Fatalf("%s -> failed{cancelled}: %v", from, err)
		}
	}
	other := Payload{Error: &JobError{Kind: OutcomePermanentFailure, Reason: ReasonCorruptSource}}
	if err := validateTransition(1, StateClaimed, StateFailed, other); err == nil {
		t.Fatal("claimed -> failed should require cancellation")
	}
	if err := validateTransition(1, StateProbing, StateFailed, Payload{}); err == nil {
		t.Fatal("failure without error should be rejected")
	}
	if err := validateTransition(1, StateFailed, StatePending, Payload{}); err == nil {
		t.Fatal("terminal state should be immutable")
	}
}
