package queue

var transitions = map[State][]State{
	StatePending:      {StateClaimed},
	StateClaimed:      {StateProbing},
	StateProbing:      {StateEncoding, StateFailed},
	StateEncoding:     {StateFinalizing, StateRetryPending, StateFailed},
	StateRetryPending: {StateClaimed},
	StateFinalizing:   {StateSucceeded, StateFailed},
}

// cancelCheckpoints may also fail directly when the job was cancelled.
var cancelCheckpoints = map[State]struct{}{
	StateClaimed:  {},
	StateProbing:  {},
	StateEncoding: {},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func validateTransition(jobID int64, from, to State, payload Payload) error {
	if from.IsTerminal() {
		return &InvalidTransitionError{JobID: jobID, From: from, To: to, Reason: "terminal jobs are immutable"}
	}
	if CanTransition(from, to) {
		if to == StateFailed && payload.Error == nil {
			return &InvalidTransitionError{JobID: jobID, From: from, To: to, Reason: "failure requires an error"}
		}
		return nil
	}
	if to == StateFailed && payload.Error != nil && payload.Error.Reason == ReasonCancelled {
		if _, ok := cancelCheckpoints[from]; ok {
			return nil
		}
	}
	return &InvalidTransitionError{JobID: jobID, From: from, To: to, Reason: "not in transition table"}
}
