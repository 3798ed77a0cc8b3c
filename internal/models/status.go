package models

import "time"

type State string

const (
	StatePending   State = "pending"
	StateUploading State = "uploading"
	StateParsing   State = "parsing"
	StateAnalyzing State = "analyzing"
	StateCompleted State = "completed"
	StateError     State = "error"
)

// forward edges; every non-terminal state may additionally move to error
// and stay in place with a higher progress.
var transitions = map[State][]State{
	StatePending:   {StateUploading},
	StateUploading: {StateParsing},
	StateParsing:   {StateAnalyzing},
	StateAnalyzing: {StateCompleted},
	StateCompleted: {StateAnalyzing},
}

func (s State) Valid() bool {
	switch s {
	case StatePending, StateUploading, StateParsing, StateAnalyzing, StateCompleted, StateError:
		return true
	}
	return false
}

// Terminal reports whether a run ends in this state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// CanTransition is the pure transition table of the processing state machine.
func CanTransition(from, to State) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == StateError {
		return false
	}
	if from == to {
		return !from.Terminal()
	}
	if to == StateError {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StartsRun reports whether the edge begins a fresh processing run, which
// resets the monotonic progress constraint.
func StartsRun(from, to State) bool {
	return from == StateCompleted && to == StateAnalyzing
}

type ProcessingStatus struct {
	State     State     `bson:"state" json:"status"`
	Progress  int       `bson:"progress" json:"progress"`
	Message   string    `bson:"message" json:"message"`
	Error     string    `bson:"error,omitempty" json:"error,omitempty"`
	Run       int       `bson:"run" json:"-"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func NewPendingStatus(now time.Time) ProcessingStatus {
	return ProcessingStatus{State: StatePending, Progress: 0, Message: "Queued", UpdatedAt: now}
}
