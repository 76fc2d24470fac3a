package core

import "time"

// RunRecord is the persisted history of one coordinator execution.
type RunRecord struct {
	ExecutionID string
	DocumentID  string
	Bucket      string
	Key         string

	// State is the coordinator state the run is in.
	State string
	// FailedStage is set once the run reaches the failed state.
	FailedStage StageName
	Error       string

	Transitions []Transition
	Attempts    []StageAttempts

	StartedAt time.Time
	UpdatedAt time.Time
}

// Transition records entry into a state.
type Transition struct {
	State string
	At    time.Time
}

// StageAttempts counts how many times a stage was invoked in one run.
type StageAttempts struct {
	Stage    StageName
	Attempts int
}

// AttemptsFor returns the recorded attempt count of stage.
func (r *RunRecord) AttemptsFor(stage StageName) int {
	for _, a := range r.Attempts {
		if a.Stage == stage {
			return a.Attempts
		}
	}
	return 0
}

// AddAttempt increments the attempt count of stage.
func (r *RunRecord) AddAttempt(stage StageName) {
	for i := range r.Attempts {
		if r.Attempts[i].Stage == stage {
			r.Attempts[i].Attempts++
			return
		}
	}
	r.Attempts = append(r.Attempts, StageAttempts{Stage: stage, Attempts: 1})
}
