package coordinator

import (
	"errors"
	"fmt"

	"github.com/poiesic/docpipe/core"
)

// ErrIllegalTransition is returned when a run is moved to a state not
// reachable from its current one.
var ErrIllegalTransition = errors.New("illegal state transition")

// State is a run's position in the coordinator state machine.
type State string

const (
	StateIdle        State = "idle"
	StateTriggered   State = "triggered"
	StateExtracting  State = "extracting"
	StateEmbedding   State = "embedding"
	StateIndexing    State = "indexing"
	StateSummarizing State = "summarizing"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

var next = map[State]State{
	StateIdle:        StateTriggered,
	StateTriggered:   StateExtracting,
	StateExtracting:  StateEmbedding,
	StateEmbedding:   StateIndexing,
	StateIndexing:    StateSummarizing,
	StateSummarizing: StateCompleted,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[from] == to
}

// StateFor returns the state a run is in while stage executes.
func StateFor(stage core.StageName) State {
	switch stage {
	case core.StageExtraction:
		return StateExtracting
	case core.StageEmbeddings:
		return StateEmbedding
	case core.StageIndexing:
		return StateIndexing
	case core.StageSummary:
		return StateSummarizing
	}
	return ""
}

// Machine tracks the state of a single run.
type Machine struct {
	state       State
	failedStage core.StageName
}

// NewMachine returns a machine in the idle state.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

func (m *Machine) State() State {
	return m.state
}

// FailedStage returns the stage that failed, if the run is in the failed state.
func (m *Machine) FailedStage() core.StageName {
	return m.failedStage
}

// Transition moves the machine to to.
func (m *Machine) Transition(to State) error {
	if to == StateFailed {
		return fmt.Errorf("%w: use Fail to enter %s", ErrIllegalTransition, StateFailed)
	}
	if !CanTransition(m.state, to) {
		return fmt.Errorf("%w: %s → %s", ErrIllegalTransition, m.state, to)
	}
	m.state = to
	return nil
}

// Fail moves the machine to the failed state, recording the stage that
// failed. stage may be empty when the run failed outside a stage.
func (m *Machine) Fail(stage core.StageName) error {
	if !CanTransition(m.state, StateFailed) {
		return fmt.Errorf("%w: %s → %s", ErrIllegalTransition, m.state, StateFailed)
	}
	m.state = StateFailed
	m.failedStage = stage
	return nil
}
