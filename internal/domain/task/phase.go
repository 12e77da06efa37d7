package task

import "fmt"

// Phase is the engine-internal run state machine.
//
//	Planning → Acting → Observing → Reflecting → Acting → ...
//	any non-terminal → Complete | Failed | Cancelled | WaitingForHelp
type Phase string

const (
	PhasePlanning       Phase = "planning"
	PhaseActing         Phase = "acting"
	PhaseObserving      Phase = "observing"
	PhaseReflecting     Phase = "reflecting"
	PhaseComplete       Phase = "complete"
	PhaseFailed         Phase = "failed"
	PhaseCancelled      Phase = "cancelled"
	PhaseWaitingForHelp Phase = "waiting_for_help"
)

// Terminal reports whether no further transitions are allowed from p.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseComplete, PhaseFailed, PhaseCancelled, PhaseWaitingForHelp:
		return true
	default:
		return false
	}
}

// Status maps a terminal phase onto the task status it implies.
func (p Phase) Status() Status {
	switch p {
	case PhaseComplete, PhaseWaitingForHelp:
		return StatusCompleted
	case PhaseFailed:
		return StatusFailed
	case PhaseCancelled:
		return StatusCancelled
	default:
		return StatusInProgress
	}
}

var phaseEdges = map[Phase][]Phase{
	PhasePlanning:   {PhaseActing, PhaseFailed, PhaseCancelled},
	PhaseActing:     {PhaseObserving, PhaseComplete, PhaseFailed, PhaseCancelled, PhaseWaitingForHelp},
	PhaseObserving:  {PhaseReflecting, PhaseComplete, PhaseFailed, PhaseCancelled, PhaseWaitingForHelp},
	PhaseReflecting: {PhaseActing, PhaseFailed, PhaseCancelled},
}

// Transition moves the run to next, enforcing the allowed state-machine edges.
func (r *Run) Transition(next Phase) error {
	if r.Phase == next {
		return nil
	}
	for _, allowed := range phaseEdges[r.Phase] {
		if allowed == next {
			r.Phase = next
			return nil
		}
	}
	return fmt.Errorf("illegal phase transition %s -> %s", r.Phase, next)
}
