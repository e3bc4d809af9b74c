package scheduler

import "fmt"

// Phase tracks a generation run through its lifecycle.
type Phase string

const (
	PhaseNotStarted      Phase = "not_started"
	PhaseLab             Phase = "lab_phase"
	PhaseTheory          Phase = "theory_phase"
	PhaseAllPlaced       Phase = "all_placed"
	PhasePartiallyPlaced Phase = "partially_placed"
	PhaseCommitted       Phase = "committed"
	PhaseFailed          Phase = "failed"
)

var phaseTransitions = map[Phase][]Phase{
	PhaseNotStarted:      {PhaseLab, PhaseFailed},
	PhaseLab:             {PhaseTheory},
	PhaseTheory:          {PhaseAllPlaced, PhasePartiallyPlaced},
	PhaseAllPlaced:       {PhaseCommitted},
	PhasePartiallyPlaced: {PhaseCommitted},
}

// CanTransition reports whether moving from p to next is legal.
func (p Phase) CanTransition(next Phase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return len(phaseTransitions[p]) == 0
}

type runState struct {
	phase Phase
}

func (r *runState) advance(next Phase) {
	if !r.phase.CanTransition(next) {
		panic(fmt.Sprintf("scheduler: illegal phase transition %s -> %s", r.phase, next))
	}
	r.phase = next
}

// Commit marks a finished result as persisted by the caller.
func (r *Result) Commit() error {
	if r == nil {
		return fmt.Errorf("commit: nil result")
	}
	if !r.Phase.CanTransition(PhaseCommitted) {
		return fmt.Errorf("commit: result in phase %s cannot be committed", r.Phase)
	}
	r.Phase = PhaseCommitted
	return nil
}
