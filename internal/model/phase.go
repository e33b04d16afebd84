package model

import (
	"fmt"
	"strconv"
)

// Phase is one of the four sequential exam stages.
type Phase int

const (
	PhaseOne   Phase = 1
	PhaseTwo   Phase = 2
	PhaseThree Phase = 3
	PhaseFour  Phase = 4
)

// Phases lists every phase in the order candidates take them.
var Phases = []Phase{PhaseOne, PhaseTwo, PhaseThree, PhaseFour}

// PhaseKind distinguishes answer-based phases from upload-based phases.
type PhaseKind string

const (
	PhaseKindAnswers PhaseKind = "ANSWERS"
	PhaseKindUpload  PhaseKind = "UPLOAD"
)

// ParsePhase converts a path segment such as "3" into a Phase.
func ParsePhase(raw string) (Phase, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid phase %q", raw)
	}
	p := Phase(n)
	if !p.Valid() {
		return 0, fmt.Errorf("invalid phase %d", n)
	}
	return p, nil
}

// Valid reports whether p names one of the four phases.
func (p Phase) Valid() bool {
	return p >= PhaseOne && p <= PhaseFour
}

// Kind returns the input type of the phase.
func (p Phase) Kind() PhaseKind {
	if p == PhaseThree || p == PhaseFour {
		return PhaseKindUpload
	}
	return PhaseKindAnswers
}

// Namespace is the blob-store prefix artifacts of this phase are written under.
func (p Phase) Namespace() string {
	return fmt.Sprintf("uploads/phase%d", int(p))
}

// Next returns the phase that follows p, or false for the last phase.
func (p Phase) Next() (Phase, bool) {
	if p >= PhaseFour {
		return 0, false
	}
	return p + 1, true
}

// PhaseState is the server-observable part of a phase's lifecycle. The
// transient Submitting and Failed states only exist on the client.
type PhaseState string

const (
	PhaseStateNotStarted PhaseState = "NOT_STARTED"
	PhaseStateInProgress PhaseState = "IN_PROGRESS"
	PhaseStateSubmitted  PhaseState = "SUBMITTED"
)

// PhaseProgress describes one phase of one examination.
type PhaseProgress struct {
	Phase            Phase      `json:"phase"`
	Kind             PhaseKind  `json:"kind"`
	State            PhaseState `json:"state"`
	RemainingSeconds *int       `json:"remaining_seconds,omitempty"`
}

// ExaminationProgress is returned to the client to decide navigation.
type ExaminationProgress struct {
	ExaminationID string          `json:"examination_id"`
	Phases        []PhaseProgress `json:"phases"`
	// NextPhase is the first phase not yet submitted; nil once all are done.
	NextPhase *Phase `json:"next_phase"`
}
