package agent

import "fmt"

// StepKind identifies one entry of a reasoning transcript.
type StepKind int

const (
	StepThought StepKind = iota
	StepAction
	StepObservation
	StepFinalAnswer
)

func (k StepKind) String() string {
	switch k {
	case StepThought:
		return "thought"
	case StepAction:
		return "action"
	case StepObservation:
		return "observation"
	case StepFinalAnswer:
		return "final_answer"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name in JSON envelopes.
func (k StepKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Step is one transcript entry. Tool and Input are only set for actions.
type Step struct {
	Kind  StepKind `json:"kind"`
	Text  string   `json:"text,omitempty"`
	Tool  string   `json:"tool,omitempty"`
	Input string   `json:"input,omitempty"`
}

// Transcript is the append-only log of a single run.
type Transcript []Step

// State is the loop controller state.
type State int

const (
	StateRunning State = iota
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON envelopes.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// LoopState is the per-request state of one reasoning run.
// IterationsUsed never exceeds MaxIterations.
type LoopState struct {
	Transcript     Transcript
	IterationsUsed int
	MaxIterations  int
	State          State
}

func (s *LoopState) append(steps ...Step) {
	s.Transcript = append(s.Transcript, steps...)
}

func (s *LoopState) exhausted() bool {
	return s.IterationsUsed >= s.MaxIterations
}
