package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cortexai/opsagent/internal/llm"
	"github.com/cortexai/opsagent/internal/tools"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxIterations is the tool-dispatch budget when none is configured.
	DefaultMaxIterations = 5

	// DefaultModelTimeout bounds a single completion call.
	DefaultModelTimeout = 120 * time.Second

	fallbackNoObservation = "Agent stopped due to iteration limit or time limit."
	fallbackWithLast      = "Agent stopped due to iteration limit. Last observation: "

	correctiveFormat = "Could not parse LLM output: %s. Reformat your reply as Thought/Action/Action Input or Final Answer."
)

// ModelError is returned when the completion call itself fails. It is fatal
// to the run; tool and parse failures never produce it.
type ModelError struct {
	Iteration int
	Err       error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model completion failed at iteration %d: %v", e.Iteration, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// errRunDeadline is the cancellation cause when MaxDuration expires mid-call.
var errRunDeadline = errors.New("run deadline exceeded")

// Loop runs the think→act→observe cycle for one agent configuration.
// A Loop is immutable and safe for concurrent use.
type Loop struct {
	Name          string
	Completer     llm.Completer
	Registry      *tools.Registry
	Preamble      string
	MaxIterations int
	MaxDuration   time.Duration // 0 = no run deadline
	ModelTimeout  time.Duration
}

// Outcome is the result of one run.
type Outcome struct {
	Answer         string        `json:"answer"`
	State          State         `json:"state"`
	IterationsUsed int           `json:"iterations_used"`
	MaxIterations  int           `json:"max_iterations"`
	Transcript     Transcript    `json:"transcript"`
	Duration       time.Duration `json:"duration"`
}

// Validate checks the loop configuration.
func (l *Loop) Validate() error {
	if l.Completer == nil {
		return errors.New("loop: completer is required")
	}
	if l.Registry == nil {
		return errors.New("loop: tool registry is required")
	}
	if l.MaxIterations < 1 {
		return fmt.Errorf("loop: max_iterations must be >= 1, got %d", l.MaxIterations)
	}
	return nil
}

// Run answers input. history is rendered as prior turns (nil for agents
// without memory). The returned Outcome is non-nil even on error so callers
// can inspect the partial transcript.
func (l *Loop) Run(ctx context.Context, input string, history []Turn) (*Outcome, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	var deadline time.Time
	if l.MaxDuration > 0 {
		deadline = start.Add(l.MaxDuration)
	}
	modelTimeout := l.ModelTimeout
	if modelTimeout <= 0 {
		modelTimeout = DefaultModelTimeout
	}

	st := &LoopState{MaxIterations: l.MaxIterations, State: StateRunning}
	finish := func(answer string) *Outcome {
		return &Outcome{
			Answer:         answer,
			State:          st.State,
			IterationsUsed: st.IterationsUsed,
			MaxIterations:  st.MaxIterations,
			Transcript:     st.Transcript,
			Duration:       time.Since(start),
		}
	}

	for st.State == StateRunning {
		if !deadline.IsZero() && time.Now().After(deadline) {
			st.State = StateAborted
			log.Warn().Str("agent", l.Name).Int("iterations", st.IterationsUsed).Msg("run deadline exceeded")
			return finish(fallbackAnswer(st.Transcript)), nil
		}

		prompt := FormatPrompt(l.Preamble, l.Registry, st.Transcript, input, history)
		output, err := l.complete(ctx, prompt, modelTimeout, deadline)
		if errors.Is(err, errRunDeadline) {
			st.State = StateAborted
			log.Warn().Str("agent", l.Name).Int("iterations", st.IterationsUsed).Msg("run deadline exceeded during completion")
			return finish(fallbackAnswer(st.Transcript)), nil
		}
		if err != nil {
			st.State = StateAborted
			log.Error().Err(err).Str("agent", l.Name).Int("iteration", st.IterationsUsed).Msg("model completion failed")
			return finish(""), &ModelError{Iteration: st.IterationsUsed, Err: err}
		}

		d := Parse(output)
		log.Debug().
			Str("agent", l.Name).
			Int("iteration", st.IterationsUsed).
			Str("decision", d.Kind.String()).
			Str("tool", d.Tool).
			Msg("agent iteration")

		if d.Thought != "" {
			st.append(Step{Kind: StepThought, Text: d.Thought})
		}

		switch d.Kind {
		case DecisionFinalAnswer:
			st.append(Step{Kind: StepFinalAnswer, Text: d.Answer})
			st.State = StateDone
			return finish(d.Answer), nil

		case DecisionAction:
			res := l.Registry.Invoke(ctx, d.Tool, d.Input)
			st.append(
				Step{Kind: StepAction, Tool: d.Tool, Input: d.Input},
				Step{Kind: StepObservation, Text: res.Text},
			)

		default:
			st.append(Step{Kind: StepObservation, Text: fmt.Sprintf(correctiveFormat, d.Reason)})
		}

		st.IterationsUsed++
		if st.exhausted() {
			st.State = StateAborted
			log.Warn().Str("agent", l.Name).Int("iterations", st.IterationsUsed).Msg("iteration budget exhausted")
			return finish(fallbackAnswer(st.Transcript)), nil
		}
	}

	return finish(""), nil
}

func (l *Loop) complete(ctx context.Context, prompt string, timeout time.Duration, deadline time.Time) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if !deadline.IsZero() {
		var cancelRun context.CancelFunc
		cctx, cancelRun = context.WithDeadlineCause(cctx, deadline, errRunDeadline)
		defer cancelRun()
	}
	out, err := l.Completer.Complete(cctx, prompt)
	if err != nil {
		if cctx.Err() != nil && context.Cause(cctx) == errRunDeadline {
			return "", errRunDeadline
		}
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("completion timed out: %w", err)
		}
		return "", err
	}
	return out, nil
}

// fallbackAnswer is the best-effort answer of an aborted run: the last real
// tool observation when there is one.
func fallbackAnswer(tr Transcript) string {
	for i := len(tr) - 1; i >= 1; i-- {
		if tr[i].Kind == StepObservation && tr[i-1].Kind == StepAction {
			if tr[i].Text != "" {
				return fallbackWithLast + tr[i].Text
			}
		}
	}
	return fallbackNoObservation
}
