package agent_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cortexai/opsagent/internal/agent"
	"github.com/cortexai/opsagent/internal/service"
	"github.com/cortexai/opsagent/internal/taskstore"
	"github.com/cortexai/opsagent/internal/tools"
)

// scripted replays canned completions in order and records every prompt.
type scripted struct {
	mu      sync.Mutex
	outputs []string
	prompts []string
	delay   time.Duration
	err     error
}

func (s *scripted) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return "", s.err
	}
	if len(s.outputs) == 0 {
		return "", errors.New("script exhausted")
	}
	out := s.outputs[0]
	if len(s.outputs) > 1 {
		s.outputs = s.outputs[1:]
	}
	return out, nil
}

func newLoop(t *testing.T, c *scripted, maxIter int, list ...tools.Tool) *agent.Loop {
	t.Helper()
	reg, err := tools.NewRegistry(time.Second, list...)
	if err != nil {
		t.Fatal(err)
	}
	return &agent.Loop{
		Name:          "test",
		Completer:     c,
		Registry:      reg,
		Preamble:      "Answer the following questions as best you can.",
		MaxIterations: maxIter,
	}
}

func observations(tr agent.Transcript) []string {
	var out []string
	for _, s := range tr {
		if s.Kind == agent.StepObservation {
			out = append(out, s.Text)
		}
	}
	return out
}

func TestLoop_ArithmeticQuestion(t *testing.T) {
	c := &scripted{outputs: []string{
		"I need to calculate this.\nAction: Calculator\nAction Input: 15 * (10 + 2)",
		"I now know the final answer\nFinal Answer: 15 * (10 + 2) = 180",
	}}
	loop := newLoop(t, c, agent.DefaultMaxIterations, tools.CalculatorTool(), tools.DateTool(nil))

	out, err := loop.Run(context.Background(), "What is 15 * (10 + 2)?", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.State != agent.StateDone {
		t.Errorf("State = %s, want DONE", out.State)
	}
	if !strings.Contains(out.Answer, "180") {
		t.Errorf("Answer = %q, want it to contain 180", out.Answer)
	}
	if out.IterationsUsed != 1 {
		t.Errorf("IterationsUsed = %d, want 1", out.IterationsUsed)
	}
	if obs := observations(out.Transcript); len(obs) != 1 || obs[0] != "180" {
		t.Errorf("observations = %v, want [180]", obs)
	}
	if last := out.Transcript[len(out.Transcript)-1]; last.Kind != agent.StepFinalAnswer {
		t.Errorf("last step = %s, want final answer", last.Kind)
	}
	if !strings.Contains(c.prompts[1], "Action Input: 15 * (10 + 2)\nObservation: 180\n") {
		t.Errorf("second prompt should carry the observation:\n%s", c.prompts[1])
	}
}

func TestLoop_AddTask(t *testing.T) {
	store := taskstore.NewMemoryStore()
	c := &scripted{outputs: []string{
		"Action: AddTask\nAction Input: Refactor the authentication module",
		"Final Answer: Task created.",
	}}
	loop := newLoop(t, c, 5, tools.AddTaskTool(store), tools.ListTasksTool(store))

	out, err := loop.Run(context.Background(), "Add a new task: Refactor the authentication module", nil)
	if err != nil {
		t.Fatal(err)
	}
	obs := observations(out.Transcript)
	if len(obs) != 1 || !strings.HasPrefix(obs[0], "Successfully added task with ID: ") {
		t.Errorf("observations = %v", obs)
	}
	tasks, _ := store.List(context.Background())
	if len(tasks) != 1 || tasks[0].Description != "Refactor the authentication module" {
		t.Errorf("tasks = %+v", tasks)
	}
}

type failingBQ struct{}

func (failingBQ) ExecuteQuery(context.Context, string, service.QueryOptions) (*service.QueryResult, error) {
	return nil, errors.New("Not found: Dataset proj:missing")
}

func TestLoop_ToolFailureIsObservation(t *testing.T) {
	c := &scripted{outputs: []string{
		"Action: QueryBigQuery\nAction Input: SELECT * FROM missing.t",
		"Final Answer: The dataset does not exist.",
	}}
	loop := newLoop(t, c, 5, tools.QueryBigQueryTool(failingBQ{}, tools.BigQueryGuard{}))

	out, err := loop.Run(context.Background(), "run this sql", nil)
	if err != nil {
		t.Fatalf("tool failure must not abort the run: %v", err)
	}
	if out.State != agent.StateDone {
		t.Errorf("State = %s, want DONE", out.State)
	}
	obs := observations(out.Transcript)
	want := "Error executing BigQuery query: Not found: Dataset proj:missing"
	if len(obs) != 1 || obs[0] != want {
		t.Errorf("observations = %v, want [%s]", obs, want)
	}
}

func TestLoop_UnparseableCostsOneIteration(t *testing.T) {
	c := &scripted{outputs: []string{
		"The answer is probably 42.",
		"Final Answer: 42",
	}}
	loop := newLoop(t, c, 5, tools.CalculatorTool())

	out, err := loop.Run(context.Background(), "meaning of life", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.IterationsUsed != 1 {
		t.Errorf("IterationsUsed = %d, want 1", out.IterationsUsed)
	}
	obs := observations(out.Transcript)
	want := "Could not parse LLM output: no Action or Final Answer found. Reformat your reply as Thought/Action/Action Input or Final Answer."
	if len(obs) != 1 || obs[0] != want {
		t.Errorf("observations = %v", obs)
	}
	if !strings.Contains(c.prompts[1], "Observation: "+want) {
		t.Error("corrective observation should be fed back to the model")
	}
}

func TestLoop_IterationBudget(t *testing.T) {
	t.Run("with observation", func(t *testing.T) {
		c := &scripted{outputs: []string{"Action: Calculator\nAction Input: 1 + 1"}}
		loop := newLoop(t, c, 3, tools.CalculatorTool())

		out, err := loop.Run(context.Background(), "loop forever", nil)
		if err != nil {
			t.Fatal(err)
		}
		if out.State != agent.StateAborted {
			t.Errorf("State = %s, want ABORTED", out.State)
		}
		if out.IterationsUsed != 3 || out.MaxIterations != 3 {
			t.Errorf("iterations = %d/%d, want 3/3", out.IterationsUsed, out.MaxIterations)
		}
		if out.Answer != "Agent stopped due to iteration limit. Last observation: 2" {
			t.Errorf("Answer = %q", out.Answer)
		}
		if len(c.prompts) != 3 {
			t.Errorf("model called %d times, want 3", len(c.prompts))
		}
	})

	t.Run("without observation", func(t *testing.T) {
		c := &scripted{outputs: []string{"hmm"}}
		loop := newLoop(t, c, 2, tools.CalculatorTool())

		out, err := loop.Run(context.Background(), "?", nil)
		if err != nil {
			t.Fatal(err)
		}
		if out.State != agent.StateAborted || out.Answer != "Agent stopped due to iteration limit or time limit." {
			t.Errorf("got %s %q", out.State, out.Answer)
		}
	})
}

func TestLoop_UnknownToolKeepsLooping(t *testing.T) {
	c := &scripted{outputs: []string{
		"Action: Search\nAction Input: Paris",
		"Final Answer: done",
	}}
	loop := newLoop(t, c, 5, tools.CalculatorTool(), tools.DateTool(nil))

	out, err := loop.Run(context.Background(), "q", nil)
	if err != nil {
		t.Fatal(err)
	}
	obs := observations(out.Transcript)
	if len(obs) != 1 || obs[0] != "Search is not a valid tool, try one of [Calculator, DateTool]." {
		t.Errorf("observations = %v", obs)
	}
	if out.State != agent.StateDone {
		t.Errorf("State = %s", out.State)
	}
}

func TestLoop_ModelError(t *testing.T) {
	c := &scripted{err: errors.New("rate limited")}
	loop := newLoop(t, c, 5, tools.CalculatorTool())

	out, err := loop.Run(context.Background(), "q", nil)
	var me *agent.ModelError
	if !errors.As(err, &me) {
		t.Fatalf("expected *ModelError, got %v", err)
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error should carry the cause: %v", err)
	}
	if out == nil || out.State != agent.StateAborted {
		t.Errorf("expected ABORTED outcome alongside the error, got %+v", out)
	}
}

func TestLoop_ModelTimeout(t *testing.T) {
	blocking := agentCompleterFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	reg, _ := tools.NewRegistry(0, tools.CalculatorTool())
	loop := &agent.Loop{Completer: blocking, Registry: reg, MaxIterations: 5, ModelTimeout: 20 * time.Millisecond}

	_, err := loop.Run(context.Background(), "q", nil)
	var me *agent.ModelError
	if !errors.As(err, &me) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ModelError wrapping DeadlineExceeded, got %v", err)
	}
}

func TestLoop_RunDeadline(t *testing.T) {
	c := &scripted{
		outputs: []string{"Action: Calculator\nAction Input: 1 + 1"},
		delay:   30 * time.Millisecond,
	}
	loop := newLoop(t, c, 10, tools.CalculatorTool())
	loop.MaxDuration = 10 * time.Millisecond

	out, err := loop.Run(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("deadline is not an error: %v", err)
	}
	if out.State != agent.StateAborted {
		t.Errorf("State = %s, want ABORTED", out.State)
	}
	if out.IterationsUsed != 1 {
		t.Errorf("IterationsUsed = %d, want 1", out.IterationsUsed)
	}
	if out.Answer != "Agent stopped due to iteration limit. Last observation: 2" {
		t.Errorf("Answer = %q", out.Answer)
	}
}

func TestLoop_RunDeadlineDuringCompletion(t *testing.T) {
	var calls int
	c := agentCompleterFunc(func(ctx context.Context, _ string) (string, error) {
		calls++
		if calls == 1 {
			return "Action: Calculator\nAction Input: 1 + 1", nil
		}
		<-ctx.Done()
		return "", ctx.Err()
	})
	reg, _ := tools.NewRegistry(time.Second, tools.CalculatorTool())
	loop := &agent.Loop{Completer: c, Registry: reg, MaxIterations: 5, MaxDuration: 50 * time.Millisecond}

	out, err := loop.Run(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("deadline is not an error: %v", err)
	}
	if out.State != agent.StateAborted {
		t.Errorf("State = %s, want ABORTED", out.State)
	}
	if out.IterationsUsed != 1 {
		t.Errorf("IterationsUsed = %d, want 1", out.IterationsUsed)
	}
	if out.Answer != "Agent stopped due to iteration limit. Last observation: 2" {
		t.Errorf("Answer = %q", out.Answer)
	}
}

func TestLoop_RunDeadlineFirstCall(t *testing.T) {
	c := agentCompleterFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	reg, _ := tools.NewRegistry(0, tools.CalculatorTool())
	loop := &agent.Loop{Completer: c, Registry: reg, MaxIterations: 5, MaxDuration: 20 * time.Millisecond, ModelTimeout: time.Minute}

	out, err := loop.Run(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("deadline is not an error: %v", err)
	}
	if out.State != agent.StateAborted || out.Answer != "Agent stopped due to iteration limit or time limit." {
		t.Errorf("got state=%s answer=%q", out.State, out.Answer)
	}
}

func TestLoop_Validate(t *testing.T) {
	reg, _ := tools.NewRegistry(0)
	bad := []*agent.Loop{
		{Registry: reg, MaxIterations: 1},
		{Completer: &scripted{}, MaxIterations: 1},
		{Completer: &scripted{}, Registry: reg, MaxIterations: 0},
	}
	for i, l := range bad {
		if _, err := l.Run(context.Background(), "q", nil); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

type agentCompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f agentCompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
