package agent

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Agent is a configured pairing of a tool registry, a prompt preamble and a
// reasoning-loop budget, optionally backed by conversation memory.
type Agent struct {
	ID          string
	Name        string
	Description string
	Loop        *Loop
	Memory      *Memory // nil for agents without conversation memory
}

// Info describes an agent for listings.
type Info struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Tools         []string `json:"tools"`
	MaxIterations int      `json:"max_iterations"`
	MaxDuration   string   `json:"max_duration,omitempty"`
	Memory        bool     `json:"memory"`
	MemoryWindow  int      `json:"memory_window,omitempty"`
}

// Info returns a description of the agent.
func (a *Agent) Info() Info {
	info := Info{
		ID:            a.ID,
		Name:          a.Name,
		Description:   a.Description,
		Tools:         a.Loop.Registry.Names(),
		MaxIterations: a.Loop.MaxIterations,
		Memory:        a.Memory != nil,
	}
	if a.Loop.MaxDuration > 0 {
		info.MaxDuration = a.Loop.MaxDuration.String()
	}
	if a.Memory != nil {
		info.MemoryWindow = a.Memory.MaxTurns()
	}
	return info
}

// Handle runs one turn for sessionID. Memory, when present, is read into the
// prompt and the turn is appended afterwards, including aborted runs. A
// fatal model error leaves memory untouched.
func (a *Agent) Handle(ctx context.Context, sessionID, input string) (*Outcome, error) {
	var history []Turn
	if a.Memory != nil {
		history = a.Memory.History(sessionID)
	}

	start := time.Now()
	out, err := a.Loop.Run(ctx, input, history)
	if err != nil {
		return out, err
	}

	if a.Memory != nil {
		a.Memory.Append(sessionID, input, out.Answer)
	}

	log.Info().
		Str("agent", a.ID).
		Str("state", out.State.String()).
		Int("iterations", out.IterationsUsed).
		Int("history_turns", len(history)).
		Dur("duration", time.Since(start)).
		Msg("agent turn completed")

	return out, nil
}
