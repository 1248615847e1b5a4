// Package tools defines the Tool type, the ordered Registry the reasoning loop
// dispatches through, and the individual tool implementations.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single tool invocation when the registry has none set.
const DefaultTimeout = 30 * time.Second

// Tool represents a callable capability the LLM can invoke. Input and output
// are plain text; Description is rendered verbatim into the prompt.
type Tool struct {
	Name        string
	Description string
	Execute     func(ctx context.Context, input string) (string, error)
}

// Failure is a tool error that names the operation that failed, so the
// observation reads "Error <op>: <cause>".
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string {
	if f.Op == "" {
		return f.Err.Error()
	}
	return f.Op + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail wraps err as a Failure for op.
func Fail(op string, err error) error {
	return &Failure{Op: op, Err: err}
}

// Result is the outcome of Registry.Invoke. Text is always set and is what
// gets fed back to the model as the observation.
type Result struct {
	Text     string
	Failed   bool
	NotFound bool
}

// Registry is an ordered, immutable-after-construction set of tools.
type Registry struct {
	tools   []Tool
	index   map[string]int
	timeout time.Duration
}

// NewRegistry builds a registry. Duplicate or empty names are rejected.
func NewRegistry(timeout time.Duration, list ...Tool) (*Registry, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &Registry{
		tools:   make([]Tool, 0, len(list)),
		index:   make(map[string]int, len(list)),
		timeout: timeout,
	}
	for _, t := range list {
		if t.Name == "" {
			return nil, errors.New("tool name is required")
		}
		if t.Execute == nil {
			return nil, fmt.Errorf("tool %q has no Execute func", t.Name)
		}
		if _, dup := r.index[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name)
		}
		r.index[t.Name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Tools returns the tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	return names
}

// Len reports how many tools are registered.
func (r *Registry) Len() int { return len(r.tools) }

// Invoke runs the named tool. It never returns an error: failures, panics and
// timeouts all come back as a Result with Failed set.
func (r *Registry) Invoke(ctx context.Context, name, input string) Result {
	t, ok := r.Lookup(name)
	if !ok {
		return Result{
			Text:     fmt.Sprintf("%s is not a valid tool, try one of [%s].", name, strings.Join(r.Names(), ", ")),
			Failed:   true,
			NotFound: true,
		}
	}

	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	out, err := r.run(tctx, t, input)
	if err != nil {
		log.Warn().Err(err).Str("tool", t.Name).Dur("duration", time.Since(start)).Msg("tool execution error")
		return Result{Text: observationFor(err), Failed: true}
	}

	log.Debug().Str("tool", t.Name).Dur("duration", time.Since(start)).Int("bytes", len(out)).Msg("tool executed")
	return Result{Text: out}
}

// run executes t in its own goroutine so a tool that ignores ctx still
// yields to the registry timeout.
func (r *Registry) run(ctx context.Context, t Tool, input string) (string, error) {
	type outcome struct {
		out string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", t.Name, rec)}
			}
		}()
		o, e := t.Execute(ctx, input)
		done <- outcome{out: o, err: e}
	}()

	select {
	case o := <-done:
		return o.out, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("tool %s timed out after %s", t.Name, r.timeout)
		}
		return "", ctx.Err()
	}
}

func observationFor(err error) string {
	var f *Failure
	if errors.As(err, &f) && f.Op != "" {
		return "Error " + f.Error()
	}
	return "Error: " + err.Error()
}
