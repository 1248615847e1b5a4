package service

import (
	"errors"
	"fmt"
	"strings"
)

// AgentID names one of the preconfigured agents.
type AgentID string

const (
	AgentGeneral AgentID = "general"
	AgentTask    AgentID = "task"
	AgentDevOps  AgentID = "devops"
)

// Route is one row of the route table: any keyword selects Agent.
type Route struct {
	Keywords []string `json:"keywords" yaml:"keywords"`
	Agent    AgentID  `json:"agent" yaml:"agent"`
}

// DefaultRoutes is the built-in route table. Order matters: the task row is
// checked before the devops row.
func DefaultRoutes() []Route {
	return []Route{
		{Keywords: []string{"task", "firestore"}, Agent: AgentTask},
		{Keywords: []string{"log", "bigquery", "sql", "query", "metric", "terraform"}, Agent: AgentDevOps},
	}
}

// RoutingResult explains a routing decision.
type RoutingResult struct {
	Agent     AgentID
	Keyword   string // empty when the default agent was chosen
	Reasoning string
}

// IntentRouter routes natural language requests to an agent by keyword.
// Matching is a case-insensitive substring test, so "catalog" matches "log".
type IntentRouter struct {
	routes   []Route
	fallback AgentID
}

// NewIntentRouter builds a router over routes. Keywords are lower-cased once.
func NewIntentRouter(routes []Route, fallback AgentID) (*IntentRouter, error) {
	if fallback == "" {
		return nil, errors.New("router: default agent is required")
	}
	r := &IntentRouter{fallback: fallback, routes: make([]Route, 0, len(routes))}
	for i, rt := range routes {
		if rt.Agent == "" {
			return nil, fmt.Errorf("router: route %d has no agent", i)
		}
		kws := make([]string, 0, len(rt.Keywords))
		for _, kw := range rt.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				return nil, fmt.Errorf("router: route %d has an empty keyword", i)
			}
			kws = append(kws, kw)
		}
		if len(kws) == 0 {
			return nil, fmt.Errorf("router: route %d has no keywords", i)
		}
		r.routes = append(r.routes, Route{Keywords: kws, Agent: rt.Agent})
	}
	return r, nil
}

// Route returns the agent for text.
func (r *IntentRouter) Route(text string) AgentID {
	return r.Explain(text).Agent
}

// Explain returns the routing decision together with the keyword that won.
func (r *IntentRouter) Explain(text string) RoutingResult {
	lower := strings.ToLower(text)
	for _, rt := range r.routes {
		for _, kw := range rt.Keywords {
			if strings.Contains(lower, kw) {
				return RoutingResult{
					Agent:     rt.Agent,
					Keyword:   kw,
					Reasoning: fmt.Sprintf("matched keyword %q", kw),
				}
			}
		}
	}
	return RoutingResult{
		Agent:     r.fallback,
		Reasoning: "no keyword matched, using default agent",
	}
}

// Routes returns a copy of the route table.
func (r *IntentRouter) Routes() []Route {
	out := make([]Route, len(r.routes))
	for i, rt := range r.routes {
		out[i] = Route{Keywords: append([]string(nil), rt.Keywords...), Agent: rt.Agent}
	}
	return out
}

// Default returns the fallback agent.
func (r *IntentRouter) Default() AgentID { return r.fallback }
