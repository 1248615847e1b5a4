package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cortexai/opsagent/internal/llm"
	"github.com/cortexai/opsagent/internal/service"
	"github.com/cortexai/opsagent/internal/tools"
)

const (
	generalPreamble = "Answer the following questions as best you can."

	taskPreamble = `You are a helpful GCP assistant. Your job is to manage tasks and trigger actions.
Use the available tools to answer the user's request.`

	devopsPreamble = `You are a DevOps assistant. Your purpose is to query GCP data, metrics, logs, and infrastructure state.
Use the available tools to answer the user's request.`
)

// Budget bounds one agent's runs.
type Budget struct {
	MaxIterations int
	MaxDuration   time.Duration
}

// CatalogConfig carries the per-agent budgets and shared limits.
type CatalogConfig struct {
	General      Budget
	Task         Budget
	DevOps       Budget
	ModelTimeout time.Duration
	ToolTimeout  time.Duration
	MemoryWindow int

	LogLimit     int
	MetricWindow time.Duration
	SearchIndex  string
	SearchSize   int
}

// Deps are the backends the tools run against. A nil backend leaves its
// tool registered but answering that it is not configured; the optional
// catalog, sampling and log-search tools are omitted instead.
type Deps struct {
	Completer llm.Completer

	Wiki      tools.WikiSummarizer
	WikiCache *service.TTLCache
	Clock     func() time.Time

	Tasks     tools.TaskStore
	Functions tools.FunctionCaller

	Logs            tools.LogReader
	BigQuery        tools.QueryRunner
	BigQueryCatalog tools.BigQueryCatalog
	BigQueryGuard   tools.BigQueryGuard
	SchemaCache     *service.TTLCache
	Metrics         tools.MetricReader
	States          tools.StateReader
	LogSearch       tools.LogSearcher
	LogIndices      tools.IndexLister
}

// Catalog holds the preconfigured agents in a fixed order.
type Catalog struct {
	agents map[service.AgentID]*Agent
	order  []service.AgentID
}

// NewCatalog builds the general, task and DevOps agents.
func NewCatalog(cfg CatalogConfig, deps Deps) (*Catalog, error) {
	if deps.Completer == nil {
		return nil, fmt.Errorf("catalog: completer is required")
	}

	general := []tools.Tool{
		tools.CalculatorTool(),
		tools.DateTool(deps.Clock),
		orUnavailable(tools.WikipediaTool(deps.Wiki, deps.WikiCache), deps.Wiki != nil),
	}

	task := []tools.Tool{
		orUnavailable(tools.AddTaskTool(deps.Tasks), deps.Tasks != nil),
		orUnavailable(tools.ListTasksTool(deps.Tasks), deps.Tasks != nil),
		orUnavailable(tools.TriggerCloudFunctionTool(deps.Functions), deps.Functions != nil),
	}

	devops := []tools.Tool{
		orUnavailable(tools.QueryGCPLogsTool(deps.Logs, cfg.LogLimit), deps.Logs != nil),
		orUnavailable(tools.QueryBigQueryTool(deps.BigQuery, deps.BigQueryGuard), deps.BigQuery != nil),
		orUnavailable(tools.QueryGCPMetricsTool(deps.Metrics, cfg.MetricWindow), deps.Metrics != nil),
		orUnavailable(tools.QueryTerraformStateTool(deps.States), deps.States != nil),
	}
	if deps.BigQueryCatalog != nil {
		devops = append(devops, tools.DescribeBigQueryTool(deps.BigQueryCatalog, deps.SchemaCache))
	}
	if deps.BigQuery != nil {
		devops = append(devops, tools.SampleBigQueryTableTool(deps.BigQuery, deps.BigQueryGuard.Masker))
	}
	if deps.LogSearch != nil {
		devops = append(devops, tools.SearchLogsTool(deps.LogSearch, cfg.SearchIndex, cfg.SearchSize))
	}
	if deps.LogIndices != nil {
		devops = append(devops, tools.ListLogIndicesTool(deps.LogIndices))
	}

	c := &Catalog{agents: make(map[service.AgentID]*Agent)}
	specs := []struct {
		id       service.AgentID
		name     string
		desc     string
		preamble string
		budget   Budget
		tools    []tools.Tool
		memory   bool
	}{
		{service.AgentGeneral, "Base LLM Agent", "General questions with a calculator, clock and Wikipedia.", generalPreamble, cfg.General, general, true},
		{service.AgentTask, "GCP Task Agent", "Creates and lists tasks and triggers Cloud Functions.", taskPreamble, cfg.Task, task, false},
		{service.AgentDevOps, "DevOps Query Agent", "Queries GCP logs, BigQuery, metrics and Terraform state.", devopsPreamble, cfg.DevOps, devops, false},
	}
	for _, s := range specs {
		reg, err := tools.NewRegistry(cfg.ToolTimeout, s.tools...)
		if err != nil {
			return nil, fmt.Errorf("catalog: %s tools: %w", s.id, err)
		}
		maxIter := s.budget.MaxIterations
		if maxIter == 0 {
			maxIter = DefaultMaxIterations
		}
		a := &Agent{
			ID:          string(s.id),
			Name:        s.name,
			Description: s.desc,
			Loop: &Loop{
				Name:          string(s.id),
				Completer:     deps.Completer,
				Registry:      reg,
				Preamble:      s.preamble,
				MaxIterations: maxIter,
				MaxDuration:   s.budget.MaxDuration,
				ModelTimeout:  cfg.ModelTimeout,
			},
		}
		if s.memory {
			a.Memory = NewMemory(cfg.MemoryWindow)
		}
		if err := a.Loop.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: %s: %w", s.id, err)
		}
		c.agents[s.id] = a
		c.order = append(c.order, s.id)
	}
	return c, nil
}

// Get returns the agent registered under id.
func (c *Catalog) Get(id service.AgentID) (*Agent, bool) {
	a, ok := c.agents[id]
	return a, ok
}

// List describes every agent in catalog order.
func (c *Catalog) List() []Info {
	out := make([]Info, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.agents[id].Info())
	}
	return out
}

// ResetSession clears sessionID in every agent that keeps memory. It reports
// whether anything was dropped.
func (c *Catalog) ResetSession(sessionID string) bool {
	dropped := false
	for _, id := range c.order {
		if m := c.agents[id].Memory; m != nil && m.Reset(sessionID) {
			dropped = true
		}
	}
	return dropped
}

// orUnavailable keeps t's name and description but answers that its backend
// is missing when configured is false.
func orUnavailable(t tools.Tool, configured bool) tools.Tool {
	if configured {
		return t
	}
	name := t.Name
	t.Execute = func(context.Context, string) (string, error) {
		return "", fmt.Errorf("%s is not configured on this server", name)
	}
	return t
}
