package models

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Agents  []string          `json:"agents,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// AgentEnvelope is the POST /invoke_agent reply: exactly one of Response or
// Error is set.
type AgentEnvelope struct {
	Agent    string `json:"agent"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TranscriptStep is one rendered loop step.
type TranscriptStep struct {
	Kind  string `json:"kind"` // thought | action | observation | final_answer
	Text  string `json:"text,omitempty"`
	Tool  string `json:"tool,omitempty"`
	Input string `json:"input,omitempty"`
}

// InvokeResponse is the v1 envelope returned by /api/v1/invoke and the chat socket.
type InvokeResponse struct {
	AgentEnvelope
	AgentID    string           `json:"agent_id"`
	State      string           `json:"state,omitempty"`
	Iterations int              `json:"iterations"`
	SessionID  string           `json:"session_id,omitempty"`
	Transcript []TranscriptStep `json:"transcript,omitempty"`
}

// AgentSummary describes one agent for GET /api/v1/agents.
type AgentSummary struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Tools         []string `json:"tools"`
	MaxIterations int      `json:"max_iterations"`
	MaxDuration   string   `json:"max_duration,omitempty"`
	Memory        bool     `json:"memory"`
}

// AgentsResponse is returned by GET /api/v1/agents.
type AgentsResponse struct {
	Agents  []AgentSummary `json:"agents"`
	Default string         `json:"default"`
	Routes  []RouteSummary `json:"routes"`
}

// RouteSummary is one row of the keyword route table.
type RouteSummary struct {
	Keywords []string `json:"keywords"`
	Agent    string   `json:"agent"`
}

// DatasetInfo represents a BigQuery dataset
type DatasetInfo struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Location    string `json:"location"`
	Description string `json:"description,omitempty"`
}

// TableInfo represents a BigQuery table
type TableInfo struct {
	ID        string `json:"id"`
	DatasetID string `json:"dataset_id"`
	Type      string `json:"type"`
	NumRows   uint64 `json:"num_rows"`
	NumBytes  int64  `json:"num_bytes"`
}
