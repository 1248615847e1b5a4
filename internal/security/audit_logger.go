package security

import (
	"github.com/rs/zerolog/log"
)

// AuditLogger logs security-relevant events with hashed identifiers
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// LogQuery records a BigQuery execution issued by a tool.
func (a *AuditLogger) LogQuery(
	sql, apiKey, userContext string,
	executionTimeMs int64,
	rowCount int,
	bytesProcessed int64,
	success bool,
	errMsg string,
) {
	if !a.enabled {
		return
	}
	evt := log.Info().
		Str("event", "query_audit").
		Str("sql_hash", hashStr(sql)[:16]).
		Str("api_key_hash", hashStr(apiKey)[:16]).
		Str("user_context", userContext).
		Int64("execution_time_ms", executionTimeMs).
		Int("row_count", rowCount).
		Int64("bytes_processed", bytesProcessed).
		Bool("success", success)

	if errMsg != "" {
		evt = evt.Str("error", errMsg)
	}
	evt.Msg("audit")
}

// AgentRun is one routed agent request as seen by the audit log.
type AgentRun struct {
	RequestID  string
	Query      string
	APIKey     string
	SessionID  string
	Agent      string
	State      string
	Iterations int
	DurationMs int64
	Rejected   string // validation failure, if the run never started
}

// LogAgentRun records an agent request. Query and API key are hashed.
func (a *AuditLogger) LogAgentRun(run AgentRun) {
	if !a.enabled {
		return
	}
	evt := log.Info().
		Str("event", "agent_audit").
		Str("request_id", run.RequestID).
		Str("query_hash", hashStr(run.Query)[:16]).
		Str("api_key_hash", hashStr(run.APIKey)[:16]).
		Str("session_id", run.SessionID).
		Str("agent", run.Agent).
		Str("state", run.State).
		Int("iterations", run.Iterations).
		Int64("execution_time_ms", run.DurationMs).
		Bool("validation_passed", run.Rejected == "")
	if run.Rejected != "" {
		evt = evt.Str("rejected", run.Rejected)
	}
	evt.Msg("agent audit")
}
