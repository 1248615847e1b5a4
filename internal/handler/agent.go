package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cortexai/opsagent/internal/agent"
	"github.com/cortexai/opsagent/internal/middleware"
	"github.com/cortexai/opsagent/internal/models"
	"github.com/cortexai/opsagent/internal/security"
	"github.com/cortexai/opsagent/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// DefaultSessionID scopes memory for callers that do not send a session id.
const DefaultSessionID = "default"

const (
	noOutputAnswer = "Sorry, I could not process the request."
	maxBodyBytes   = 1 << 20
)

// Agents is the agent catalog as seen by the HTTP layer.
type Agents interface {
	Get(id service.AgentID) (*agent.Agent, bool)
	List() []agent.Info
	ResetSession(sessionID string) bool
}

// InputGuard screens inbound queries before any agent runs. Nil members are
// skipped.
type InputGuard struct {
	Validator *security.PromptValidator
	PII       *security.PIIDetector
	Audit     *security.AuditLogger
}

// AgentHandler serves the agent invocation endpoints.
type AgentHandler struct {
	agents       Agents
	router       *service.IntentRouter
	guard        InputGuard
	timeout      time.Duration
	apiKeyHeader string
}

// NewAgentHandler wires the catalog and router. timeout bounds one request;
// zero leaves only the per-agent budgets.
func NewAgentHandler(agents Agents, router *service.IntentRouter, guard InputGuard, timeout time.Duration, apiKeyHeader string) *AgentHandler {
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	return &AgentHandler{
		agents:       agents,
		router:       router,
		guard:        guard,
		timeout:      timeout,
		apiKeyHeader: apiKeyHeader,
	}
}

// errInvalidInput marks failures that happen before an agent is chosen or run.
type errInvalidInput struct{ msg string }

func (e errInvalidInput) Error() string { return e.msg }

// InvokeAgent handles POST /invoke_agent. The query comes from the query
// string or a JSON body. The reply is always HTTP 200 with {agent, response}
// or {agent, error}.
func (h *AgentHandler) InvokeAgent(w http.ResponseWriter, r *http.Request) {
	req := models.InvokeRequest{Query: r.URL.Query().Get("query")}
	if req.Query == "" && r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			models.WriteJSON(w, http.StatusOK, models.AgentEnvelope{Error: "An error occurred: " + err.Error()})
			return
		}
	}
	req.SessionID = DefaultSessionID
	req.Agent = ""

	resp, _ := h.invoke(r.Context(), req, h.callerKey(r))
	models.WriteJSON(w, http.StatusOK, resp.AgentEnvelope)
}

// Invoke handles POST /api/v1/invoke.
func (h *AgentHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	var req models.InvokeRequest
	if err := decodeBody(r, &req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = DefaultSessionID
	}

	resp, err := h.invoke(r.Context(), req, h.callerKey(r))
	var invalid errInvalidInput
	if errors.As(err, &invalid) {
		models.WriteJSON(w, http.StatusBadRequest, resp)
		return
	}
	models.WriteJSON(w, http.StatusOK, resp)
}

// ListAgents handles GET /api/v1/agents.
func (h *AgentHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	infos := h.agents.List()
	out := models.AgentsResponse{
		Agents:  make([]models.AgentSummary, 0, len(infos)),
		Default: string(h.router.Default()),
	}
	for _, info := range infos {
		out.Agents = append(out.Agents, models.AgentSummary{
			ID:            info.ID,
			Name:          info.Name,
			Description:   info.Description,
			Tools:         info.Tools,
			MaxIterations: info.MaxIterations,
			MaxDuration:   info.MaxDuration,
			Memory:        info.Memory,
		})
	}
	for _, rt := range h.router.Routes() {
		out.Routes = append(out.Routes, models.RouteSummary{Keywords: rt.Keywords, Agent: string(rt.Agent)})
	}
	models.WriteJSON(w, http.StatusOK, out)
}

// ResetSession handles DELETE /api/v1/sessions/{session_id}.
func (h *AgentHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if strings.TrimSpace(id) == "" {
		models.WriteError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if !h.agents.ResetSession(id) {
		models.WriteError(w, http.StatusNotFound, fmt.Sprintf("session %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Ask runs req outside HTTP, for the one-shot CLI mode.
func (h *AgentHandler) Ask(ctx context.Context, req models.InvokeRequest) models.InvokeResponse {
	if req.SessionID == "" {
		req.SessionID = DefaultSessionID
	}
	resp, _ := h.invoke(ctx, req, "cli")
	return resp
}

// invoke validates, routes and runs one query. The returned error is
// errInvalidInput for rejected input; model failures are reported in the
// envelope only.
func (h *AgentHandler) invoke(ctx context.Context, req models.InvokeRequest, apiKey string) (models.InvokeResponse, error) {
	req.Normalize()
	start := time.Now()

	resp := models.InvokeResponse{SessionID: req.SessionID}
	reject := func(msg string) (models.InvokeResponse, error) {
		resp.Error = "An error occurred: " + msg
		if h.guard.Audit != nil {
			h.guard.Audit.LogAgentRun(security.AgentRun{
				RequestID: middleware.GetRequestID(ctx),
				Query:     req.Query,
				APIKey:    apiKey,
				SessionID: req.SessionID,
				Agent:     resp.AgentID,
				Rejected:  msg,
			})
		}
		return resp, errInvalidInput{msg: msg}
	}

	routing := h.router.Explain(req.Query)
	id := routing.Agent
	if req.Agent != "" {
		id = service.AgentID(req.Agent)
	} else {
		log.Debug().Str("agent", string(id)).Str("keyword", routing.Keyword).Str("reason", routing.Reasoning).Msg("query routed")
	}
	a, ok := h.agents.Get(id)
	if !ok {
		return reject(fmt.Sprintf("unknown agent %q", id))
	}
	resp.Agent = a.Name
	resp.AgentID = a.ID

	if req.Query == "" {
		return reject("query is required")
	}
	if h.guard.Validator != nil {
		if res := h.guard.Validator.Validate(req.Query); !res.Valid {
			return reject(res.Message)
		}
	}
	if h.guard.PII != nil {
		if found, kw := h.guard.PII.Detect(req.Query); found {
			return reject(fmt.Sprintf("query mentions sensitive data (%q)", kw))
		}
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	out, err := a.Handle(ctx, req.SessionID, req.Query)
	if out != nil {
		resp.State = out.State.String()
		resp.Iterations = out.IterationsUsed
		if req.IncludeTranscript {
			resp.Transcript = renderTranscript(out.Transcript)
		}
	}
	if err != nil {
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(ctx)).Str("agent", a.ID).Str("session_id", req.SessionID).Msg("agent run failed")
		resp.Error = "An error occurred: " + err.Error()
	} else {
		resp.Response = out.Answer
		if resp.Response == "" {
			resp.Response = noOutputAnswer
		}
	}

	if h.guard.Audit != nil {
		h.guard.Audit.LogAgentRun(security.AgentRun{
			RequestID:  middleware.GetRequestID(ctx),
			Query:      req.Query,
			APIKey:     apiKey,
			SessionID:  req.SessionID,
			Agent:      a.ID,
			State:      resp.State,
			Iterations: resp.Iterations,
			DurationMs: time.Since(start).Milliseconds(),
		})
	}
	return resp, nil
}

func (h *AgentHandler) callerKey(r *http.Request) string {
	if k := r.Header.Get(h.apiKeyHeader); k != "" {
		return k
	}
	return r.RemoteAddr
}

func renderTranscript(t agent.Transcript) []models.TranscriptStep {
	out := make([]models.TranscriptStep, 0, len(t))
	for _, s := range t {
		out = append(out, models.TranscriptStep{
			Kind:  s.Kind.String(),
			Text:  s.Text,
			Tool:  s.Tool,
			Input: s.Input,
		})
	}
	return out
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("query is required")
		}
		return err
	}
	return nil
}
