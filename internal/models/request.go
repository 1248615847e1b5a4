package models

import "strings"

// InvokeRequest is the JSON body of POST /invoke_agent and POST /api/v1/invoke.
type InvokeRequest struct {
	Query             string `json:"query"`
	SessionID         string `json:"session_id,omitempty"`
	Agent             string `json:"agent,omitempty"` // bypasses routing when set
	IncludeTranscript bool   `json:"include_transcript,omitempty"`
}

// Normalize trims the free-text fields.
func (r *InvokeRequest) Normalize() {
	r.Query = strings.TrimSpace(r.Query)
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.Agent = strings.ToLower(strings.TrimSpace(r.Agent))
}

// ChatMessage is one client frame on the chat WebSocket.
type ChatMessage struct {
	Input             string `json:"input"`
	Agent             string `json:"agent,omitempty"`
	IncludeTranscript bool   `json:"include_transcript,omitempty"`
}
