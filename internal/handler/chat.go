package handler

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/cortexai/opsagent/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const chatWriteTimeout = 10 * time.Second

// ChatHandler serves GET /api/v1/chat. Each connection is one memory
// session: ?session_id= resumes an existing one, otherwise a new UUID is
// assigned and announced in every reply.
type ChatHandler struct {
	agents   *AgentHandler
	upgrader websocket.Upgrader
}

// NewChatHandler accepts upgrades from allowedOrigins ("*" allows any).
// Requests without an Origin header are always accepted.
func NewChatHandler(agents *AgentHandler, allowedOrigins []string) *ChatHandler {
	return &ChatHandler{
		agents: agents,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Chat upgrades the connection and answers one envelope per client frame.
func (c *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	apiKey := c.agents.callerKey(r)

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("chat upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	log.Info().Str("session_id", sessionID).Str("remote_addr", r.RemoteAddr).Msg("chat connected")
	defer log.Info().Str("session_id", sessionID).Msg("chat disconnected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("session_id", sessionID).Msg("chat read failed")
			}
			return
		}

		var msg models.ChatMessage
		var resp models.InvokeResponse
		if err := json.Unmarshal(data, &msg); err != nil {
			resp = models.InvokeResponse{SessionID: sessionID}
			resp.Error = "An error occurred: invalid message: " + err.Error()
		} else {
			resp, _ = c.agents.invoke(r.Context(), models.InvokeRequest{
				Query:             msg.Input,
				SessionID:         sessionID,
				Agent:             msg.Agent,
				IncludeTranscript: msg.IncludeTranscript,
			}, apiKey)
		}

		_ = conn.SetWriteDeadline(time.Now().Add(chatWriteTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("chat write failed")
			return
		}
	}
}
