package agent

import (
	"sync"
	"time"
)

// Turn is one completed exchange kept in conversation memory.
type Turn struct {
	Input  string    `json:"input"`
	Output string    `json:"output"`
	At     time.Time `json:"at"`
}

// DefaultSession is used when a caller does not name a session, which makes
// memory process-wide for that caller.
const DefaultSession = "default"

// Memory holds conversation turns per session for the lifetime of the
// process. With maxTurns == 0 growth is unbounded; otherwise only the last
// maxTurns pairs are kept.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*session
	maxTurns int
}

type session struct {
	mu    sync.Mutex
	turns []Turn
}

// NewMemory creates an empty memory store.
func NewMemory(maxTurns int) *Memory {
	if maxTurns < 0 {
		maxTurns = 0
	}
	return &Memory{
		sessions: make(map[string]*session),
		maxTurns: maxTurns,
	}
}

func (m *Memory) session(id string, create bool) *session {
	if id == "" {
		id = DefaultSession
	}
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok || !create {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.sessions[id]; !ok {
		s = &session{}
		m.sessions[id] = s
	}
	return s
}

// History returns a copy of the session's turns, oldest first.
func (m *Memory) History(id string) []Turn {
	s := m.session(id, false)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Append records a turn. Appends to the same session are serialized.
func (m *Memory) Append(id, input, output string) {
	s := m.session(id, true)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, Turn{Input: input, Output: output, At: time.Now()})
	if m.maxTurns > 0 && len(s.turns) > m.maxTurns {
		kept := make([]Turn, m.maxTurns)
		copy(kept, s.turns[len(s.turns)-m.maxTurns:])
		s.turns = kept
	}
}

// Reset drops a session. It reports whether the session existed.
func (m *Memory) Reset(id string) bool {
	if id == "" {
		id = DefaultSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// Sessions reports how many sessions currently hold memory.
func (m *Memory) Sessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// MaxTurns returns the retention window (0 = unbounded).
func (m *Memory) MaxTurns() int { return m.maxTurns }
