package taskstore

import (
	"context"
	"sync"
)

// MemoryStore keeps tasks for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks []Task
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Add(_ context.Context, description string) (Task, error) {
	t, err := newTask(description)
	if err != nil {
		return Task{}, err
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return t, nil
}

// List returns tasks in insertion order.
func (s *MemoryStore) List(_ context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
