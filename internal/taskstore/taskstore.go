// Package taskstore persists the task agent's to-do items.
package taskstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StatusPending is the status every new task starts in.
const StatusPending = "pending"

// ErrEmptyDescription is returned by Add for blank descriptions.
var ErrEmptyDescription = errors.New("task description is required")

// Task is one stored to-do item.
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store adds and lists tasks. Implementations are safe for concurrent use.
type Store interface {
	Add(ctx context.Context, description string) (Task, error)
	List(ctx context.Context) ([]Task, error)
	Close() error
}

// Config selects and configures a Store.
type Config struct {
	Driver          string `json:"driver" yaml:"driver"` // memory | sqlite | postgres | firestore
	DSN             string `json:"dsn" yaml:"dsn"`
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Collection      string `json:"collection" yaml:"collection"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// Open builds the Store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.DSN)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	case "firestore":
		return NewFirestoreStore(ctx, cfg.ProjectID, cfg.Collection, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown task store driver %q", cfg.Driver)
	}
}

// NewID generates a new UUIDv7.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func newTask(description string) (Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Task{}, ErrEmptyDescription
	}
	return Task{
		ID:          NewID(),
		Description: description,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
