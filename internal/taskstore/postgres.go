package taskstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps tasks in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and creates the tasks table if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres task store: dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Add(ctx context.Context, description string) (Task, error) {
	t, err := newTask(description)
	if err != nil {
		return Task{}, err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO tasks (id, description, status, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Description, t.Status, t.CreatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// List returns tasks oldest first.
func (s *PostgresStore) List(ctx context.Context) ([]Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, description, status, created_at FROM tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Task, error) {
		var t Task
		err := row.Scan(&t.ID, &t.Description, &t.Status, &t.CreatedAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
