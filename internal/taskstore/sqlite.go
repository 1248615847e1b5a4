package taskstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps tasks in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "tasks.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps
	// ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
	`)
	return err
}

func (s *SQLiteStore) Add(ctx context.Context, description string) (Task, error) {
	t, err := newTask(description)
	if err != nil {
		return Task{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, description, status, created_at)
		VALUES (?, ?, ?, ?)
	`, t.ID, t.Description, t.Status, t.CreatedAt.Format(timeLayout))
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// List returns tasks oldest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, status, created_at
		FROM tasks ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Description, &t.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
