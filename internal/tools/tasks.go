package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cortexai/opsagent/internal/taskstore"
)

// TaskStore is the subset of taskstore.Store the task tools use.
type TaskStore interface {
	Add(ctx context.Context, description string) (taskstore.Task, error)
	List(ctx context.Context) ([]taskstore.Task, error)
}

// AddTaskTool stores a new pending task.
func AddTaskTool(store TaskStore) Tool {
	return Tool{
		Name:        "AddTask",
		Description: "Use to create a new task. Input should be the task description.",
		Execute: func(ctx context.Context, input string) (string, error) {
			t, err := store.Add(ctx, input)
			if err != nil {
				return "", Fail("adding task", err)
			}
			return "Successfully added task with ID: " + t.ID, nil
		},
	}
}

// ListTasksTool lists every stored task.
func ListTasksTool(store TaskStore) Tool {
	return Tool{
		Name:        "ListTasks",
		Description: "Use to retrieve all current tasks. Input is ignored.",
		Execute: func(ctx context.Context, _ string) (string, error) {
			tasks, err := store.List(ctx)
			if err != nil {
				return "", Fail("listing tasks", err)
			}
			if len(tasks) == 0 {
				return "No tasks found.", nil
			}
			var sb strings.Builder
			for i, t := range tasks {
				fmt.Fprintf(&sb, "%d. %s [%s] (id: %s, created %s)\n",
					i+1, t.Description, t.Status, t.ID, t.CreatedAt.Format("2006-01-02 15:04"))
			}
			return strings.TrimRight(sb.String(), "\n"), nil
		},
	}
}
