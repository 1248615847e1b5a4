package tools

import (
	"context"
	"time"
)

// DateTool reports the current local date and time. now defaults to time.Now.
func DateTool(now func() time.Time) Tool {
	if now == nil {
		now = time.Now
	}
	return Tool{
		Name:        "DateTool",
		Description: "Use to get the current date and time.",
		Execute: func(context.Context, string) (string, error) {
			return now().Format("2006-01-02 15:04:05 MST (Monday)"), nil
		},
	}
}
