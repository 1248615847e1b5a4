package tools

import (
	"context"
	"strings"

	"github.com/cortexai/opsagent/internal/service"
)

// LogReader lists Cloud Logging entries.
type LogReader interface {
	Entries(ctx context.Context, filter string, limit int) ([]service.LogRecord, error)
}

// DefaultLogLimit is how many entries QueryGCPLogs returns.
const DefaultLogLimit = 5

// QueryGCPLogsTool queries Cloud Logging with a filter expression.
func QueryGCPLogsTool(logs LogReader, limit int) Tool {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return Tool{
		Name:        "QueryGCPLogs",
		Description: "Use to query Google Cloud logs. Input must be a valid GCP logging filter string.",
		Execute: func(ctx context.Context, input string) (string, error) {
			entries, err := logs.Entries(ctx, strings.TrimSpace(input), limit)
			if err != nil {
				return "", Fail("querying GCP logs", err)
			}
			if len(entries) == 0 {
				return "No logs found.", nil
			}
			out, err := indentJSON(entries)
			if err != nil {
				return "", Fail("querying GCP logs", err)
			}
			return out, nil
		},
	}
}
