package tools

import (
	"context"
	"fmt"
	"strings"
)

// IndexLister lists the log indices the agent may search.
type IndexLister interface {
	ListIndices(ctx context.Context) ([]map[string]interface{}, error)
}

// ListLogIndicesTool lists permitted Elasticsearch indices.
func ListLogIndicesTool(es IndexLister) Tool {
	return Tool{
		Name:        "ListLogIndices",
		Description: "Use to list the Elasticsearch log indices available to SearchLogs. Input is ignored.",
		Execute: func(ctx context.Context, _ string) (string, error) {
			indices, err := es.ListIndices(ctx)
			if err != nil {
				return "", Fail("listing log indices", err)
			}
			if len(indices) == 0 {
				return "No log indices found.", nil
			}

			var sb strings.Builder
			sb.WriteString("Log indices:\n")
			for _, idx := range indices {
				fmt.Fprintf(&sb, "  - %v (docs: %v, size: %v, health: %v)\n",
					idx["index"], idx["docs.count"], idx["store.size"], idx["health"])
			}
			return sb.String(), nil
		},
	}
}
