package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cortexai/opsagent/internal/models"
)

// LogSearcher runs free-text searches over log indices.
type LogSearcher interface {
	SearchLogs(ctx context.Context, index, query string, size int) (*models.SearchResponse, error)
}

// SearchLogsTool searches Elasticsearch log indices with a Lucene query
// string. Input is "index-pattern | query" or just the query, which then
// runs against defaultIndex.
func SearchLogsTool(es LogSearcher, defaultIndex string, size int) Tool {
	if size <= 0 {
		size = 10
	}
	return Tool{
		Name: "SearchLogs",
		Description: fmt.Sprintf("Use to search application logs in Elasticsearch. Input is a Lucene query such as 'level:error AND service:api', "+
			"optionally prefixed with an index pattern and '|', like 'logs-* | status:500'. Default index: %s.", defaultIndex),
		Execute: func(ctx context.Context, input string) (string, error) {
			index, query := defaultIndex, strings.TrimSpace(input)
			if before, after, ok := strings.Cut(query, "|"); ok {
				index, query = strings.TrimSpace(before), strings.TrimSpace(after)
			}
			if index == "" {
				return "", Fail("searching logs", errors.New("index pattern is required"))
			}

			resp, err := es.SearchLogs(ctx, index, query, size)
			if err != nil {
				return "", Fail("searching logs", err)
			}
			if len(resp.Hits) == 0 {
				return "No matching log documents found.", nil
			}

			docs := make([]interface{}, 0, len(resp.Hits))
			for _, h := range resp.Hits {
				if src, ok := h["_source"]; ok {
					docs = append(docs, src)
				} else {
					docs = append(docs, h)
				}
			}
			out, err := indentJSON(map[string]interface{}{
				"total_hits": resp.TotalHits,
				"took_ms":    resp.Took,
				"documents":  docs,
			})
			if err != nil {
				return "", Fail("searching logs", err)
			}
			return out, nil
		},
	}
}
