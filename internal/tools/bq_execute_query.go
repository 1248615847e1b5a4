package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cortexai/opsagent/internal/security"
	"github.com/cortexai/opsagent/internal/service"
)

// QueryRunner executes BigQuery SQL.
type QueryRunner interface {
	ExecuteQuery(ctx context.Context, sql string, opts service.QueryOptions) (*service.QueryResult, error)
}

// BigQueryGuard bundles the checks applied around every agent-issued query.
// Nil members are skipped.
type BigQueryGuard struct {
	Validator *security.SQLValidator
	Costs     *security.CostTracker
	Masker    *security.DataMasker
	Audit     *security.AuditLogger
	MaxRows   int
	Timeout   time.Duration
}

// auditIdentity stands in for an API key in cost and audit logs; agent
// queries are issued by the service itself.
const auditIdentity = "opsagent"

// QueryBigQueryTool executes a SQL query and returns the rows as JSON.
func QueryBigQueryTool(bq QueryRunner, guard BigQueryGuard) Tool {
	return Tool{
		Name:        "QueryBigQuery",
		Description: "Use to execute a SQL query on BigQuery. Input must be a valid SQL query.",
		Execute: func(ctx context.Context, input string) (string, error) {
			sql := strings.TrimSuffix(strings.TrimSpace(input), ";")
			if sql == "" {
				return "", Fail("executing BigQuery query", errors.New("sql is required"))
			}

			if guard.Validator != nil {
				if msg := guard.Validator.Validate(sql); msg != "" {
					return "", Fail("executing BigQuery query", errors.New(msg))
				}
			}

			if guard.Costs != nil {
				dry, err := bq.ExecuteQuery(ctx, sql, service.QueryOptions{DryRun: true, Timeout: guard.Timeout})
				if err != nil {
					return "", Fail("executing BigQuery query", err)
				}
				if ok, msg := guard.Costs.CheckLimits(dry.TotalBytesProcessed, auditIdentity); !ok {
					return "", Fail("executing BigQuery query", errors.New(msg))
				}
			}

			start := time.Now()
			result, err := bq.ExecuteQuery(ctx, sql, service.QueryOptions{Timeout: guard.Timeout, MaxRows: guard.MaxRows})
			elapsed := time.Since(start).Milliseconds()
			if err != nil {
				guard.audit(sql, elapsed, 0, 0, err)
				return "", Fail("executing BigQuery query", err)
			}
			if guard.Costs != nil {
				guard.Costs.LogQueryCost(sql, result.TotalBytesProcessed, auditIdentity, elapsed)
			}
			guard.audit(sql, elapsed, len(result.Data), result.TotalBytesProcessed, nil)

			if len(result.Data) == 0 {
				return "Query returned no results.", nil
			}

			rows := result.Data
			if guard.Masker != nil {
				rows = guard.Masker.MaskRows(rows)
			}
			out, err := indentJSON(rows)
			if err != nil {
				return "", Fail("executing BigQuery query", err)
			}
			if result.Truncated {
				out += fmt.Sprintf("\n(showing the first %d of %d rows)", len(rows), result.TotalRows)
			}
			return out, nil
		},
	}
}

func (g BigQueryGuard) audit(sql string, ms int64, rows int, bytes int64, err error) {
	if g.Audit == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	g.Audit.LogQuery(sql, auditIdentity, "agent", ms, rows, bytes, err == nil, msg)
}
