package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/cortexai/opsagent/internal/security"
	"github.com/cortexai/opsagent/internal/service"
)

// SampleBigQueryTableTool fetches a few rows from a table so the agent can
// see real values and join keys before writing SQL.
func SampleBigQueryTableTool(bq QueryRunner, masker *security.DataMasker) Tool {
	return Tool{
		Name:        "SampleBigQueryTable",
		Description: "Use to get 3 sample rows from a BigQuery table. Input must be 'dataset.table'.",
		Execute: func(ctx context.Context, input string) (string, error) {
			datasetID, tableID := splitQualified(input)
			if datasetID == "" || tableID == "" {
				return "", Fail("sampling BigQuery table", errors.New("input must be 'dataset.table'"))
			}

			sql := fmt.Sprintf("SELECT * FROM `%s.%s` LIMIT 3", datasetID, tableID)
			result, err := bq.ExecuteQuery(ctx, sql, service.QueryOptions{MaxRows: 3})
			if err != nil {
				return "", Fail("sampling BigQuery table", err)
			}
			if len(result.Data) == 0 {
				return fmt.Sprintf("Table %s.%s has no rows.", datasetID, tableID), nil
			}

			rows := result.Data
			if masker != nil {
				rows = masker.MaskRows(rows)
			}
			return indentJSON(map[string]interface{}{
				"table":   datasetID + "." + tableID,
				"columns": result.Columns,
				"sample":  rows,
			})
		},
	}
}
