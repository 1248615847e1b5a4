package tools

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/cortexai/opsagent/internal/models"
	"github.com/cortexai/opsagent/internal/service"
)

// BigQueryCatalog lists datasets, tables and schemas.
type BigQueryCatalog interface {
	ListDatasets(ctx context.Context) ([]models.DatasetInfo, error)
	ListTables(ctx context.Context, datasetID string) ([]models.TableInfo, error)
	GetTableSchema(ctx context.Context, datasetID, tableID string) (bigquery.Schema, *bigquery.TableMetadata, error)
}

// DescribeBigQueryTool walks the BigQuery catalog: no input lists datasets,
// "dataset" lists its tables, "dataset.table" shows the schema. Descriptions
// are cached per input when cache is non-nil.
func DescribeBigQueryTool(bq BigQueryCatalog, cache *service.TTLCache) Tool {
	describe := func(ctx context.Context, datasetID, tableID string) (string, error) {
		switch {
		case datasetID == "":
			datasets, err := bq.ListDatasets(ctx)
			if err != nil {
				return "", Fail("listing BigQuery datasets", err)
			}
			if len(datasets) == 0 {
				return "No datasets found.", nil
			}
			var sb strings.Builder
			sb.WriteString("Datasets:\n")
			for _, d := range datasets {
				fmt.Fprintf(&sb, "  - %s", d.ID)
				if d.Location != "" {
					fmt.Fprintf(&sb, " (%s)", d.Location)
				}
				if d.Description != "" {
					fmt.Fprintf(&sb, ": %s", d.Description)
				}
				sb.WriteString("\n")
			}
			return sb.String(), nil

		case tableID == "":
			tables, err := bq.ListTables(ctx, datasetID)
			if err != nil {
				return "", Fail("listing BigQuery tables", err)
			}
			if len(tables) == 0 {
				return fmt.Sprintf("Dataset %q has no tables.", datasetID), nil
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "Tables in dataset %q:\n", datasetID)
			for _, t := range tables {
				fmt.Fprintf(&sb, "  - %s (type: %s, rows: %d)\n", t.ID, t.Type, t.NumRows)
			}
			return sb.String(), nil

		default:
			schema, meta, err := bq.GetTableSchema(ctx, datasetID, tableID)
			if err != nil {
				return "", Fail("getting BigQuery schema", err)
			}
			return fmt.Sprintf("Table: %s.%s\nRows: %d\nSchema:\n%s",
				datasetID, tableID, meta.NumRows, service.SchemaToString(schema)), nil
		}
	}

	return Tool{
		Name:        "DescribeBigQuery",
		Description: "Use to explore BigQuery before writing SQL. Empty input lists datasets, 'dataset' lists its tables, 'dataset.table' shows the table schema.",
		Execute: func(ctx context.Context, input string) (string, error) {
			datasetID, tableID := splitQualified(input)
			if cache == nil {
				return describe(ctx, datasetID, tableID)
			}
			return cache.GetOrFetch(ctx, datasetID+"."+tableID, func(ctx context.Context) (string, error) {
				return describe(ctx, datasetID, tableID)
			})
		},
	}
}
