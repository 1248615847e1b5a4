package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/cortexai/opsagent/internal/models"
	"github.com/cortexai/opsagent/internal/security"
	"github.com/cortexai/opsagent/internal/service"
	"github.com/cortexai/opsagent/internal/taskstore"
	"github.com/cortexai/opsagent/internal/tools"
)

func run(t *testing.T, tool tools.Tool, input string) (string, error) {
	t.Helper()
	return tool.Execute(context.Background(), input)
}

func TestCalculatorTool(t *testing.T) {
	tool := tools.CalculatorTool()
	if got, err := run(t, tool, "15 * (10 + 2)"); err != nil || got != "180" {
		t.Errorf("got %q, %v; want 180", got, err)
	}
	_, err := run(t, tool, "__import__('os')")
	var f *tools.Failure
	if !errors.As(err, &f) || f.Op != "evaluating expression" {
		t.Errorf("expected evaluating expression failure, got %v", err)
	}
}

func TestDateTool(t *testing.T) {
	fixed := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	got, err := run(t, tools.DateTool(func() time.Time { return fixed }), "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "2026-10-19 09:30:00 UTC (Monday)" {
		t.Errorf("got %q", got)
	}
}

type fakeWiki struct {
	mu    sync.Mutex
	calls int
	pages map[string]string
	err   error
}

func (f *fakeWiki) Summary(_ context.Context, title string, _ int) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if title == "Mercury" {
		return "", &service.DisambiguationError{Title: title, Options: []string{"a", "b", "c", "d", "e", "f"}}
	}
	if s, ok := f.pages[title]; ok {
		return s, nil
	}
	return "", service.ErrPageNotFound
}

func TestWikipediaTool(t *testing.T) {
	wiki := &fakeWiki{pages: map[string]string{"Paris": "Paris is the capital of France."}}
	tool := tools.WikipediaTool(wiki, service.NewTTLCache("wiki", time.Minute))

	tests := []struct {
		input string
		want  string
	}{
		{"Paris", "Paris is the capital of France."},
		{"Atlantis City", "Could not find a page for 'Atlantis City'."},
		{"Mercury", "Ambiguous query. Options: [a, b, c, d, e]"},
	}
	for _, tt := range tests {
		got, err := run(t, tool, tt.input)
		if err != nil {
			t.Fatalf("%s: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.input, got, tt.want)
		}
	}

	// Repeat lookups are served from the cache.
	calls := wiki.calls
	run(t, tool, "paris")
	run(t, tool, "Paris")
	if wiki.calls != calls {
		t.Errorf("expected cached answers, Summary called %d more times", wiki.calls-calls)
	}
}

func TestWikipediaTool_TransportError(t *testing.T) {
	tool := tools.WikipediaTool(&fakeWiki{err: errors.New("dial tcp: timeout")}, nil)
	if _, err := run(t, tool, "Paris"); err == nil {
		t.Fatal("expected error")
	}
}

type fakeBQ struct {
	dryBytes int64
	rows     []map[string]interface{}
	err      error
	queries  []service.QueryOptions
}

func (f *fakeBQ) ExecuteQuery(_ context.Context, sql string, opts service.QueryOptions) (*service.QueryResult, error) {
	f.queries = append(f.queries, opts)
	if f.err != nil {
		return nil, f.err
	}
	if opts.DryRun {
		return &service.QueryResult{TotalBytesProcessed: f.dryBytes}, nil
	}
	return &service.QueryResult{Data: f.rows, Columns: []string{"email", "total"}, TotalRows: int64(len(f.rows))}, nil
}

func TestQueryBigQueryTool(t *testing.T) {
	bq := &fakeBQ{rows: []map[string]interface{}{{"email": "john.doe@example.com", "total": int64(3)}}}
	tool := tools.QueryBigQueryTool(bq, tools.BigQueryGuard{
		Validator: security.NewSQLValidator(),
		Costs:     security.NewCostTracker(1 << 30),
		Masker:    security.NewDataMasker([]string{"email"}),
	})

	got, err := run(t, tool, "SELECT email, COUNT(*) AS total FROM `shop.orders` GROUP BY email;")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.Contains(got, "john.doe@example.com") {
		t.Errorf("email should be masked: %s", got)
	}
	var rows []map[string]interface{}
	if err := json.Unmarshal([]byte(got), &rows); err != nil || len(rows) != 1 {
		t.Fatalf("expected one JSON row, got %q (%v)", got, err)
	}
	if len(bq.queries) != 2 || !bq.queries[0].DryRun || bq.queries[1].DryRun {
		t.Errorf("expected dry run then execution, got %+v", bq.queries)
	}
}

func TestQueryBigQueryTool_Failures(t *testing.T) {
	guard := tools.BigQueryGuard{
		Validator: security.NewSQLValidator(),
		Costs:     security.NewCostTracker(1000),
	}

	tests := []struct {
		name    string
		bq      *fakeBQ
		sql     string
		wantSub string
	}{
		{"not a select", &fakeBQ{}, "DELETE FROM t", "only SELECT queries are allowed"},
		{"over budget", &fakeBQ{dryBytes: 5_000_000_000}, "SELECT * FROM t", "Query cost limit exceeded"},
		{"backend error", &fakeBQ{err: errors.New("Not found: Table p:d.t")}, "SELECT * FROM d.t", "Not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tools.QueryBigQueryTool(tt.bq, guard), tt.sql)
			var f *tools.Failure
			if !errors.As(err, &f) || f.Op != "executing BigQuery query" {
				t.Fatalf("expected BigQuery failure, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestQueryBigQueryTool_NoRows(t *testing.T) {
	got, err := run(t, tools.QueryBigQueryTool(&fakeBQ{}, tools.BigQueryGuard{}), "SELECT 1 FROM t WHERE false")
	if err != nil || got != "Query returned no results." {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestSampleBigQueryTableTool(t *testing.T) {
	bq := &fakeBQ{rows: []map[string]interface{}{{"email": "a@b.co", "total": 1}}}
	got, err := run(t, tools.SampleBigQueryTableTool(bq, nil), "shop.orders")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, `"table": "shop.orders"`) {
		t.Errorf("unexpected output %s", got)
	}
	if _, err := run(t, tools.SampleBigQueryTableTool(bq, nil), "orders"); err == nil {
		t.Error("expected error without dataset")
	}
}

type fakeCatalog struct{ calls int }

func (f *fakeCatalog) ListDatasets(context.Context) ([]models.DatasetInfo, error) {
	f.calls++
	return []models.DatasetInfo{{ID: "shop", Location: "US"}}, nil
}

func (f *fakeCatalog) ListTables(_ context.Context, ds string) ([]models.TableInfo, error) {
	f.calls++
	return []models.TableInfo{{ID: "orders", DatasetID: ds, Type: "TABLE", NumRows: 42}}, nil
}

func (f *fakeCatalog) GetTableSchema(context.Context, string, string) (bigquery.Schema, *bigquery.TableMetadata, error) {
	f.calls++
	schema := bigquery.Schema{
		{Name: "id", Type: bigquery.StringFieldType, Required: true},
		{Name: "items", Type: bigquery.RecordFieldType, Repeated: true},
	}
	return schema, &bigquery.TableMetadata{NumRows: 42}, nil
}

func TestDescribeBigQueryTool(t *testing.T) {
	cat := &fakeCatalog{}
	tool := tools.DescribeBigQueryTool(cat, service.NewTTLCache("schema", time.Minute))

	tests := []struct {
		input   string
		wantSub string
	}{
		{"", "shop (US)"},
		{"shop", "orders (type: TABLE, rows: 42)"},
		{"shop.orders", "id STRING REQUIRED"},
	}
	for _, tt := range tests {
		got, err := run(t, tool, tt.input)
		if err != nil {
			t.Fatalf("%q: %v", tt.input, err)
		}
		if !strings.Contains(got, tt.wantSub) {
			t.Errorf("%q: output %q should contain %q", tt.input, got, tt.wantSub)
		}
	}
	run(t, tool, "shop.orders")
	if cat.calls != 3 {
		t.Errorf("expected cached schema, catalog called %d times", cat.calls)
	}
}

type fakeLogs struct {
	filter  string
	records []service.LogRecord
}

func (f *fakeLogs) Entries(_ context.Context, filter string, limit int) ([]service.LogRecord, error) {
	f.filter = filter
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func TestQueryGCPLogsTool(t *testing.T) {
	logs := &fakeLogs{}
	got, err := run(t, tools.QueryGCPLogsTool(logs, 0), ` severity=ERROR `)
	if err != nil || got != "No logs found." {
		t.Errorf("got %q, %v", got, err)
	}
	if logs.filter != "severity=ERROR" {
		t.Errorf("filter = %q", logs.filter)
	}

	logs.records = []service.LogRecord{{Severity: "ERROR", Payload: "disk full"}}
	got, err = run(t, tools.QueryGCPLogsTool(logs, 0), "severity=ERROR")
	if err != nil || !strings.Contains(got, "disk full") {
		t.Errorf("got %q, %v", got, err)
	}
}

type fakeSearch struct{ index, query string }

func (f *fakeSearch) SearchLogs(_ context.Context, index, query string, size int) (*models.SearchResponse, error) {
	f.index, f.query = index, query
	return &models.SearchResponse{
		TotalHits: 1,
		Hits:      []map[string]interface{}{{"_id": "1", "_source": map[string]interface{}{"message": "upstream timeout"}}},
	}, nil
}

func TestSearchLogsTool(t *testing.T) {
	es := &fakeSearch{}
	tool := tools.SearchLogsTool(es, "logs-*", 5)

	got, err := run(t, tool, "status:500")
	if err != nil || !strings.Contains(got, "upstream timeout") {
		t.Fatalf("got %q, %v", got, err)
	}
	if es.index != "logs-*" || es.query != "status:500" {
		t.Errorf("searched %q for %q", es.index, es.query)
	}

	run(t, tool, "nginx-* | level:error")
	if es.index != "nginx-*" || es.query != "level:error" {
		t.Errorf("searched %q for %q", es.index, es.query)
	}
}

type fakeMetrics struct{ window time.Duration }

func (f *fakeMetrics) TimeSeries(_ context.Context, _ string, window time.Duration) ([]service.MetricSeries, error) {
	f.window = window
	return nil, nil
}

func TestQueryGCPMetricsTool(t *testing.T) {
	m := &fakeMetrics{}
	got, err := run(t, tools.QueryGCPMetricsTool(m, 0), `metric.type = "compute.googleapis.com/instance/cpu/utilization"`)
	if err != nil || got != "No metric data found." {
		t.Errorf("got %q, %v", got, err)
	}
	if m.window != 10*time.Minute {
		t.Errorf("window = %s, want 10m", m.window)
	}
	if _, err := run(t, tools.QueryGCPMetricsTool(m, 0), " "); err == nil {
		t.Error("empty filter should fail")
	}
}

const sampleState = `{
  "version": 4,
  "resources": [
    {"mode": "managed", "type": "google_compute_instance", "name": "web",
     "instances": [{"attributes": {"name": "web-1", "zone": "us-central1-a"}},
                   {"attributes": {"name": "web-2", "zone": "us-central1-b"}}]},
    {"mode": "data", "type": "google_compute_instance", "name": "lookup",
     "instances": [{"attributes": {"name": "external"}}]},
    {"mode": "managed", "type": "google_storage_bucket", "name": "assets",
     "instances": [{"attributes": {"name": "assets-bucket"}}]}
  ]
}`

type fakeStates struct {
	bucket string
	err    error
}

func (f *fakeStates) ReadState(_ context.Context, bucket string) ([]byte, error) {
	f.bucket = bucket
	return []byte(sampleState), f.err
}

func TestQueryTerraformStateTool(t *testing.T) {
	states := &fakeStates{}
	tool := tools.QueryTerraformStateTool(states)

	got, err := run(t, tool, "my-tf-bucket/google_compute_instance")
	if err != nil {
		t.Fatal(err)
	}
	if states.bucket != "my-tf-bucket" {
		t.Errorf("bucket = %q", states.bucket)
	}
	if !strings.Contains(got, "web-1") || !strings.Contains(got, "web-2") || strings.Contains(got, "external") {
		t.Errorf("unexpected resources: %s", got)
	}

	got, _ = run(t, tool, "my-tf-bucket/google_sql_database")
	if got != "No resources of type 'google_sql_database' found." {
		t.Errorf("got %q", got)
	}

	_, err = run(t, tool, "no-slash")
	if err == nil || !strings.HasPrefix(err.Error(), "reading Terraform state from GCS") {
		t.Errorf("expected format error, got %v", err)
	}
}

func TestParseTrigger(t *testing.T) {
	url, payload, err := tools.ParseTrigger(`https://fn.example.com/run {"key": "value"}`)
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://fn.example.com/run" || string(payload) != `{"key": "value"}` {
		t.Errorf("got %q %s", url, payload)
	}

	_, payload, err = tools.ParseTrigger("https://fn.example.com/run")
	if err != nil || string(payload) != "{}" {
		t.Errorf("missing payload should default to {}, got %s, %v", payload, err)
	}

	for _, bad := range []string{"", "ftp://x {}", "not-a-url {}", "https://fn.example.com {bad json"} {
		if _, _, err := tools.ParseTrigger(bad); err == nil {
			t.Errorf("ParseTrigger(%q) should fail", bad)
		}
	}
}

type fakeCaller struct {
	payload json.RawMessage
	err     error
}

func (f *fakeCaller) Invoke(_ context.Context, _ string, payload json.RawMessage) (string, error) {
	f.payload = payload
	return `{"ok":true}`, f.err
}

func TestTriggerCloudFunctionTool(t *testing.T) {
	fn := &fakeCaller{}
	got, err := run(t, tools.TriggerCloudFunctionTool(fn), `https://fn.example.com {"a": 1}`)
	if err != nil {
		t.Fatal(err)
	}
	if got != `Successfully triggered Cloud Function. Response: {"ok":true}` {
		t.Errorf("got %q", got)
	}

	fn.err = errors.New("403 Forbidden")
	_, err = run(t, tools.TriggerCloudFunctionTool(fn), `https://fn.example.com {}`)
	if err == nil || err.Error() != "triggering Cloud Function: 403 Forbidden" {
		t.Errorf("got %v", err)
	}
}

func TestTaskTools(t *testing.T) {
	store := taskstore.NewMemoryStore()

	got, err := run(t, tools.ListTasksTool(store), "")
	if err != nil || got != "No tasks found." {
		t.Errorf("got %q, %v", got, err)
	}

	got, err = run(t, tools.AddTaskTool(store), "Refactor the authentication module")
	if err != nil || !strings.HasPrefix(got, "Successfully added task with ID: ") {
		t.Fatalf("got %q, %v", got, err)
	}

	got, err = run(t, tools.ListTasksTool(store), "")
	if err != nil || !strings.Contains(got, "1. Refactor the authentication module [pending]") {
		t.Errorf("got %q, %v", got, err)
	}

	if _, err := run(t, tools.AddTaskTool(store), "  "); !errors.Is(err, taskstore.ErrEmptyDescription) {
		t.Errorf("expected ErrEmptyDescription, got %v", err)
	}
}
