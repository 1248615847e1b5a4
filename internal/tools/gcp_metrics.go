package tools

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cortexai/opsagent/internal/service"
)

// MetricReader lists Cloud Monitoring time series.
type MetricReader interface {
	TimeSeries(ctx context.Context, filter string, window time.Duration) ([]service.MetricSeries, error)
}

// DefaultMetricWindow is the trailing window QueryGCPMetrics reads.
const DefaultMetricWindow = 10 * time.Minute

// QueryGCPMetricsTool reads recent samples for a metric filter.
func QueryGCPMetricsTool(metrics MetricReader, window time.Duration) Tool {
	if window <= 0 {
		window = DefaultMetricWindow
	}
	return Tool{
		Name:        "QueryGCPMetrics",
		Description: `Use to query Google Cloud Monitoring metrics. Input must be a valid metric filter, like 'metric.type = "compute.googleapis.com/instance/cpu/utilization"'.`,
		Execute: func(ctx context.Context, input string) (string, error) {
			filter := strings.TrimSpace(input)
			if filter == "" {
				return "", Fail("querying GCP metrics", errors.New("metric filter is required"))
			}
			series, err := metrics.TimeSeries(ctx, filter, window)
			if err != nil {
				return "", Fail("querying GCP metrics", err)
			}
			if len(series) == 0 {
				return "No metric data found.", nil
			}
			out, err := indentJSON(series)
			if err != nil {
				return "", Fail("querying GCP metrics", err)
			}
			return out, nil
		},
	}
}
