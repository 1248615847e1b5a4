package service

import (
	"context"
	"fmt"
	"time"

	monitoring "cloud.google.com/go/monitoring/apiv3/v2"
	"cloud.google.com/go/monitoring/apiv3/v2/monitoringpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// MetricPoint is one sample of a time series.
type MetricPoint struct {
	Value float64   `json:"value"`
	Time  time.Time `json:"time"`
}

// MetricSeries is one monitored resource's samples for a metric.
type MetricSeries struct {
	Metric   string            `json:"metric"`
	Resource map[string]string `json:"resource"`
	Points   []MetricPoint     `json:"points"`
}

// MonitoringService lists time series from Cloud Monitoring.
type MonitoringService struct {
	client    *monitoring.MetricClient
	projectID string
}

// NewMonitoringService creates a metric client for projectID.
func NewMonitoringService(ctx context.Context, projectID, credentialsFile string) (*MonitoringService, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := monitoring.NewMetricClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("monitoring.NewMetricClient: %w", err)
	}
	return &MonitoringService{client: client, projectID: projectID}, nil
}

// Close releases the metric client
func (s *MonitoringService) Close() error {
	return s.client.Close()
}

// TimeSeries returns every series matching filter over the trailing window.
func (s *MonitoringService) TimeSeries(ctx context.Context, filter string, window time.Duration) ([]MetricSeries, error) {
	if window <= 0 {
		window = 10 * time.Minute
	}
	end := time.Now().UTC()
	req := &monitoringpb.ListTimeSeriesRequest{
		Name:   "projects/" + s.projectID,
		Filter: filter,
		Interval: &monitoringpb.TimeInterval{
			StartTime: timestamppb.New(end.Add(-window)),
			EndTime:   timestamppb.New(end),
		},
		View: monitoringpb.ListTimeSeriesRequest_FULL,
	}

	var out []MetricSeries
	it := s.client.ListTimeSeries(ctx, req)
	for {
		ts, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list time series: %w", err)
		}
		series := MetricSeries{
			Metric:   ts.GetMetric().GetType(),
			Resource: ts.GetResource().GetLabels(),
		}
		for _, p := range ts.GetPoints() {
			series.Points = append(series.Points, MetricPoint{
				Value: pointValue(p.GetValue()),
				Time:  p.GetInterval().GetEndTime().AsTime(),
			})
		}
		out = append(out, series)
	}
	return out, nil
}

func pointValue(v *monitoringpb.TypedValue) float64 {
	switch x := v.GetValue().(type) {
	case *monitoringpb.TypedValue_DoubleValue:
		return x.DoubleValue
	case *monitoringpb.TypedValue_Int64Value:
		return float64(x.Int64Value)
	case *monitoringpb.TypedValue_BoolValue:
		if x.BoolValue {
			return 1
		}
		return 0
	case *monitoringpb.TypedValue_DistributionValue:
		return x.DistributionValue.GetMean()
	default:
		return 0
	}
}
