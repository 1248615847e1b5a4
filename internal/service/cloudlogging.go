package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/logging/logadmin"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// LogRecord is one Cloud Logging entry reduced to what the agent reads.
type LogRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	Severity  string      `json:"severity"`
	LogName   string      `json:"log_name,omitempty"`
	Payload   interface{} `json:"payload"`
}

// LoggingService reads entries through the Cloud Logging admin client.
type LoggingService struct {
	client    *logadmin.Client
	projectID string
}

// NewLoggingService creates a logadmin client for projectID.
func NewLoggingService(ctx context.Context, projectID, credentialsFile string) (*LoggingService, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := logadmin.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("logadmin.NewClient: %w", err)
	}
	return &LoggingService{client: client, projectID: projectID}, nil
}

// Close releases the logging client
func (s *LoggingService) Close() error {
	return s.client.Close()
}

// Entries returns at most limit entries matching filter, newest first.
func (s *LoggingService) Entries(ctx context.Context, filter string, limit int) ([]LogRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	it := s.client.Entries(ctx, logadmin.Filter(filter), logadmin.NewestFirst())

	var out []LogRecord
	for len(out) < limit {
		e, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		out = append(out, LogRecord{
			Timestamp: e.Timestamp,
			Severity:  e.Severity.String(),
			LogName:   e.LogName,
			Payload:   plainPayload(e.Payload),
		})
	}
	return out, nil
}

// plainPayload converts proto payloads into values encoding/json renders
// the way Cloud Logging displays them.
func plainPayload(p interface{}) interface{} {
	switch v := p.(type) {
	case *structpb.Struct:
		return v.AsMap()
	case proto.Message:
		b, err := protojson.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return json.RawMessage(b)
	default:
		return v
	}
}
