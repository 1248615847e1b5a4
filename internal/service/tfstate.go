package service

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// DefaultStateObject is the object name Terraform's gcs backend writes for
// the default workspace when no prefix is set.
const DefaultStateObject = "terraform.tfstate"

// maxStateBytes bounds how much of a state file is read into memory.
const maxStateBytes = 64 << 20

// StateService reads Terraform state files from Cloud Storage.
type StateService struct {
	client *storage.Client
	object string
}

// NewStateService creates a storage client. object defaults to DefaultStateObject.
func NewStateService(ctx context.Context, credentialsFile, object string) (*StateService, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	if object == "" {
		object = DefaultStateObject
	}
	return &StateService{client: client, object: object}, nil
}

// Close releases the storage client
func (s *StateService) Close() error {
	return s.client.Close()
}

// ReadState downloads the state object from bucket.
func (s *StateService) ReadState(ctx context.Context, bucket string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, s.object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxStateBytes))
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", bucket, s.object, err)
	}
	return data, nil
}
