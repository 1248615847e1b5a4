package taskstore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultCollection is the Firestore collection tasks are written to.
const DefaultCollection = "tasks"

// FirestoreStore keeps tasks as documents in a Firestore collection.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

type taskDoc struct {
	Description string    `firestore:"description"`
	Status      string    `firestore:"status"`
	CreatedAt   time.Time `firestore:"created_at"`
}

// NewFirestoreStore creates a Firestore client for projectID.
func NewFirestoreStore(ctx context.Context, projectID, collection, credentialsFile string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore task store: project id is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

// Add writes a document whose id is the task id.
func (s *FirestoreStore) Add(ctx context.Context, description string) (Task, error) {
	t, err := newTask(description)
	if err != nil {
		return Task{}, err
	}
	_, err = s.client.Collection(s.collection).Doc(t.ID).Create(ctx, taskDoc{
		Description: t.Description,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
	})
	if err != nil {
		return Task{}, fmt.Errorf("create document: %w", err)
	}
	return t, nil
}

// List returns tasks oldest first.
func (s *FirestoreStore) List(ctx context.Context) ([]Task, error) {
	it := s.client.Collection(s.collection).OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer it.Stop()

	var tasks []Task
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		var d taskDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode %s: %w", snap.Ref.ID, err)
		}
		tasks = append(tasks, Task{
			ID:          snap.Ref.ID,
			Description: d.Description,
			Status:      d.Status,
			CreatedAt:   d.CreatedAt,
		})
	}
	return tasks, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
