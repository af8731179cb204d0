package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// PubSubFanout mirrors every webhook payload onto a Pub/Sub topic, letting
// downstream consumers subscribe to job progress without polling the API
// (SPEC_FULL.md Domain Stack). Grounded on the teacher's
// internal/queue/pubsub_queue.go fire-and-forget publish pattern.
type PubSubFanout struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	log    *zap.Logger
}

// NewPubSubFanout authenticates via Application Default Credentials and
// resolves the given topic.
func NewPubSubFanout(ctx context.Context, projectID, topicID string, log *zap.Logger) (*PubSubFanout, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &PubSubFanout{client: client, topic: client.Topic(topicID), log: log}, nil
}

// Publish marshals payload to JSON, publishes it and waits for the publish
// result (or for ctx to end), returning any publish failure to the caller.
func (f *PubSubFanout) Publish(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal fanout payload: %w", err)
	}
	result := f.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish fanout message: %w", err)
	}
	return nil
}

// Close releases the underlying Pub/Sub client.
func (f *PubSubFanout) Close() error {
	f.topic.Stop()
	return f.client.Close()
}
