// Package pubsub implements a Google Cloud Pub/Sub run-summary publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// Publisher wraps a Pub/Sub client for a single topic.
type Publisher struct {
	client *pubsub.Client
	topic  string
}

// New creates a Publisher for the given project and topic. It authenticates
// using Application Default Credentials.
func New(ctx context.Context, projectID, topic string) (*Publisher, error) {
	if projectID == "" || topic == "" {
		return nil, fmt.Errorf("pubsub project_id and topic_name are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Publish marshals the payload to JSON and publishes it, returning the
// server-assigned message ID.
func (p *Publisher) Publish(ctx context.Context, payload any) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	result := p.client.Publisher(p.topic).Publish(ctx, &pubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close releases the underlying client.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
