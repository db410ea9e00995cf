// Package pubsub publishes notifications to a Google Cloud Pub/Sub topic
// for downstream delivery fan-out.
package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// Pusher implements watch.Pusher by publishing one message per
// notification. Consumers route on the recipient attribute.
type Pusher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// New connects to Pub/Sub and binds the topic.
func New(ctx context.Context, projectID, topicID string) (*Pusher, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Pusher{
		client: client,
		topic:  client.Topic(topicID),
	}, nil
}

// Push publishes the message and waits for the server-assigned id.
func (p *Pusher) Push(ctx context.Context, recipient string, text string) error {
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       []byte(text),
		Attributes: map[string]string{"recipient": recipient},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close flushes pending publishes and releases the client.
func (p *Pusher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
