// Package pubsub publishes crawl notifications to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// Config captures the Pub/Sub destination.
type Config struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

type publishFunc func(ctx context.Context, msg *pubsub.Message) (string, error)

// Publisher wraps a Pub/Sub topic.
type Publisher struct {
	publish publishFunc
	stop    func()
}

// New creates a Publisher for the provided topic.
func New(topic *pubsub.Topic) *Publisher {
	if topic == nil {
		return &Publisher{}
	}
	return &Publisher{
		publish: func(ctx context.Context, msg *pubsub.Message) (string, error) {
			return topic.Publish(ctx, msg).Get(ctx)
		},
		stop: topic.Stop,
	}
}

// Dial opens a client and returns a Publisher for cfg.TopicID along with the
// client so the caller can close it.
func Dial(ctx context.Context, cfg Config) (*Publisher, *pubsub.Client, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, nil, fmt.Errorf("notify.project_id and notify.topic_id are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return New(client.Topic(cfg.TopicID)), client, nil
}

// Publish marshals the payload to JSON and publishes it. The event name is
// carried in the "event" attribute.
func (p *Publisher) Publish(ctx context.Context, event string, payload any) (string, error) {
	if p.publish == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"event": event},
	}
	id, err := p.publish(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *Publisher) Stop() {
	if p.stop != nil {
		p.stop()
	}
}
