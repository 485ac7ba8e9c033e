// Package pubsub publishes article records to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

// Config names the destination topic.
type Config struct {
	ProjectID string
	TopicID   string
}

// Publisher sends one message and returns the server-assigned ID.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// Sink publishes each record as a JSON message.
type Sink struct {
	publisher Publisher
	closer    func() error
}

var _ harvest.Sink = (*Sink)(nil)

// New creates a Pub/Sub client and binds the configured topic.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("sink.pubsub.project_id and sink.pubsub.topic_id are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.TopicID)
	return &Sink{
		publisher: &topicPublisher{topic: topic},
		closer: func() error {
			topic.Stop()
			return client.Close()
		},
	}, nil
}

// NewWithPublisher wraps an existing Publisher (primarily for testing).
func NewWithPublisher(p Publisher) *Sink {
	return &Sink{publisher: p}
}

// Emit marshals the record to JSON and publishes it. Attributes carry the
// run, status and dedup key so subscribers can filter without decoding.
func (s *Sink) Emit(ctx context.Context, record harvest.ArticleRecord) error {
	if s == nil || s.publisher == nil {
		return fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	attrs := map[string]string{
		"run_id":  record.RunID,
		"url_key": record.Key,
		"status":  string(record.Status.Kind),
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(attrs))

	if _, err := s.publisher.Publish(ctx, data, attrs); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the client.
func (s *Sink) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	if err := s.closer(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

type topicPublisher struct {
	topic *pubsub.Topic
}

func (p *topicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("await publish result: %w", err)
	}
	return id, nil
}
