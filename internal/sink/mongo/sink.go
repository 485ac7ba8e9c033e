// Package mongo persists article records into a MongoDB collection.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

const (
	defaultCollection = "articles"
	connectTimeout    = 10 * time.Second
)

// Config captures the parameters required to connect to MongoDB.
type Config struct {
	URI        string
	Database   string
	Collection string
}

type collection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// document is the stored shape of an article record.
type document struct {
	URL         string     `bson:"url"`
	Key         string     `bson:"normalized_url"`
	RunID       string     `bson:"run_id"`
	Sitemap     string     `bson:"sitemap"`
	Title       *string    `bson:"title"`
	Author      *string    `bson:"author"`
	PublishedAt *time.Time `bson:"published_at"`
	Paragraphs  []string   `bson:"paragraphs"`
	Status      string     `bson:"status"`
	Reason      string     `bson:"reason,omitempty"`
	Detail      string     `bson:"detail,omitempty"`
	FetchedAt   time.Time  `bson:"fetched_at"`
}

// Sink upserts article records keyed by normalized URL.
type Sink struct {
	client *mongo.Client
	coll   collection
}

var _ harvest.Sink = (*Sink)(nil)

// New connects to MongoDB and ensures the normalized URL index exists.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("sink.mongo.uri is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("sink.mongo.database is required")
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "normalized_url", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create url index: %w", err)
	}
	return &Sink{client: client, coll: coll}, nil
}

// Emit upserts one record by its normalized URL.
func (s *Sink) Emit(ctx context.Context, record harvest.ArticleRecord) error {
	if s == nil || s.coll == nil {
		return fmt.Errorf("mongo sink is not configured")
	}
	if record.URL == "" {
		return fmt.Errorf("record url is required")
	}
	key, err := record.StorageKey()
	if err != nil {
		return err
	}
	doc := toDocument(record)
	doc.Key = key
	filter := bson.M{"normalized_url": key}
	update := bson.M{"$set": doc}
	if _, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Sink) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}

func toDocument(record harvest.ArticleRecord) document {
	return document{
		URL:         record.URL,
		Key:         record.Key,
		RunID:       record.RunID,
		Sitemap:     record.Sitemap,
		Title:       record.Title,
		Author:      record.Author,
		PublishedAt: record.PublishedAt,
		Paragraphs:  record.Paragraphs,
		Status:      string(record.Status.Kind),
		Reason:      string(record.Status.Reason),
		Detail:      record.Status.Detail,
		FetchedAt:   record.FetchedAt,
	}
}
