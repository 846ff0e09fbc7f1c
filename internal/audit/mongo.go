// Package audit records account and order events for later inspection.
package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/safar/agrimarket/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	ActionRegistered      = "account.registered"
	ActionActivated       = "account.activated"
	ActionPasswordReset   = "account.password_reset"
	ActionPasswordChanged = "account.password_changed"
	ActionGoogleLogin     = "account.google_login"
	ActionCheckout        = "order.checkout"
	ActionStatusChanged   = "order.status_changed"
)

type Entry struct {
	ID        any       `bson:"_id,omitempty" json:"-"`
	Action    string    `bson:"action" json:"action"`
	ActorID   int64     `bson:"actor_id" json:"actor_id"`
	EntityID  string    `bson:"entity_id" json:"entity_id"`
	Data      bson.M    `bson:"data,omitempty" json:"data,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Recorder writes audit entries. Recording is best effort: callers never
// fail an operation because its audit entry could not be written.
type Recorder interface {
	Record(ctx context.Context, action string, actorID int64, entityID int64, data bson.M)
	Recent(ctx context.Context, limit int64) ([]Entry, error)
}

type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

func NewMongoRecorder(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*MongoRecorder, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoRecorder{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
	}, nil
}

func (m *MongoRecorder) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoRecorder) Record(ctx context.Context, action string, actorID int64, entityID int64, data bson.M) {
	entry := Entry{
		Action:    action,
		ActorID:   actorID,
		EntityID:  strconv.FormatInt(entityID, 10),
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := m.collection.InsertOne(ctx, entry); err != nil {
		m.logger.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func (m *MongoRecorder) Recent(ctx context.Context, limit int64) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []Entry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode audit entries: %w", err)
	}

	return entries, nil
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, string, int64, int64, bson.M) {}

func (Nop) Recent(context.Context, int64) ([]Entry, error) { return []Entry{}, nil }
