package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bankstream/auth-core/internal/core/domain"
)

const auditCollection = "auth_events"

// AuditRepository implements ports.AuditTrail on the auth_events collection.
// Records are append-only; nothing in the platform updates or deletes them.
type AuditRepository struct {
	db *mongo.Database
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{db: db}
}

type auditDoc struct {
	UserID      string    `bson:"user_id"`
	Email       string    `bson:"email"`
	Kind        string    `bson:"kind"`
	Timestamp   time.Time `bson:"timestamp"`
	ProcessedAt time.Time `bson:"processed_at"`
}

func (r *AuditRepository) Record(ctx context.Context, event *domain.AuthEvent) error {
	doc := auditDoc{
		UserID:      event.UserID,
		Email:       event.Email,
		Kind:        string(event.Kind),
		Timestamp:   event.Timestamp.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	if _, err := r.db.Collection(auditCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("record auth event: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByUser(ctx context.Context, userID string, limit int64) ([]domain.AuthEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.db.Collection(auditCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []auditDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list auth events: %w", err)
	}

	events := make([]domain.AuthEvent, 0, len(docs))
	for _, d := range docs {
		events = append(events, domain.AuthEvent{
			UserID:    d.UserID,
			Email:     d.Email,
			Kind:      domain.AuthEventKind(d.Kind),
			Timestamp: d.Timestamp,
		})
	}
	return events, nil
}
