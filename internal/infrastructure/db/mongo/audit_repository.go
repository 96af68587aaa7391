package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/acim-association/members-dashboard/internal/core/domain"
	"github.com/acim-association/members-dashboard/internal/core/ports"
)

const collectionAccessDenials = "access_denials"

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	db *mongo.Database
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *mongo.Database) ports.AuditRepository {
	return &AuditRepository{db: db}
}

// InsertRevocation persists an access denial to the access_denials collection.
func (r *AuditRepository) InsertRevocation(ctx context.Context, rev domain.Revocation) error {
	doc := bson.M{
		"uid":             rev.UID,
		"email":           rev.Email,
		"session_id":      rev.SessionID,
		"account_deleted": rev.Succeeded(),
		"at":              rev.At.UTC(),
		"recorded_at":     time.Now().UTC(),
	}
	if rev.Err != nil {
		doc["error"] = rev.Err.Error()
	}

	_, err := r.db.Collection(collectionAccessDenials).InsertOne(ctx, doc)
	return err
}

// EnsureAuditIndexes indexes denials by email and time for lookups by an
// administrator.
func EnsureAuditIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := db.Collection(collectionAccessDenials).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "at", Value: -1}}, Options: options.Index().SetName("at_desc")},
	})
	return err
}
