package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/acim-association/members-dashboard/internal/core/domain"
)

const collectionMembers = "members"

type MemberRepository struct {
	col *mongo.Collection
}

func NewMemberRepository(db *mongo.Database) *MemberRepository {
	return &MemberRepository{col: db.Collection(collectionMembers)}
}

type mongoMember struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Name    string             `bson:"name"`
	Email   string             `bson:"email"`
	Phone   string             `bson:"phone"`
	Address string             `bson:"address"`
	Status  string             `bson:"status"`
	Role    string             `bson:"role"`
	Doc     string             `bson:"doc"`
	Memo    string             `bson:"memo"`
}

func toMongoMember(m *domain.MemberRecord) mongoMember {
	return mongoMember{
		Name:    m.Name,
		Email:   m.Email,
		Phone:   m.Phone,
		Address: m.Address,
		Status:  string(m.Status),
		Role:    string(m.Role),
		Doc:     string(m.Doc),
		Memo:    m.Memo,
	}
}

// toDomain normalises stored values, which may have been written by older
// clients with free-text status, role or doc.
func (m mongoMember) toDomain() domain.MemberRecord {
	return domain.MemberRecord{
		ID:      m.ID.Hex(),
		Name:    m.Name,
		Email:   m.Email,
		Phone:   m.Phone,
		Address: m.Address,
		Status:  domain.ParseStatus(m.Status),
		Role:    domain.ParseRole(m.Role),
		Doc:     domain.ParseDoc(m.Doc),
		Memo:    m.Memo,
	}
}

// FindByEmail returns every member whose email equals email exactly, oldest
// first.
func (r *MemberRepository) FindByEmail(ctx context.Context, email string) ([]domain.MemberRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"email": email}, opts)
	if err != nil {
		return nil, fmt.Errorf("find members by email: %w", err)
	}
	return decodeMembers(ctx, cur)
}

// Create inserts a member and returns its id.
func (r *MemberRepository) Create(ctx context.Context, m *domain.MemberRecord) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.InsertOne(ctx, toMongoMember(m))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", domain.ErrMemberExists
		}
		return "", fmt.Errorf("insert member: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert member: unexpected id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (r *MemberRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrInvalidMemberID
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

// List returns the whole directory ordered by name.
func (r *MemberRepository) List(ctx context.Context) ([]domain.MemberRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return decodeMembers(ctx, cur)
}

// EnsureIndexes creates the email lookup index and the name sort index.
// Email is unique among non-empty values only, so members without an email
// can coexist.
func (r *MemberRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("email_unique_nonempty").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$gt": ""}}),
		},
		{Keys: bson.D{{Key: "name", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func decodeMembers(ctx context.Context, cur *mongo.Cursor) ([]domain.MemberRecord, error) {
	defer cur.Close(ctx)

	var docs []mongoMember
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}

	out := make([]domain.MemberRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
