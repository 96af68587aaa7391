package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/acim-association/members-dashboard/internal/core/domain"
)

// testDatabase connects to MONGO_TEST_URI and returns a throwaway database.
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	client, db, err := Connect(ctx, Config{URI: uri, Database: "members_test_" + uuid.NewString()[:8], Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func TestMemberRepository_Integration(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	repo := NewMemberRepository(db)
	require.NoError(t, repo.EnsureIndexes(ctx))

	bob, err := repo.Create(ctx, &domain.MemberRecord{Name: "Bob", Email: "bob@x.com", Status: domain.StatusActive, Role: domain.RoleMember})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.MemberRecord{Name: "Alice", Email: "alice@x.com", Status: domain.StatusActive, Role: domain.RoleAdmin, Doc: domain.DocM})
	require.NoError(t, err)

	t.Run("duplicate email is rejected", func(t *testing.T) {
		_, err := repo.Create(ctx, &domain.MemberRecord{Name: "Bob 2", Email: "bob@x.com"})
		assert.ErrorIs(t, err, domain.ErrMemberExists)
	})

	t.Run("blank emails do not collide", func(t *testing.T) {
		_, err := repo.Create(ctx, &domain.MemberRecord{Name: "Zed"})
		require.NoError(t, err)
		_, err = repo.Create(ctx, &domain.MemberRecord{Name: "Zoe"})
		require.NoError(t, err)
	})

	t.Run("list is ordered by name", func(t *testing.T) {
		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 4)
		assert.Equal(t, "Alice", list[0].Name)
		assert.Equal(t, domain.DocM, list[0].Doc)
		assert.Equal(t, "Zoe", list[3].Name)
	})

	t.Run("find by email is exact", func(t *testing.T) {
		found, err := repo.FindByEmail(ctx, "bob@x.com")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, bob, found[0].ID)

		found, err = repo.FindByEmail(ctx, "BOB@x.com")
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, bob))
		assert.ErrorIs(t, repo.Delete(ctx, bob), domain.ErrMemberNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, "not-an-id"), domain.ErrInvalidMemberID)
	})
}

func TestAccountRepository_Integration(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	repo := NewAccountRepository(db)
	require.NoError(t, repo.EnsureIndexes(ctx))

	created, err := repo.Create(ctx, &domain.Account{Email: "a@x.com", PasswordHash: "h", CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = repo.Create(ctx, &domain.Account{Email: "a@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, domain.ErrAccountExists)

	byEmail, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAuditRepository_Integration(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	require.NoError(t, EnsureAuditIndexes(ctx, db))

	repo := NewAuditRepository(db)
	require.NoError(t, repo.InsertRevocation(ctx, domain.Revocation{UID: "u1", Email: "x@x.com", SessionID: "s1", At: time.Now()}))
	require.NoError(t, repo.InsertRevocation(ctx, domain.Revocation{UID: "u2", Email: "y@x.com", At: time.Now(), Err: errors.New("provider down")}))

	n, err := db.Collection(collectionAccessDenials).CountDocuments(ctx, map[string]interface{}{"account_deleted": false})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
