package ports

import (
	"context"

	"github.com/acim-association/members-dashboard/internal/core/domain"
)

// MemberRepository is the member directory ("members" collection).
type MemberRepository interface {
	// FindByEmail returns every record whose email equals email exactly,
	// ordered by id ascending.
	FindByEmail(ctx context.Context, email string) ([]domain.MemberRecord, error)
	// Create inserts the record and returns its new id. A non-empty email
	// already present in the directory yields domain.ErrMemberExists.
	Create(ctx context.Context, m *domain.MemberRecord) (string, error)
	Delete(ctx context.Context, id string) error
	// List returns all records ordered by name ascending.
	List(ctx context.Context) ([]domain.MemberRecord, error)
}

// ChangeNotifier broadcasts "the directory changed" to every watcher,
// including watchers served by other instances.
type ChangeNotifier interface {
	NotifyChanged(ctx context.Context) error
	// Watch delivers one value per change until ctx is done or stop is called.
	Watch(ctx context.Context) (changes <-chan struct{}, stop func(), err error)
}
