package ports

import (
	"context"
	"io"

	"github.com/acim-association/members-dashboard/internal/core/domain"
)

// AddMemberInput carries the fields of the "add member" form.
type AddMemberInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
	Status  string
	Role    string
	Doc     string
	Memo    string
}

// ImportResult summarises one spreadsheet import. Rows written before a
// failure stay written.
type ImportResult struct {
	Imported int
	// Skipped lists the emails of rows that already existed in the directory.
	Skipped []string
}

// SpreadsheetCodec converts between spreadsheet files and member records.
type SpreadsheetCodec interface {
	Decode(r io.Reader) ([]domain.MemberRecord, error)
	Encode(records []domain.MemberRecord) ([]byte, error)
}

// MemberService defines the member management use cases.
type MemberService interface {
	List(ctx context.Context, search string) ([]domain.MemberRecord, error)
	Add(ctx context.Context, input AddMemberInput) (*domain.MemberRecord, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, r io.Reader) (*ImportResult, error)
	Export(ctx context.Context, search string) ([]byte, error)
	Watch(ctx context.Context) (<-chan struct{}, func(), error)
}
