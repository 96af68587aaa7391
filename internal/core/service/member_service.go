package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/acim-association/members-dashboard/internal/api/metrics"
	"github.com/acim-association/members-dashboard/internal/core/domain"
	"github.com/acim-association/members-dashboard/internal/core/ports"
)

var errWatchUnavailable = errors.New("member change notifications are not configured")

type MemberService struct {
	repo     ports.MemberRepository
	codec    ports.SpreadsheetCodec
	notifier ports.ChangeNotifier
	logger   zerolog.Logger
}

func NewMemberService(repo ports.MemberRepository, codec ports.SpreadsheetCodec, notifier ports.ChangeNotifier, logger zerolog.Logger) *MemberService {
	return &MemberService{repo: repo, codec: codec, notifier: notifier, logger: logger.With().Str("component", "members").Logger()}
}

// List returns the directory ordered by name, narrowed to records matching
// search.
func (s *MemberService) List(ctx context.Context, search string) ([]domain.MemberRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return FilterMembers(records, search), nil
}

// Add creates a member from the form. Empty status and role take the form
// defaults.
func (s *MemberService) Add(ctx context.Context, input ports.AddMemberInput) (*domain.MemberRecord, error) {
	rec := domain.MemberRecord{
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.TrimSpace(input.Email),
		Phone:   input.Phone,
		Address: input.Address,
		Status:  domain.StatusActive,
		Role:    domain.RoleMember,
		Doc:     domain.ParseDoc(input.Doc),
		Memo:    input.Memo,
	}
	if input.Status != "" {
		rec.Status = domain.ParseStatus(input.Status)
	}
	if input.Role != "" {
		rec.Role = domain.ParseRole(input.Role)
	}

	id, err := s.repo.Create(ctx, &rec)
	if err != nil {
		metrics.MemberWritesTotal.WithLabelValues("add", "error").Inc()
		s.logger.Error().Err(err).Str("email", rec.Email).Msg("failed to add member")
		return nil, err
	}
	rec.ID = id
	metrics.MemberWritesTotal.WithLabelValues("add", "ok").Inc()
	s.logger.Info().Str("member_id", id).Str("email", rec.Email).Msg("member added")

	s.changed(ctx)
	return &rec, nil
}

func (s *MemberService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		metrics.MemberWritesTotal.WithLabelValues("delete", "error").Inc()
		return err
	}
	metrics.MemberWritesTotal.WithLabelValues("delete", "ok").Inc()
	s.logger.Info().Str("member_id", id).Msg("member deleted")

	s.changed(ctx)
	return nil
}

// Import writes every row of the spreadsheet in order. Rows whose email is
// already in the directory are skipped. Any other write error stops the
// import; rows written before it are kept and reported in the result.
func (s *MemberService) Import(ctx context.Context, r io.Reader) (*ports.ImportResult, error) {
	records, err := s.codec.Decode(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrEmptySpreadsheet
	}

	result := &ports.ImportResult{}
	defer func() {
		if result.Imported > 0 {
			s.changed(ctx)
		}
	}()

	for i := range records {
		rec := records[i]
		_, err := s.repo.Create(ctx, &rec)
		switch {
		case errors.Is(err, domain.ErrMemberExists):
			metrics.ImportRowsTotal.WithLabelValues("skipped").Inc()
			result.Skipped = append(result.Skipped, rec.Email)
		case err != nil:
			metrics.ImportRowsTotal.WithLabelValues("failed").Inc()
			s.logger.Error().Err(err).Int("imported", result.Imported).Str("name", rec.Name).Msg("import aborted")
			return result, fmt.Errorf("import %q: %w", rec.Name, err)
		default:
			metrics.ImportRowsTotal.WithLabelValues("imported").Inc()
			result.Imported++
		}
	}

	s.logger.Info().Int("imported", result.Imported).Int("skipped", len(result.Skipped)).Msg("members imported")
	return result, nil
}

// Export serializes the filtered list as a spreadsheet.
func (s *MemberService) Export(ctx context.Context, search string) ([]byte, error) {
	records, err := s.List(ctx, search)
	if err != nil {
		return nil, err
	}
	return s.codec.Encode(records)
}

// Watch signals every change made to the directory.
func (s *MemberService) Watch(ctx context.Context) (<-chan struct{}, func(), error) {
	if s.notifier == nil {
		return nil, nil, errWatchUnavailable
	}
	return s.notifier.Watch(ctx)
}

func (s *MemberService) changed(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyChanged(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish member change")
	}
}

// FilterMembers keeps the records whose name, email or phone contains
// search, ignoring case. The input order is preserved.
func FilterMembers(records []domain.MemberRecord, search string) []domain.MemberRecord {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return records
	}
	out := make([]domain.MemberRecord, 0, len(records))
	for _, m := range records {
		if strings.Contains(strings.ToLower(m.Name), term) ||
			strings.Contains(strings.ToLower(m.Email), term) ||
			strings.Contains(strings.ToLower(m.Phone), term) {
			out = append(out, m)
		}
	}
	return out
}
