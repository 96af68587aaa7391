// Package audit writes the trail of destructive and bulk actions.
package audit

import (
	"github.com/rs/zerolog"

	"github.com/acim-association/members-dashboard/internal/core/domain"
)

// Logger provides structured audit logging for directory and account events.
type Logger struct {
	log zerolog.Logger
}

// New creates a new audit logger.
func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// AccessDenied logs an account removed because no member matched its email.
func (l *Logger) AccessDenied(rev domain.Revocation) {
	ev := l.log.Warn()
	if rev.Err != nil {
		ev = l.log.Error().Err(rev.Err)
	}
	ev.Str("action", "access_denied").
		Str("uid", rev.UID).
		Str("email", rev.Email).
		Str("session_id", rev.SessionID).
		Bool("account_deleted", rev.Succeeded()).
		Time("at", rev.At).
		Msg("Credential matched no member")
}

// MemberAdded logs a member created from the form.
func (l *Logger) MemberAdded(actor string, m *domain.MemberRecord) {
	l.log.Info().
		Str("action", "member_added").
		Str("actor", actor).
		Str("member_id", m.ID).
		Str("email", m.Email).
		Msg("Member added")
}

// MemberDeleted logs a member removed from the directory.
func (l *Logger) MemberDeleted(actor, memberID string) {
	l.log.Info().
		Str("action", "member_deleted").
		Str("actor", actor).
		Str("member_id", memberID).
		Msg("Member deleted")
}

// MembersImported logs the outcome of a spreadsheet import, including a
// partial one.
func (l *Logger) MembersImported(actor string, imported, skipped int, err error) {
	ev := l.log.Info()
	if err != nil {
		ev = l.log.Warn().Err(err)
	}
	ev.Str("action", "members_imported").
		Str("actor", actor).
		Int("imported", imported).
		Int("skipped", skipped).
		Msg("Members imported")
}

// SignedOut logs a session closed by its owner.
func (l *Logger) SignedOut(uid, sessionID string) {
	l.log.Info().
		Str("action", "signed_out").
		Str("uid", uid).
		Str("session_id", sessionID).
		Msg("Session signed out")
}
