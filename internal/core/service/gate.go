package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/acim-association/members-dashboard/internal/api/metrics"
	"github.com/acim-association/members-dashboard/internal/audit"
	"github.com/acim-association/members-dashboard/internal/core/domain"
	"github.com/acim-association/members-dashboard/internal/core/ports"
)

// Decision is the outcome of one authorization gate run.
//
// Member is set when the credential is authorized. Revocation is set when
// the credential matched no member and its account was (or was attempted
// to be) deleted. Both nil means there was nothing left to decide.
type Decision struct {
	Credential *domain.Credential
	Member     *domain.MemberRecord
	Revocation *domain.Revocation
}

// Authorized reports whether the decision grants access.
func (d Decision) Authorized() bool { return d.Member != nil }

// Gate decides whether a credential belongs to a known member and removes
// the account when it does not.
type Gate struct {
	members  ports.MemberRepository
	accounts ports.AccountRevoker
	denials  ports.AuditRepository
	audit    *audit.Logger
	log      zerolog.Logger
	now      func() time.Time
}

func NewGate(
	members ports.MemberRepository,
	accounts ports.AccountRevoker,
	denials ports.AuditRepository,
	auditLog *audit.Logger,
	log zerolog.Logger,
) *Gate {
	return &Gate{
		members:  members,
		accounts: accounts,
		denials:  denials,
		audit:    auditLog,
		log:      log.With().Str("component", "gate").Logger(),
		now:      time.Now,
	}
}

// Resolve runs the gate for one credential. Lookup errors are returned as is
// and never cause a revocation.
func (g *Gate) Resolve(ctx context.Context, cred *domain.Credential) (Decision, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.GateResolutionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	// 1. An account already removed by an earlier run has nothing to check.
	exists, err := g.accounts.AccountExists(ctx, cred.UID)
	if err != nil {
		return Decision{}, fmt.Errorf("gate: check account: %w", err)
	}
	if !exists {
		outcome = "gone"
		g.log.Debug().Str("uid", cred.UID).Msg("account no longer exists, nothing to resolve")
		return Decision{}, nil
	}

	// 2. Exact email match; the repository orders matches by id.
	matches, err := g.members.FindByEmail(ctx, cred.Email)
	if err != nil {
		return Decision{}, fmt.Errorf("gate: lookup member: %w", err)
	}

	// 3. First match wins.
	if len(matches) > 0 {
		outcome = "authorized"
		if len(matches) > 1 {
			g.log.Warn().Str("email", cred.Email).Int("matches", len(matches)).Str("member_id", matches[0].ID).
				Msg("several members share this email, using lowest id")
		}
		member := matches[0]
		return Decision{Credential: cred, Member: &member}, nil
	}

	// 4. No member: delete the account once, whatever happens.
	outcome = "denied"
	rev := g.revoke(ctx, cred)
	return Decision{Revocation: &rev}, nil
}

func (g *Gate) revoke(ctx context.Context, cred *domain.Credential) domain.Revocation {
	rev := domain.Revocation{
		UID:       cred.UID,
		Email:     cred.Email,
		SessionID: cred.SessionID,
		At:        g.now().UTC(),
	}
	if err := g.accounts.DeleteAccount(ctx, cred); err != nil {
		rev.Err = err
	}

	metrics.AccessDenialsTotal.WithLabelValues(strconv.FormatBool(rev.Succeeded())).Inc()
	if g.audit != nil {
		g.audit.AccessDenied(rev)
	}
	if g.denials != nil {
		if err := g.denials.InsertRevocation(ctx, rev); err != nil {
			g.log.Warn().Err(err).Str("uid", rev.UID).Msg("failed to record access denial")
		}
	}
	return rev
}
