package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/acim-association/members-dashboard/internal/audit"
	"github.com/acim-association/members-dashboard/internal/core/domain"
)

type stubRevoker struct {
	accounts  map[string]bool
	existsErr error
	deleteErr error
	deleted   []string
}

func newStubRevoker(uids ...string) *stubRevoker {
	r := &stubRevoker{accounts: make(map[string]bool)}
	for _, uid := range uids {
		r.accounts[uid] = true
	}
	return r
}

func (r *stubRevoker) AccountExists(_ context.Context, uid string) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	return r.accounts[uid], nil
}

func (r *stubRevoker) DeleteAccount(_ context.Context, cred *domain.Credential) error {
	r.deleted = append(r.deleted, cred.UID)
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.accounts, cred.UID)
	return nil
}

type stubDenials struct {
	revocations []domain.Revocation
}

func (d *stubDenials) InsertRevocation(_ context.Context, rev domain.Revocation) error {
	d.revocations = append(d.revocations, rev)
	return nil
}

func credentialFor(uid, email string) *domain.Credential {
	return &domain.Credential{UID: uid, Email: email, SessionID: "sess-" + uid}
}

func TestGate_Resolve_Authorized(t *testing.T) {
	members := newStubMemberRepo(domain.MemberRecord{Name: "Alice", Email: "alice@x.com", Role: domain.RoleAdmin})
	accounts := newStubRevoker("u1")
	denials := &stubDenials{}
	gate := NewGate(members, accounts, denials, nil, nopLogger)

	d, err := gate.Resolve(context.Background(), credentialFor("u1", "alice@x.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Authorized() {
		t.Fatalf("expected authorized decision, got %+v", d)
	}
	if d.Member.ID != "1" || d.Member.Role != domain.RoleAdmin {
		t.Errorf("unexpected member: %+v", d.Member)
	}
	if d.Credential == nil || d.Credential.UID != "u1" {
		t.Errorf("decision must carry the credential, got %+v", d.Credential)
	}
	if len(accounts.deleted) != 0 || len(denials.revocations) != 0 {
		t.Error("authorized credential must not be revoked")
	}
}

func TestGate_Resolve_EmailMatchIsExact(t *testing.T) {
	members := newStubMemberRepo(domain.MemberRecord{Name: "Alice", Email: "Alice@X.com"})
	accounts := newStubRevoker("u1")
	gate := NewGate(members, accounts, &stubDenials{}, nil, nopLogger)

	d, err := gate.Resolve(context.Background(), credentialFor("u1", "alice@x.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Authorized() {
		t.Fatal("case-different email must not authorize")
	}
}

func TestGate_Resolve_LowestIDWins(t *testing.T) {
	members := newStubMemberRepo(
		domain.MemberRecord{ID: "7", Name: "Second", Email: "dup@x.com"},
		domain.MemberRecord{ID: "3", Name: "First", Email: "dup@x.com"},
	)
	gate := NewGate(members, newStubRevoker("u1"), &stubDenials{}, nil, nopLogger)

	d, err := gate.Resolve(context.Background(), credentialFor("u1", "dup@x.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Member == nil || d.Member.ID != "3" {
		t.Fatalf("expected member 3, got %+v", d.Member)
	}
}

func TestGate_Resolve_DeniedDeletesAccountOnce(t *testing.T) {
	accounts := newStubRevoker("u2")
	denials := &stubDenials{}
	var buf bytes.Buffer
	auditLog := audit.New(zerolog.New(&buf))
	gate := NewGate(newStubMemberRepo(), accounts, denials, auditLog, nopLogger)

	d, err := gate.Resolve(context.Background(), credentialFor("u2", "stranger@x.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Authorized() {
		t.Fatal("unknown email must not be authorized")
	}
	if d.Revocation == nil || !d.Revocation.Succeeded() {
		t.Fatalf("expected successful revocation, got %+v", d.Revocation)
	}
	if len(accounts.deleted) != 1 || accounts.deleted[0] != "u2" {
		t.Errorf("expected one deletion of u2, got %v", accounts.deleted)
	}
	if len(denials.revocations) != 1 || denials.revocations[0].Email != "stranger@x.com" {
		t.Errorf("expected denial to be recorded, got %+v", denials.revocations)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("audit entry is not JSON: %v", err)
	}
	if entry["action"] != "access_denied" || entry["audit"] != true {
		t.Errorf("unexpected audit entry: %v", entry)
	}

	// Running again for the same credential is a no-op.
	d, err = gate.Resolve(context.Background(), credentialFor("u2", "stranger@x.com"))
	if err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}
	if d.Revocation != nil || d.Member != nil {
		t.Errorf("expected empty decision on second run, got %+v", d)
	}
	if len(accounts.deleted) != 1 {
		t.Errorf("account must be deleted only once, got %d calls", len(accounts.deleted))
	}
}

func TestGate_Resolve_DeletionFailureStillDenies(t *testing.T) {
	accounts := newStubRevoker("u3")
	accounts.deleteErr = errors.New("provider down")
	denials := &stubDenials{}
	gate := NewGate(newStubMemberRepo(), accounts, denials, nil, nopLogger)

	d, err := gate.Resolve(context.Background(), credentialFor("u3", "x@x.com"))
	if err != nil {
		t.Fatalf("deletion failure must not surface as an error, got %v", err)
	}
	if d.Revocation == nil || d.Revocation.Succeeded() {
		t.Fatalf("expected failed revocation, got %+v", d.Revocation)
	}
	if len(accounts.deleted) != 1 {
		t.Errorf("deletion must not be retried, got %d calls", len(accounts.deleted))
	}
	if len(denials.revocations) != 1 || denials.revocations[0].Err == nil {
		t.Errorf("failed deletion must still be recorded, got %+v", denials.revocations)
	}
}

func TestGate_Resolve_LookupErrorDoesNotRevoke(t *testing.T) {
	members := newStubMemberRepo()
	members.findErr = errors.New("mongo unavailable")
	accounts := newStubRevoker("u4")
	gate := NewGate(members, accounts, &stubDenials{}, nil, nopLogger)

	_, err := gate.Resolve(context.Background(), credentialFor("u4", "a@x.com"))
	if err == nil {
		t.Fatal("expected lookup error")
	}
	if len(accounts.deleted) != 0 {
		t.Errorf("lookup failure must not delete the account, got %v", accounts.deleted)
	}
}

func TestGate_Resolve_AccountCheckError(t *testing.T) {
	accounts := newStubRevoker("u5")
	accounts.existsErr = errors.New("timeout")
	gate := NewGate(newStubMemberRepo(), accounts, &stubDenials{}, nil, nopLogger)

	if _, err := gate.Resolve(context.Background(), credentialFor("u5", "a@x.com")); err == nil {
		t.Fatal("expected error")
	}
	if len(accounts.deleted) != 0 {
		t.Error("account must not be deleted")
	}
}
