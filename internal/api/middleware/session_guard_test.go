package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acim-association/members-dashboard/internal/core/domain"
)

type stubVerifier struct {
	creds    map[string]*domain.Credential
	resumed  []string
	onResume func(token string)
}

func (v *stubVerifier) Verify(_ context.Context, token string) (*domain.Credential, error) {
	cred, ok := v.creds[token]
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return cred, nil
}

func (v *stubVerifier) Resume(ctx context.Context, token string) (*domain.Credential, error) {
	cred, err := v.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	v.resumed = append(v.resumed, token)
	if v.onResume != nil {
		v.onResume(token)
	}
	return cred, nil
}

// stubSessions serves fixed states; a missing entry is an unknown session
// that stays loading.
type stubSessions struct {
	states map[string]domain.SessionState
}

func (s *stubSessions) Current(sid string) (domain.SessionState, bool) {
	st, ok := s.states[sid]
	if !ok {
		return domain.LoadingState(), false
	}
	return st, true
}

func (s *stubSessions) Wait(ctx context.Context, sid string) (domain.SessionState, error) {
	if st, ok := s.states[sid]; ok && !st.Loading {
		return st, nil
	}
	<-ctx.Done()
	st, _ := s.Current(sid)
	return st, ctx.Err()
}

func guardFixture() (*stubVerifier, *stubSessions, *domain.Credential) {
	cred := &domain.Credential{UID: "u1", Email: "alice@x.com", SessionID: "s1"}
	v := &stubVerifier{creds: map[string]*domain.Credential{"tok": cred}}
	s := &stubSessions{states: map[string]domain.SessionState{}}
	return v, s, cred
}

func runGuard(t *testing.T, v *stubVerifier, s *stubSessions, authHeader string) (*httptest.ResponseRecorder, echo.Context, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/members", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	err := SessionGuard(v, s, 20*time.Millisecond, zerolog.Nop())(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})(c)
	require.NoError(t, err)
	return rec, c, called
}

func decodeGuard(t *testing.T, rec *httptest.ResponseRecorder) guardResponse {
	t.Helper()
	var body guardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSessionGuard_Authorized(t *testing.T) {
	v, s, cred := guardFixture()
	s.states["s1"] = domain.SessionState{Credential: cred, Member: &domain.MemberRecord{ID: "m1", Role: domain.RoleAdmin}}

	rec, c, called := runGuard(t, v, s, "Bearer tok")

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", c.Get(CtxRole))
	assert.Equal(t, "s1", c.Get(CtxSessionID))
	assert.Same(t, cred, c.Get(CtxCredential))
	assert.Empty(t, v.resumed)
}

func TestSessionGuard_MissingOrBadToken(t *testing.T) {
	for _, header := range []string{"", "Basic abc", "Bearer nope", "Bearer "} {
		v, s, _ := guardFixture()
		rec, _, called := runGuard(t, v, s, header)

		assert.False(t, called, "header %q", header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.Equal(t, "/", decodeGuard(t, rec).Redirect)
	}
}

func TestSessionGuard_QueryToken(t *testing.T) {
	v, s, cred := guardFixture()
	s.states["s1"] = domain.SessionState{Credential: cred, Member: &domain.MemberRecord{ID: "m1", Role: domain.RoleMember}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/members/stream?access_token=tok", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	require.NoError(t, SessionGuard(v, s, time.Second, zerolog.Nop())(func(c echo.Context) error {
		called = true
		return nil
	})(c))
	assert.True(t, called)
}

func TestSessionGuard_LoadingAnswers503(t *testing.T) {
	v, s, _ := guardFixture()
	s.states["s1"] = domain.LoadingState()

	rec, _, called := runGuard(t, v, s, "Bearer tok")

	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "loading", decodeGuard(t, rec).Status)
}

func TestSessionGuard_UnknownSessionIsResumed(t *testing.T) {
	v, s, cred := guardFixture()
	v.onResume = func(string) {
		s.states["s1"] = domain.SessionState{Credential: cred, Member: &domain.MemberRecord{ID: "m1", Role: domain.RoleMember}}
	}

	rec, _, called := runGuard(t, v, s, "Bearer tok")

	assert.Equal(t, []string{"tok"}, v.resumed)
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionGuard_DeniedCarriesNotice(t *testing.T) {
	v, s, _ := guardFixture()
	s.states["s1"] = domain.SessionState{Notice: domain.DeniedNotice}

	rec, _, called := runGuard(t, v, s, "Bearer tok")

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeGuard(t, rec)
	assert.Equal(t, domain.DeniedNotice, body.Notice)
	assert.Equal(t, "/", body.Redirect)
}

func TestSessionGuard_SignedOutOrErrored(t *testing.T) {
	for _, st := range []domain.SessionState{{}, {Err: errors.New("lookup failed")}} {
		v, s, _ := guardFixture()
		s.states["s1"] = st

		rec, _, called := runGuard(t, v, s, "Bearer tok")
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestSessionGuard_ErroredSessionIsResumed(t *testing.T) {
	v, s, cred := guardFixture()
	s.states["s1"] = domain.SessionState{Err: errors.New("redis down")}
	v.onResume = func(string) {
		s.states["s1"] = domain.SessionState{Credential: cred, Member: &domain.MemberRecord{ID: "m1", Role: domain.RoleMember}}
	}

	rec, _, called := runGuard(t, v, s, "Bearer tok")

	assert.Equal(t, []string{"tok"}, v.resumed)
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionGuard_VerifierFailureIsPropagated(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer tok")
	c := e.NewContext(req, httptest.NewRecorder())

	err := SessionGuard(failingVerifier{}, &stubSessions{}, time.Second, zerolog.Nop())(func(echo.Context) error {
		t.Fatal("should not reach next handler")
		return nil
	})(c)
	assert.Error(t, err)
}

type failingVerifier struct{}

func (failingVerifier) Verify(context.Context, string) (*domain.Credential, error) {
	return nil, errors.New("redis down")
}

func (failingVerifier) Resume(context.Context, string) (*domain.Credential, error) {
	return nil, errors.New("redis down")
}
