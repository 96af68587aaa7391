package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acim-association/members-dashboard/internal/core/domain"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestAccessDenied_Deleted(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf))

	l.AccessDenied(domain.Revocation{UID: "u1", Email: "b@x.com", SessionID: "s1", At: time.Now()})

	line := decodeLine(t, &buf)
	assert.Equal(t, true, line["audit"])
	assert.Equal(t, "access_denied", line["action"])
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, true, line["account_deleted"])
	assert.Equal(t, "b@x.com", line["email"])
}

func TestAccessDenied_DeletionFailed(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf))

	l.AccessDenied(domain.Revocation{UID: "u1", Email: "b@x.com", Err: errors.New("boom")})

	line := decodeLine(t, &buf)
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, false, line["account_deleted"])
	assert.Equal(t, "boom", line["error"])
}

func TestMembersImported_Partial(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf))

	l.MembersImported("a@x.com", 3, 1, errors.New("write failed"))

	line := decodeLine(t, &buf)
	assert.Equal(t, "members_imported", line["action"])
	assert.EqualValues(t, 3, line["imported"])
	assert.EqualValues(t, 1, line["skipped"])
	assert.Equal(t, "warn", line["level"])
}
