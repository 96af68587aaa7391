package domain

import "time"

// Account is an identity-provider account. It exists independently of the
// member directory: signing up creates an account, the authorization gate
// decides whether it maps to a member.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name,omitempty"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Credential is the identity issued for one signed-in session.
type Credential struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	SessionID   string    `json:"session_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	Token       string    `json:"-"`
}

// Revocation records the account deletion performed when a credential does
// not match any member.
type Revocation struct {
	UID       string
	Email     string
	SessionID string
	At        time.Time
	// Err is set when the deletion itself failed. The session is denied
	// either way; deletion is never retried.
	Err error
}

// Succeeded reports whether the account was actually deleted.
func (r Revocation) Succeeded() bool { return r.Err == nil }
