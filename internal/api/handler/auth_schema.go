package handler

import (
	"time"

	"github.com/acim-association/members-dashboard/internal/core/domain"
)

type signupRequest struct {
	Email       string `json:"email"        validate:"required,email"`
	Password    string `json:"password"     validate:"required,min=6"`
	DisplayName string `json:"display_name" validate:"max=120"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Role        string `json:"role"`
	MemberID    string `json:"member_id"`
}

type authResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Status    string           `json:"status"`
	Session   *sessionResponse `json:"session,omitempty"`
}

type deniedResponse struct {
	Error  string `json:"error"`
	Notice string `json:"notice"`
}

// toSessionResponse falls back to the email when the account has no display
// name.
func toSessionResponse(cred *domain.Credential, member *domain.MemberRecord) sessionResponse {
	name := cred.DisplayName
	if name == "" {
		name = cred.Email
	}
	return sessionResponse{
		DisplayName: name,
		Email:       cred.Email,
		PhotoURL:    cred.PhotoURL,
		Role:        string(member.Role),
		MemberID:    member.ID,
	}
}
