package domain

import "errors"

var (
	ErrMemberNotFound  = errors.New("member not found")
	ErrMemberExists    = errors.New("member with this email already exists")
	ErrInvalidMemberID = errors.New("invalid member id")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("account already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrTokenRevoked       = errors.New("session revoked")
	ErrForbidden          = errors.New("access forbidden")

	ErrEmptySpreadsheet   = errors.New("spreadsheet has no data rows")
	ErrInvalidSpreadsheet = errors.New("spreadsheet could not be read")
)
