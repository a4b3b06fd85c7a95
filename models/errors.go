package models

import "errors"

// Common errors
var (
	ErrUnauthorized = errors.New("missing or invalid credentials")
	ErrForbidden    = errors.New("operation not permitted for this user")
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidState = errors.New("operation not allowed in current status")
	ErrInvalidInput = errors.New("invalid input")
	ErrUserExists   = errors.New("user already exists")
	ErrMemberExists = errors.New("user is already a board member")
	ErrInvalidVote  = errors.New("estimate is not among the board's choices")
	ErrNotAttached  = errors.New("user is not attached to the session")
)
