// Package tracker talks to the external issue tracker of record.
package tracker

import (
	"context"
	"errors"
)

// IssueRef identifies an importable issue in the tracker.
type IssueRef struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
}

// Gateway is the surface the session and board layers need from the
// tracker. Calls are best-effort from the caller's point of view; the
// local state stays authoritative when a push fails.
type Gateway interface {
	// PushEstimate writes the final estimate onto the external issue.
	PushEstimate(ctx context.Context, externalID string, estimate int) error
	// AddComment posts a comment on the external issue.
	AddComment(ctx context.Context, externalID, body string) error
	// Search returns issues matching a JQL query, for ticket import.
	Search(ctx context.Context, jql string) ([]IssueRef, error)
}

// ErrNotConfigured is returned by Disabled for every call.
var ErrNotConfigured = errors.New("tracker is not configured")

// Disabled is the gateway used when no tracker credentials are set.
type Disabled struct{}

func (Disabled) PushEstimate(context.Context, string, int) error {
	return ErrNotConfigured
}

func (Disabled) AddComment(context.Context, string, string) error {
	return ErrNotConfigured
}

func (Disabled) Search(context.Context, string) ([]IssueRef, error) {
	return nil, ErrNotConfigured
}
