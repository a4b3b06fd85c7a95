package models

import "time"

// Status is the lifecycle state of a ticket's estimation round.
type Status int

// Ticket statuses, in the order a round moves through them.
const (
	StatusUntouched Status = iota + 1
	StatusOngoing
	StatusEstimated
	StatusSkipped
)

// String returns the lowercase wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusUntouched:
		return "untouched"
	case StatusOngoing:
		return "ongoing"
	case StatusEstimated:
		return "estimated"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// User is an account that can manage or join boards.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Board is a collection of tickets being estimated together.
type Board struct {
	ID          string    `json:"id"`
	ManagerID   string    `json:"managerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	// Deck is the set of estimate values participants may vote.
	Deck []int `json:"deck"`
	// Timer is the voting duration in seconds shown to clients.
	Timer     int       `json:"timer"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ticket is one work item on a board. ExternalID is the issue key in the
// tracker of record; Estimate is set only once the round is finalized.
type Ticket struct {
	ID         string     `json:"id"`
	BoardID    string     `json:"boardId"`
	ExternalID string     `json:"externalId"`
	Summary    string     `json:"summary"`
	Order      int        `json:"order"`
	Status     Status     `json:"status"`
	Estimate   *int       `json:"estimate"`
	StartedAt  *time.Time `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt"`
}

// Vote is one user's current estimate for a ticket. A later vote by the
// same user replaces the earlier one.
type Vote struct {
	UserID      string    `json:"user"`
	Estimate    int       `json:"estimate"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Member links a user to a board they may vote on.
type Member struct {
	BoardID string `json:"boardId"`
	UserID  string `json:"userId"`
	Role    string `json:"role"`
}
