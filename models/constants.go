package models

// Inbound message types accepted by the session dispatcher.
const (
	MessageTypeInitialiseGame = "initialise_game"
	MessageTypeStartTimer     = "start_timer"
	MessageTypeVote           = "vote"
	MessageTypeEstimate       = "estimate"
	MessageTypeSkip           = "skip"
)

// Outbound-only event types.
const (
	EventTypeJoin  = "join"
	EventTypeLeave = "leave"
	EventTypeError = "error"
)

// Member roles on a board.
const (
	RoleContributor = "contributor"
	RoleSpectator   = "spectator"
)

// DefaultDeck is used when a board is created without explicit estimate
// choices.
var DefaultDeck = []int{0, 1, 2, 3, 5, 8, 13, 20, 40, 100}
