package models

import "time"

// Envelope is the inbound message frame read from a session connection.
type Envelope struct {
	MessageType string         `json:"message_type"`
	Message     map[string]any `json:"message"`
}

// SnapshotEvent carries the full session state to a client that just
// joined or asked to re-initialise.
type SnapshotEvent struct {
	Type   string     `json:"type"`
	Status string     `json:"status"`
	Votes  []Vote     `json:"votes"`
	Users  []User     `json:"users"`
	Timer  *time.Time `json:"timer"`
	// Duration is the board's configured voting time in seconds.
	Duration int `json:"duration"`
}

// StartTimerEvent announces the start of a voting round.
type StartTimerEvent struct {
	Type          string    `json:"type"`
	StartDatetime time.Time `json:"start_datetime"`
}

// VoteEvent announces a placed or revised vote.
type VoteEvent struct {
	Type string `json:"type"`
	Vote Vote   `json:"vote"`
}

// EstimateEvent announces the final estimate chosen by the manager.
type EstimateEvent struct {
	Type     string `json:"type"`
	Estimate int    `json:"estimate"`
}

// SkipEvent announces that the ticket was skipped for this round.
type SkipEvent struct {
	Type string `json:"type"`
}

// PresenceEvent announces the participant list after a join or leave.
type PresenceEvent struct {
	Type  string `json:"type"`
	Users []User `json:"users"`
}

// ErrorEvent is sent only to the connection whose message failed.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
