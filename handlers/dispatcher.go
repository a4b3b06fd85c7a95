package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/Jay-Parmar/PokerPlannerBE/models"
	"github.com/Jay-Parmar/PokerPlannerBE/session"
)

// command runs one session operation and returns the event to
// broadcast, or nil when the reply already went to the originator.
type command func(ctx context.Context, sess *session.Session, userID string, payload map[string]any) (any, error)

// Dispatcher routes inbound envelopes to session operations. The
// message set is a closed table; anything else is rejected back to the
// sender without touching the session.
type Dispatcher struct {
	commands  map[string]command
	errorText map[string]string
}

// NewDispatcher builds the dispatch table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		commands: map[string]command{
			models.MessageTypeInitialiseGame: initialiseGame,
			models.MessageTypeStartTimer:     startTimer,
			models.MessageTypeVote:           vote,
			models.MessageTypeEstimate:       estimate,
			models.MessageTypeSkip:           skip,
		},
		errorText: map[string]string{
			models.MessageTypeStartTimer: "Can't start timer",
			models.MessageTypeVote:       "Invalid estimate",
			models.MessageTypeEstimate:   "Only Manager can set final estimate",
			models.MessageTypeSkip:       "Can't skip",
		},
	}
}

// Dispatch decodes one inbound frame and applies it to the session.
// Failures of any kind reach only the originating connection; session
// state is untouched and nothing is broadcast.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, userID string, raw []byte) {
	var envelope models.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		log.Printf("session %s: bad frame from user %s: %v", sess.TicketID, userID, err)
		sess.SendTo(userID, models.ErrorEvent{Type: models.EventTypeError, Error: "Something went wrong"})
		return
	}
	cmd, ok := d.commands[envelope.MessageType]
	if !ok {
		log.Printf("session %s: unknown message type %q from user %s", sess.TicketID, envelope.MessageType, userID)
		sess.SendTo(userID, models.ErrorEvent{Type: models.EventTypeError, Error: "Something went wrong"})
		return
	}
	event, err := cmd(ctx, sess, userID, envelope.Message)
	if err != nil {
		log.Printf("session %s: %s by user %s rejected: %v", sess.TicketID, envelope.MessageType, userID, err)
		text, ok := d.errorText[envelope.MessageType]
		if !ok {
			text = "Something went wrong"
		}
		sess.SendTo(userID, models.ErrorEvent{Type: models.EventTypeError, Error: text})
		return
	}
	if event != nil {
		sess.Broadcast(event)
	}
}

func initialiseGame(_ context.Context, sess *session.Session, userID string, _ map[string]any) (any, error) {
	// Idempotent read: the snapshot goes back to the requester only.
	sess.SendTo(userID, sess.Snapshot())
	return nil, nil
}

func startTimer(ctx context.Context, sess *session.Session, userID string, _ map[string]any) (any, error) {
	event, err := sess.StartTimer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func vote(ctx context.Context, sess *session.Session, userID string, payload map[string]any) (any, error) {
	value, err := intField(payload, "estimate")
	if err != nil {
		return nil, err
	}
	event, err := sess.Vote(ctx, userID, value)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func estimate(ctx context.Context, sess *session.Session, userID string, payload map[string]any) (any, error) {
	value, err := intField(payload, "estimate")
	if err != nil {
		return nil, err
	}
	event, err := sess.Finalize(ctx, userID, value)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func skip(ctx context.Context, sess *session.Session, userID string, _ map[string]any) (any, error) {
	event, err := sess.Skip(ctx, userID)
	if err != nil {
		return nil, err
	}
	return event, nil
}

// intField reads a whole number out of a decoded JSON object.
func intField(payload map[string]any, key string) (int, error) {
	raw, ok := payload[key]
	if !ok {
		return 0, models.ErrInvalidInput
	}
	value, ok := raw.(float64)
	if !ok || value != float64(int(value)) {
		return 0, models.ErrInvalidInput
	}
	return int(value), nil
}
