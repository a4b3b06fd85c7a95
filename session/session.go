// Package session coordinates one live voting round per ticket: it owns
// the participant set, the per-user votes and the round status, and fans
// state changes out to every connected client.
package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/Jay-Parmar/PokerPlannerBE/models"
	"github.com/Jay-Parmar/PokerPlannerBE/tracker"
)

// Store is the slice of the persistent store a session needs.
type Store interface {
	GetTicket(ctx context.Context, id string) (models.Ticket, error)
	GetBoard(ctx context.Context, id string) (models.Board, error)
	SaveTicketState(ctx context.Context, ticket models.Ticket) error
	MaxOrder(ctx context.Context, boardID string) (int, error)
	SaveVote(ctx context.Context, ticketID string, vote models.Vote) error
	ListVotes(ctx context.Context, ticketID string) ([]models.Vote, error)
}

// Session is the live coordination object for one ticket's round.
//
// All mutable state is guarded by mu. No store or tracker call happens
// while mu is held: operations mutate memory under the lock and flush to
// the store afterwards, so a slow disk or tracker can never stall other
// participants. The in-memory state is authoritative for a live round; a
// failed flush is reported to the originating connection as a warning
// and does not revert the transition.
type Session struct {
	TicketID   string
	BoardID    string
	ManagerID  string
	ExternalID string

	store   Store
	tracker tracker.Gateway
	now     func() time.Time

	mu            sync.Mutex
	status        models.Status
	order         int
	deck          []int
	timer         int
	startedAt     *time.Time
	endedAt       *time.Time
	finalEstimate *int
	participants  map[string]models.User
	subs          map[string]chan any
	votes         map[string]models.Vote
}

func newSession(ctx context.Context, ticketID string, store Store, gateway tracker.Gateway, now func() time.Time) (*Session, error) {
	ticket, err := store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	board, err := store.GetBoard(ctx, ticket.BoardID)
	if err != nil {
		return nil, err
	}
	votes, err := store.ListVotes(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load votes: %w", err)
	}
	s := &Session{
		TicketID:      ticketID,
		BoardID:       ticket.BoardID,
		ManagerID:     board.ManagerID,
		ExternalID:    ticket.ExternalID,
		store:         store,
		tracker:       gateway,
		now:           now,
		status:        ticket.Status,
		order:         ticket.Order,
		deck:          board.Deck,
		timer:         board.Timer,
		startedAt:     ticket.StartedAt,
		endedAt:       ticket.EndedAt,
		finalEstimate: ticket.Estimate,
		participants:  make(map[string]models.User),
		subs:          make(map[string]chan any),
		votes:         make(map[string]models.Vote),
	}
	for _, v := range votes {
		s.votes[v.UserID] = v
	}
	return s, nil
}

// Attach registers the user and returns the channel their connection
// should drain. A second connection for the same user replaces the
// first: the old channel is closed and its connection drops out.
func (s *Session) Attach(user models.User) <-chan any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.subs[user.ID]; ok {
		close(old)
	}
	ch := make(chan any, 16)
	s.subs[user.ID] = ch
	s.participants[user.ID] = user

	s.broadcastLocked(models.PresenceEvent{
		Type:  models.EventTypeJoin,
		Users: s.usersLocked(),
	})
	return ch
}

// Detach removes the user. The channel returned by Attach is closed and
// remaining participants get the updated list. It is a no-op if another
// connection already replaced this user's channel.
func (s *Session) Detach(userID string, ch <-chan any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.subs[userID]
	if !ok || (ch != nil && current != ch) {
		return
	}
	close(current)
	delete(s.subs, userID)
	delete(s.participants, userID)

	s.broadcastLocked(models.PresenceEvent{
		Type:  models.EventTypeLeave,
		Users: s.usersLocked(),
	})
}

// Empty reports whether no connection is attached.
func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs) == 0
}

// Snapshot returns the current state for a client that just joined or
// asked to re-initialise. It never mutates state.
func (s *Session) Snapshot() models.SnapshotEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	votes := make([]models.Vote, 0, len(s.votes))
	for _, v := range s.votes {
		votes = append(votes, v)
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].UserID < votes[j].UserID })

	return models.SnapshotEvent{
		Type:     models.MessageTypeInitialiseGame,
		Status:   s.status.String(),
		Votes:    votes,
		Users:    s.usersLocked(),
		Timer:    s.startedAt,
		Duration: s.timer,
	}
}

// StartTimer opens the voting round. Only the manager may call it and
// an estimated ticket cannot be reopened. Calling it again while the
// round is ongoing re-announces the existing start time.
func (s *Session) StartTimer(ctx context.Context, userID string) (models.StartTimerEvent, error) {
	s.mu.Lock()
	if userID != s.ManagerID {
		s.mu.Unlock()
		return models.StartTimerEvent{}, models.ErrForbidden
	}
	if s.status == models.StatusEstimated {
		s.mu.Unlock()
		return models.StartTimerEvent{}, models.ErrInvalidState
	}
	if s.status == models.StatusOngoing && s.startedAt != nil {
		event := models.StartTimerEvent{Type: models.MessageTypeStartTimer, StartDatetime: *s.startedAt}
		s.mu.Unlock()
		return event, nil
	}
	now := s.now()
	s.status = models.StatusOngoing
	s.startedAt = &now
	ticket := s.ticketLocked()
	s.mu.Unlock()

	s.flush(ctx, ticket, userID)
	return models.StartTimerEvent{Type: models.MessageTypeStartTimer, StartDatetime: now}, nil
}

// Vote places or revises the user's estimate. The last accepted vote
// per user wins.
func (s *Session) Vote(ctx context.Context, userID string, estimate int) (models.VoteEvent, error) {
	s.mu.Lock()
	if _, ok := s.participants[userID]; !ok {
		s.mu.Unlock()
		return models.VoteEvent{}, models.ErrNotAttached
	}
	if !s.deckHasLocked(estimate) {
		s.mu.Unlock()
		return models.VoteEvent{}, models.ErrInvalidVote
	}
	vote := models.Vote{UserID: userID, Estimate: estimate, SubmittedAt: s.now()}
	s.votes[userID] = vote
	s.mu.Unlock()

	if err := s.store.SaveVote(ctx, s.TicketID, vote); err != nil {
		log.Printf("session %s: persist vote for user %s: %v", s.TicketID, userID, err)
	}
	return models.VoteEvent{Type: models.MessageTypeVote, Vote: vote}, nil
}

// Skip ends the round without an estimate and moves the ticket to the
// end of the board's queue.
func (s *Session) Skip(ctx context.Context, userID string) (models.SkipEvent, error) {
	s.mu.Lock()
	if userID != s.ManagerID {
		s.mu.Unlock()
		return models.SkipEvent{}, models.ErrForbidden
	}
	if s.status == models.StatusEstimated {
		s.mu.Unlock()
		return models.SkipEvent{}, models.ErrInvalidState
	}
	s.mu.Unlock()

	maxOrder, err := s.store.MaxOrder(ctx, s.BoardID)
	if err != nil {
		return models.SkipEvent{}, fmt.Errorf("max order: %w", err)
	}

	s.mu.Lock()
	if s.status == models.StatusEstimated {
		s.mu.Unlock()
		return models.SkipEvent{}, models.ErrInvalidState
	}
	s.status = models.StatusSkipped
	s.order = maxOrder + 1
	ticket := s.ticketLocked()
	s.mu.Unlock()

	s.flush(ctx, ticket, userID)
	return models.SkipEvent{Type: models.MessageTypeSkip}, nil
}

// Finalize records the manager's estimate and closes the round. The
// local transition is authoritative; the tracker push and store flush
// are best-effort and a failure goes back to the manager alone as a
// warning envelope while the broadcast proceeds.
func (s *Session) Finalize(ctx context.Context, userID string, estimate int) (models.EstimateEvent, error) {
	s.mu.Lock()
	if userID != s.ManagerID {
		s.mu.Unlock()
		return models.EstimateEvent{}, models.ErrForbidden
	}
	now := s.now()
	s.status = models.StatusEstimated
	s.finalEstimate = &estimate
	s.endedAt = &now
	ticket := s.ticketLocked()
	s.mu.Unlock()

	if err := s.store.SaveTicketState(ctx, ticket); err != nil {
		log.Printf("session %s: persist estimate for user %s: %v", s.TicketID, userID, err)
		s.SendTo(userID, models.ErrorEvent{Type: models.EventTypeError, Error: "Estimate saved, but could not be persisted"})
	}
	if err := s.tracker.PushEstimate(ctx, s.ExternalID, estimate); err != nil {
		log.Printf("session %s: push estimate to tracker for user %s: %v", s.TicketID, userID, err)
		s.SendTo(userID, models.ErrorEvent{Type: models.EventTypeError, Error: "Estimate saved, but the tracker update failed"})
	}
	return models.EstimateEvent{Type: models.MessageTypeEstimate, Estimate: estimate}, nil
}

// SendTo delivers an event to one attached user only. Error envelopes
// go through here so they reach the originating connection and nobody
// else.
func (s *Session) SendTo(userID string, event any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[userID]; ok {
		select {
		case ch <- event:
		default:
		}
	}
}

// Broadcast sends the event to every attached connection, in emission
// order. Sends never block: a client that cannot keep up misses events
// rather than stalling the session.
func (s *Session) Broadcast(event any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(event)
}

func (s *Session) broadcastLocked(event any) {
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (s *Session) usersLocked() []models.User {
	users := make([]models.User, 0, len(s.participants))
	for _, u := range s.participants {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (s *Session) deckHasLocked(estimate int) bool {
	if len(s.deck) == 0 {
		for _, v := range models.DefaultDeck {
			if v == estimate {
				return true
			}
		}
		return false
	}
	for _, v := range s.deck {
		if v == estimate {
			return true
		}
	}
	return false
}

func (s *Session) ticketLocked() models.Ticket {
	return models.Ticket{
		ID:         s.TicketID,
		BoardID:    s.BoardID,
		ExternalID: s.ExternalID,
		Order:      s.order,
		Status:     s.status,
		Estimate:   s.finalEstimate,
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
	}
}

func (s *Session) flush(ctx context.Context, ticket models.Ticket, userID string) {
	if err := s.store.SaveTicketState(ctx, ticket); err != nil {
		log.Printf("session %s: persist state for user %s: %v", s.TicketID, userID, err)
	}
}
