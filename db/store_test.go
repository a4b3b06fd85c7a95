package db

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Jay-Parmar/PokerPlannerBE/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, store *Store, id string) models.User {
	t.Helper()
	user := models.User{
		ID:        id,
		Name:      "User " + id,
		Email:     id + "@example.com",
		CreatedAt: time.Now(),
	}
	if err := store.CreateUser(context.Background(), user, "hash"); err != nil {
		t.Fatalf("CreateUser %s: %v", id, err)
	}
	return user
}

func seedBoard(t *testing.T, store *Store, id, managerID string) models.Board {
	t.Helper()
	board := models.Board{
		ID:        id,
		ManagerID: managerID,
		Title:     "Board " + id,
		Deck:      []int{1, 2, 3, 5, 8},
		Timer:     300,
		CreatedAt: time.Now(),
	}
	if err := store.CreateBoard(context.Background(), board); err != nil {
		t.Fatalf("CreateBoard %s: %v", id, err)
	}
	return board
}

func TestOpenAppliesPragmas(t *testing.T) {
	store := newTestStore(t)

	var mode string
	if err := store.sqlDB.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var foreignKeys int
	if err := store.sqlDB.QueryRow(`PRAGMA foreign_keys`).Scan(&foreignKeys); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("foreign_keys = %d, want 1", foreignKeys)
	}

	var busyTimeout int
	if err := store.sqlDB.QueryRow(`PRAGMA busy_timeout`).Scan(&busyTimeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", busyTimeout)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "u1")

	dup := models.User{ID: "u2", Name: "Other", Email: "u1@example.com", CreatedAt: time.Now()}
	if err := store.CreateUser(context.Background(), dup, "hash"); !errors.Is(err, models.ErrUserExists) {
		t.Fatalf("err = %v, want ErrUserExists", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	store := newTestStore(t)
	want := seedUser(t, store, "u1")

	got, hash, err := store.GetUserByEmail(context.Background(), want.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != want.ID || hash != "hash" {
		t.Errorf("got %+v hash %q, want id %s hash %q", got, hash, want.ID, "hash")
	}

	if _, _, err := store.GetUserByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing user err = %v, want ErrNotFound", err)
	}
}

func TestBoardRoundTrip(t *testing.T) {
	store := newTestStore(t)
	manager := seedUser(t, store, "m1")
	want := seedBoard(t, store, "b1", manager.ID)

	got, err := store.GetBoard(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	if got.Title != want.Title || got.ManagerID != manager.ID || got.Timer != 300 {
		t.Errorf("board = %+v, want %+v", got, want)
	}
	if len(got.Deck) != 5 || got.Deck[4] != 8 {
		t.Errorf("deck = %v, want %v", got.Deck, want.Deck)
	}

	// The manager is a member of their own board.
	member, err := store.IsBoardMember(context.Background(), want.ID, manager.ID)
	if err != nil {
		t.Fatalf("IsBoardMember: %v", err)
	}
	if !member {
		t.Error("manager is not a board member")
	}
}

func TestMembership(t *testing.T) {
	store := newTestStore(t)
	manager := seedUser(t, store, "m1")
	player := seedUser(t, store, "p1")
	board := seedBoard(t, store, "b1", manager.ID)
	ctx := context.Background()

	member := models.Member{BoardID: board.ID, UserID: player.ID, Role: models.RoleContributor}
	if err := store.AddMember(ctx, member); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := store.AddMember(ctx, member); !errors.Is(err, models.ErrMemberExists) {
		t.Errorf("duplicate member err = %v, want ErrMemberExists", err)
	}

	ok, err := store.IsBoardMember(ctx, board.ID, player.ID)
	if err != nil || !ok {
		t.Fatalf("IsBoardMember = %v, %v, want true", ok, err)
	}

	members, err := store.ListMembers(ctx, board.ID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("members = %d, want 2", len(members))
	}

	if err := store.RemoveMember(ctx, board.ID, player.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if err := store.RemoveMember(ctx, board.ID, player.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second remove err = %v, want ErrNotFound", err)
	}
}

func TestTicketStateAndOrdering(t *testing.T) {
	store := newTestStore(t)
	manager := seedUser(t, store, "m1")
	board := seedBoard(t, store, "b1", manager.ID)
	ctx := context.Background()

	for i, key := range []string{"POK-1", "POK-2", "POK-3"} {
		ticket := models.Ticket{
			ID:         key,
			BoardID:    board.ID,
			ExternalID: key,
			Order:      i + 1,
			Status:     models.StatusUntouched,
		}
		if err := store.CreateTicket(ctx, ticket); err != nil {
			t.Fatalf("CreateTicket %s: %v", key, err)
		}
	}

	maxOrd, err := store.MaxOrder(ctx, board.ID)
	if err != nil {
		t.Fatalf("MaxOrder: %v", err)
	}
	if maxOrd != 3 {
		t.Errorf("max order = %d, want 3", maxOrd)
	}

	// Skip POK-1 to the end of the queue.
	ticket, err := store.GetTicket(ctx, "POK-1")
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	ticket.Status = models.StatusSkipped
	ticket.Order = maxOrd + 1
	if err := store.SaveTicketState(ctx, ticket); err != nil {
		t.Fatalf("SaveTicketState: %v", err)
	}

	tickets, err := store.ListTickets(ctx, board.ID)
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(tickets) != 3 {
		t.Fatalf("tickets = %d, want 3", len(tickets))
	}
	if tickets[2].ID != "POK-1" || tickets[2].Status != models.StatusSkipped {
		t.Errorf("last ticket = %+v, want skipped POK-1", tickets[2])
	}

	// Finalize POK-2 with timestamps and an estimate.
	ticket, err = store.GetTicket(ctx, "POK-2")
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	estimate := 8
	started := time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond)
	ended := time.Now().UTC().Truncate(time.Millisecond)
	ticket.Status = models.StatusEstimated
	ticket.Estimate = &estimate
	ticket.StartedAt = &started
	ticket.EndedAt = &ended
	if err := store.SaveTicketState(ctx, ticket); err != nil {
		t.Fatalf("SaveTicketState: %v", err)
	}

	got, err := store.GetTicket(ctx, "POK-2")
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.Estimate == nil || *got.Estimate != 8 {
		t.Errorf("estimate = %v, want 8", got.Estimate)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Errorf("startedAt = %v, want %v", got.StartedAt, started)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Errorf("endedAt = %v, want %v", got.EndedAt, ended)
	}

	if err := store.SaveTicketState(ctx, models.Ticket{ID: "missing"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("save missing ticket err = %v, want ErrNotFound", err)
	}
}

func TestVoteUpsert(t *testing.T) {
	store := newTestStore(t)
	manager := seedUser(t, store, "m1")
	board := seedBoard(t, store, "b1", manager.ID)
	ctx := context.Background()

	ticket := models.Ticket{ID: "POK-1", BoardID: board.ID, ExternalID: "POK-1", Order: 1, Status: models.StatusUntouched}
	if err := store.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	first := models.Vote{UserID: manager.ID, Estimate: 3, SubmittedAt: time.Now()}
	if err := store.SaveVote(ctx, ticket.ID, first); err != nil {
		t.Fatalf("SaveVote: %v", err)
	}
	revised := models.Vote{UserID: manager.ID, Estimate: 5, SubmittedAt: time.Now()}
	if err := store.SaveVote(ctx, ticket.ID, revised); err != nil {
		t.Fatalf("SaveVote revised: %v", err)
	}

	votes, err := store.ListVotes(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("ListVotes: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("votes = %d, want 1", len(votes))
	}
	if votes[0].Estimate != 5 {
		t.Errorf("estimate = %d, want 5", votes[0].Estimate)
	}
}

func TestListBoardsVisibility(t *testing.T) {
	store := newTestStore(t)
	manager := seedUser(t, store, "m1")
	player := seedUser(t, store, "p1")
	outsider := seedUser(t, store, "o1")
	board := seedBoard(t, store, "b1", manager.ID)
	ctx := context.Background()

	if err := store.AddMember(ctx, models.Member{BoardID: board.ID, UserID: player.ID, Role: models.RoleContributor}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	for _, tc := range []struct {
		userID string
		want   int
	}{
		{manager.ID, 1},
		{player.ID, 1},
		{outsider.ID, 0},
	} {
		boards, err := store.ListBoards(ctx, tc.userID)
		if err != nil {
			t.Fatalf("ListBoards %s: %v", tc.userID, err)
		}
		if len(boards) != tc.want {
			t.Errorf("boards for %s = %d, want %d", tc.userID, len(boards), tc.want)
		}
	}
}
