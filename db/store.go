// Package db persists users, boards, members, tickets and votes in SQLite.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Jay-Parmar/PokerPlannerBE/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS boards (
    id          TEXT PRIMARY KEY,
    manager_id  TEXT NOT NULL REFERENCES users(id),
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    deck        TEXT NOT NULL,
    timer       INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS board_members (
    board_id TEXT NOT NULL REFERENCES boards(id),
    user_id  TEXT NOT NULL REFERENCES users(id),
    role     TEXT NOT NULL,
    PRIMARY KEY (board_id, user_id)
);
CREATE TABLE IF NOT EXISTS tickets (
    id          TEXT PRIMARY KEY,
    board_id    TEXT NOT NULL REFERENCES boards(id),
    external_id TEXT NOT NULL,
    summary     TEXT NOT NULL DEFAULT '',
    ord         INTEGER NOT NULL,
    status      INTEGER NOT NULL,
    estimate    INTEGER,
    started_at  INTEGER,
    ended_at    INTEGER
);
CREATE TABLE IF NOT EXISTS votes (
    ticket_id    TEXT NOT NULL REFERENCES tickets(id),
    user_id      TEXT NOT NULL REFERENCES users(id),
    estimate     INTEGER NOT NULL,
    submitted_at INTEGER NOT NULL,
    PRIMARY KEY (ticket_id, user_id)
);
`

// Store is the SQLite-backed store for everything that outlives a live
// voting session.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser inserts a new account with its password hash.
func (s *Store) CreateUser(ctx context.Context, user models.User, passwordHash string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, passwordHash, toMillis(user.CreatedAt))
	if isUniqueViolation(err) {
		return models.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns the user with the given id.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	var created int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}

// GetUserByEmail returns the user and password hash for a login attempt.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, string, error) {
	var u models.User
	var hash string
	var created int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Name, &u.Email, &hash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, "", models.ErrNotFound
	}
	if err != nil {
		return models.User{}, "", fmt.Errorf("select user by email: %w", err)
	}
	u.CreatedAt = fromMillis(created)
	return u, hash, nil
}

// CreateBoard inserts a board and registers the manager as a member.
func (s *Store) CreateBoard(ctx context.Context, board models.Board) error {
	deck, err := json.Marshal(board.Deck)
	if err != nil {
		return fmt.Errorf("encode deck: %w", err)
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO boards (id, manager_id, title, description, deck, timer, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		board.ID, board.ManagerID, board.Title, board.Description, string(deck), board.Timer, toMillis(board.CreatedAt)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert board: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO board_members (board_id, user_id, role) VALUES (?, ?, ?)`,
		board.ID, board.ManagerID, models.RoleContributor); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert manager membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit board: %w", err)
	}
	return nil
}

// GetBoard returns the board with the given id.
func (s *Store) GetBoard(ctx context.Context, id string) (models.Board, error) {
	var b models.Board
	var deck string
	var created int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, manager_id, title, description, deck, timer, created_at FROM boards WHERE id = ?`, id).
		Scan(&b.ID, &b.ManagerID, &b.Title, &b.Description, &deck, &b.Timer, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Board{}, models.ErrNotFound
	}
	if err != nil {
		return models.Board{}, fmt.Errorf("select board: %w", err)
	}
	if err := json.Unmarshal([]byte(deck), &b.Deck); err != nil {
		return models.Board{}, fmt.Errorf("decode deck: %w", err)
	}
	b.CreatedAt = fromMillis(created)
	return b, nil
}

// ListBoards returns the boards the user manages or is a member of.
func (s *Store) ListBoards(ctx context.Context, userID string) ([]models.Board, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT DISTINCT b.id, b.manager_id, b.title, b.description, b.deck, b.timer, b.created_at
		   FROM boards b
		   LEFT JOIN board_members m ON m.board_id = b.id
		  WHERE b.manager_id = ? OR m.user_id = ?
		  ORDER BY b.created_at`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("select boards: %w", err)
	}
	defer rows.Close()

	var boards []models.Board
	for rows.Next() {
		var b models.Board
		var deck string
		var created int64
		if err := rows.Scan(&b.ID, &b.ManagerID, &b.Title, &b.Description, &deck, &b.Timer, &created); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		if err := json.Unmarshal([]byte(deck), &b.Deck); err != nil {
			return nil, fmt.Errorf("decode deck: %w", err)
		}
		b.CreatedAt = fromMillis(created)
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// AddMember adds a user to a board.
func (s *Store) AddMember(ctx context.Context, member models.Member) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO board_members (board_id, user_id, role) VALUES (?, ?, ?)`,
		member.BoardID, member.UserID, member.Role)
	if isUniqueViolation(err) {
		return models.ErrMemberExists
	}
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a board.
func (s *Store) RemoveMember(ctx context.Context, boardID, userID string) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM board_members WHERE board_id = ? AND user_id = ?`, boardID, userID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListMembers returns the members of a board.
func (s *Store) ListMembers(ctx context.Context, boardID string) ([]models.Member, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT board_id, user_id, role FROM board_members WHERE board_id = ?`, boardID)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.BoardID, &m.UserID, &m.Role); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// IsBoardMember reports whether the user belongs to the board.
func (s *Store) IsBoardMember(ctx context.Context, boardID, userID string) (bool, error) {
	var one int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM board_members WHERE board_id = ? AND user_id = ?`, boardID, userID).
		Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select membership: %w", err)
	}
	return true, nil
}

// CreateTicket inserts a ticket.
func (s *Store) CreateTicket(ctx context.Context, ticket models.Ticket) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO tickets (id, board_id, external_id, summary, ord, status) VALUES (?, ?, ?, ?, ?, ?)`,
		ticket.ID, ticket.BoardID, ticket.ExternalID, ticket.Summary, ticket.Order, ticket.Status)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// GetTicket returns the ticket with the given id.
func (s *Store) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	var t models.Ticket
	var estimate sql.NullInt64
	var started, ended sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, board_id, external_id, summary, ord, status, estimate, started_at, ended_at FROM tickets WHERE id = ?`, id).
		Scan(&t.ID, &t.BoardID, &t.ExternalID, &t.Summary, &t.Order, &t.Status, &estimate, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, models.ErrNotFound
	}
	if err != nil {
		return models.Ticket{}, fmt.Errorf("select ticket: %w", err)
	}
	if estimate.Valid {
		v := int(estimate.Int64)
		t.Estimate = &v
	}
	if started.Valid {
		v := fromMillis(started.Int64)
		t.StartedAt = &v
	}
	if ended.Valid {
		v := fromMillis(ended.Int64)
		t.EndedAt = &v
	}
	return t, nil
}

// ListTickets returns a board's tickets in queue order.
func (s *Store) ListTickets(ctx context.Context, boardID string) ([]models.Ticket, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, board_id, external_id, summary, ord, status, estimate, started_at, ended_at
		   FROM tickets WHERE board_id = ? ORDER BY ord`, boardID)
	if err != nil {
		return nil, fmt.Errorf("select tickets: %w", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var t models.Ticket
		var estimate, started, ended sql.NullInt64
		if err := rows.Scan(&t.ID, &t.BoardID, &t.ExternalID, &t.Summary, &t.Order, &t.Status, &estimate, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		if estimate.Valid {
			v := int(estimate.Int64)
			t.Estimate = &v
		}
		if started.Valid {
			v := fromMillis(started.Int64)
			t.StartedAt = &v
		}
		if ended.Valid {
			v := fromMillis(ended.Int64)
			t.EndedAt = &v
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// SaveTicketState flushes the mutable round fields of a ticket.
func (s *Store) SaveTicketState(ctx context.Context, ticket models.Ticket) error {
	var estimate, started, ended sql.NullInt64
	if ticket.Estimate != nil {
		estimate = sql.NullInt64{Int64: int64(*ticket.Estimate), Valid: true}
	}
	if ticket.StartedAt != nil {
		started = sql.NullInt64{Int64: toMillis(*ticket.StartedAt), Valid: true}
	}
	if ticket.EndedAt != nil {
		ended = sql.NullInt64{Int64: toMillis(*ticket.EndedAt), Valid: true}
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE tickets SET ord = ?, status = ?, estimate = ?, started_at = ?, ended_at = ? WHERE id = ?`,
		ticket.Order, ticket.Status, estimate, started, ended, ticket.ID)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MaxOrder returns the highest queue position on the board, 0 when empty.
func (s *Store) MaxOrder(ctx context.Context, boardID string) (int, error) {
	var maxOrd sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT MAX(ord) FROM tickets WHERE board_id = ?`, boardID).Scan(&maxOrd)
	if err != nil {
		return 0, fmt.Errorf("select max order: %w", err)
	}
	if !maxOrd.Valid {
		return 0, nil
	}
	return int(maxOrd.Int64), nil
}

// SaveVote upserts a user's vote on a ticket.
func (s *Store) SaveVote(ctx context.Context, ticketID string, vote models.Vote) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO votes (ticket_id, user_id, estimate, submitted_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (ticket_id, user_id) DO UPDATE SET estimate = excluded.estimate, submitted_at = excluded.submitted_at`,
		ticketID, vote.UserID, vote.Estimate, toMillis(vote.SubmittedAt))
	if err != nil {
		return fmt.Errorf("upsert vote: %w", err)
	}
	return nil
}

// ListVotes returns all persisted votes for a ticket.
func (s *Store) ListVotes(ctx context.Context, ticketID string) ([]models.Vote, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT user_id, estimate, submitted_at FROM votes WHERE ticket_id = ?`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("select votes: %w", err)
	}
	defer rows.Close()

	var votes []models.Vote
	for rows.Next() {
		var v models.Vote
		var submitted int64
		if err := rows.Scan(&v.UserID, &v.Estimate, &submitted); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.SubmittedAt = fromMillis(submitted)
		votes = append(votes, v)
	}
	return votes, rows.Err()
}
