package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Jay-Parmar/PokerPlannerBE/db"
	"github.com/Jay-Parmar/PokerPlannerBE/models"
	"github.com/Jay-Parmar/PokerPlannerBE/tracker"
)

// BoardHandler handles board, member and ticket management.
type BoardHandler struct {
	store   *db.Store
	tracker tracker.Gateway
}

// NewBoardHandler creates a new BoardHandler.
func NewBoardHandler(store *db.Store, gateway tracker.Gateway) *BoardHandler {
	return &BoardHandler{
		store:   store,
		tracker: gateway,
	}
}

// CreateBoard handles board creation. Tickets may be listed by issue
// key, or imported from the tracker by sprint id or JQL.
func (h *BoardHandler) CreateBoard(c *gin.Context) {
	var req struct {
		Title       string   `json:"title" binding:"required"`
		Description string   `json:"description"`
		Deck        []int    `json:"deck"`
		Timer       int      `json:"timer"`
		Tickets     []string `json:"tickets"`
		SprintID    string   `json:"sprintId"`
		JQL         string   `json:"jql"`
	}

	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, "Invalid request format")
		return
	}

	ctx := c.Request.Context()
	issues, err := h.resolveTickets(c, req.Tickets, req.SprintID, req.JQL)
	if err != nil {
		standardResponse(c, http.StatusBadGateway, "error", nil, "Could not fetch tickets from tracker")
		return
	}

	deck := req.Deck
	if len(deck) == 0 {
		deck = models.DefaultDeck
	}
	board := models.Board{
		ID:          uuid.New().String(),
		ManagerID:   currentUserID(c),
		Title:       req.Title,
		Description: req.Description,
		Deck:        deck,
		Timer:       req.Timer,
		CreatedAt:   time.Now(),
	}
	if err := h.store.CreateBoard(ctx, board); err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not create board")
		return
	}

	for i, issue := range issues {
		ticket := models.Ticket{
			ID:         uuid.New().String(),
			BoardID:    board.ID,
			ExternalID: issue.Key,
			Summary:    issue.Summary,
			Order:      i + 1,
			Status:     models.StatusUntouched,
		}
		if err := h.store.CreateTicket(ctx, ticket); err != nil {
			standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not create tickets")
			return
		}
	}

	standardResponse(c, http.StatusCreated, "created", gin.H{"boardId": board.ID}, "")
}

// resolveTickets turns the creation request into tracker issue refs.
func (h *BoardHandler) resolveTickets(c *gin.Context, keys []string, sprintID, jql string) ([]tracker.IssueRef, error) {
	ctx := c.Request.Context()
	switch {
	case sprintID != "":
		return h.tracker.Search(ctx, "Sprint = "+sprintID)
	case jql != "":
		return h.tracker.Search(ctx, jql)
	case len(keys) > 0:
		refs, err := h.tracker.Search(ctx, fmt.Sprintf("issueKey in (%s)", strings.Join(keys, ",")))
		if err == nil {
			return refs, nil
		}
		if errors.Is(err, tracker.ErrNotConfigured) {
			// No tracker: keep the keys as-is so boards still work.
			refs = make([]tracker.IssueRef, 0, len(keys))
			for _, key := range keys {
				refs = append(refs, tracker.IssueRef{Key: key})
			}
			return refs, nil
		}
		return nil, err
	}
	return nil, nil
}

// GetBoard returns a board with its tickets in queue order.
func (h *BoardHandler) GetBoard(c *gin.Context) {
	ctx := c.Request.Context()
	board, err := h.store.GetBoard(ctx, c.Param("id"))
	if errors.Is(err, models.ErrNotFound) {
		standardResponse(c, http.StatusNotFound, "error", nil, "Board not found")
		return
	}
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not load board")
		return
	}
	if !h.canView(c, board) {
		standardResponse(c, http.StatusForbidden, "error", nil, "Not a board member")
		return
	}
	tickets, err := h.store.ListTickets(ctx, board.ID)
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not load tickets")
		return
	}
	standardResponse(c, http.StatusOK, "ok", gin.H{"board": board, "tickets": tickets}, "")
}

// ListBoards returns the boards visible to the caller.
func (h *BoardHandler) ListBoards(c *gin.Context) {
	boards, err := h.store.ListBoards(c.Request.Context(), currentUserID(c))
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not list boards")
		return
	}
	standardResponse(c, http.StatusOK, "ok", gin.H{"boards": boards}, "")
}

// AddMember adds a user to the board. Manager only.
func (h *BoardHandler) AddMember(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
		Role   string `json:"role"`
	}

	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, "Invalid request format")
		return
	}

	ctx := c.Request.Context()
	board, err := h.store.GetBoard(ctx, c.Param("id"))
	if err != nil {
		standardResponse(c, http.StatusNotFound, "error", nil, "Board not found")
		return
	}
	if currentUserID(c) != board.ManagerID {
		standardResponse(c, http.StatusForbidden, "error", nil, "Only the board manager can add members")
		return
	}
	if _, err := h.store.GetUser(ctx, req.UserID); err != nil {
		standardResponse(c, http.StatusNotFound, "error", nil, "User not found")
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleContributor
	}
	member := models.Member{BoardID: board.ID, UserID: req.UserID, Role: role}
	if err := h.store.AddMember(ctx, member); err != nil {
		if errors.Is(err, models.ErrMemberExists) {
			standardResponse(c, http.StatusConflict, "error", nil, models.ErrMemberExists.Error())
			return
		}
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not add member")
		return
	}

	standardResponse(c, http.StatusCreated, "created", member, "")
}

// RemoveMember removes a user from the board. Manager only.
func (h *BoardHandler) RemoveMember(c *gin.Context) {
	ctx := c.Request.Context()
	board, err := h.store.GetBoard(ctx, c.Param("id"))
	if err != nil {
		standardResponse(c, http.StatusNotFound, "error", nil, "Board not found")
		return
	}
	if currentUserID(c) != board.ManagerID {
		standardResponse(c, http.StatusForbidden, "error", nil, "Only the board manager can remove members")
		return
	}
	if err := h.store.RemoveMember(ctx, board.ID, c.Param("userId")); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			standardResponse(c, http.StatusNotFound, "error", nil, "Member not found")
			return
		}
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not remove member")
		return
	}
	standardResponse(c, http.StatusOK, "removed", nil, "")
}

// ListMembers returns the members of a board.
func (h *BoardHandler) ListMembers(c *gin.Context) {
	ctx := c.Request.Context()
	board, err := h.store.GetBoard(ctx, c.Param("id"))
	if err != nil {
		standardResponse(c, http.StatusNotFound, "error", nil, "Board not found")
		return
	}
	if !h.canView(c, board) {
		standardResponse(c, http.StatusForbidden, "error", nil, "Not a board member")
		return
	}
	members, err := h.store.ListMembers(ctx, board.ID)
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not list members")
		return
	}
	standardResponse(c, http.StatusOK, "ok", gin.H{"members": members}, "")
}

// CommentTicket posts a comment on the ticket's external issue.
func (h *BoardHandler) CommentTicket(c *gin.Context) {
	var req struct {
		Body string `json:"body" binding:"required"`
	}

	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, "Invalid request format")
		return
	}

	ctx := c.Request.Context()
	ticket, err := h.store.GetTicket(ctx, c.Param("ticketId"))
	if err != nil {
		standardResponse(c, http.StatusNotFound, "error", nil, "Ticket not found")
		return
	}
	board, err := h.store.GetBoard(ctx, ticket.BoardID)
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not load board")
		return
	}
	if !h.canView(c, board) {
		standardResponse(c, http.StatusForbidden, "error", nil, "Not a board member")
		return
	}
	if err := h.tracker.AddComment(ctx, ticket.ExternalID, req.Body); err != nil {
		standardResponse(c, http.StatusBadGateway, "error", nil, "Could not post comment to tracker")
		return
	}
	standardResponse(c, http.StatusCreated, "created", nil, "")
}

func (h *BoardHandler) canView(c *gin.Context, board models.Board) bool {
	userID := currentUserID(c)
	if userID == board.ManagerID {
		return true
	}
	member, err := h.store.IsBoardMember(c.Request.Context(), board.ID, userID)
	return err == nil && member
}
