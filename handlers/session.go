package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Jay-Parmar/PokerPlannerBE/db"
	"github.com/Jay-Parmar/PokerPlannerBE/models"
	"github.com/Jay-Parmar/PokerPlannerBE/session"
)

// Package-level WebSocket upgrader
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// standardResponse sends a consistent JSON response
func standardResponse(c *gin.Context, code int, status string, data interface{}, err string) {
	response := gin.H{"status": status}

	if data != nil {
		response["data"] = data
	}

	if err != "" {
		response["error"] = err
	}

	c.JSON(code, response)
}

// SessionHandler is the connection gateway: it authenticates and
// authorizes each inbound WebSocket, attaches it to the right session
// and relays frames between the transport and the session.
type SessionHandler struct {
	store      *db.Store
	registry   *session.Registry
	dispatcher *Dispatcher
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(store *db.Store, registry *session.Registry) *SessionHandler {
	return &SessionHandler{
		store:      store,
		registry:   registry,
		dispatcher: NewDispatcher(),
	}
}

// Connect upgrades the request and runs the connection until the client
// goes away. The ticket id comes from the path, the identity from the
// token; membership is checked against the ticket's own board.
func (h *SessionHandler) Connect(c *gin.Context) {
	ticketID := c.Param("id")
	userID := currentUserID(c)
	ctx := c.Request.Context()

	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		standardResponse(c, http.StatusUnauthorized, "error", nil, "Unknown user")
		return
	}

	ticket, err := h.store.GetTicket(ctx, ticketID)
	if errors.Is(err, models.ErrNotFound) {
		standardResponse(c, http.StatusNotFound, "error", nil, "Ticket not found")
		return
	}
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not load ticket")
		return
	}

	board, err := h.store.GetBoard(ctx, ticket.BoardID)
	if err != nil {
		standardResponse(c, http.StatusNotFound, "error", nil, "Board not found")
		return
	}
	member, err := h.store.IsBoardMember(ctx, board.ID, userID)
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not check membership")
		return
	}
	if !member && userID != board.ManagerID {
		standardResponse(c, http.StatusForbidden, "error", nil, "Not a board member")
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not upgrade to WebSocket")
		return
	}
	defer conn.Close()

	// The request context may be canceled once the connection is
	// hijacked; session work uses its own context from here on.
	connCtx := context.Background()

	sess, err := h.registry.Acquire(connCtx, ticketID)
	if err != nil {
		log.Printf("session %s: acquire for user %s: %v", ticketID, userID, err)
		return
	}
	defer h.registry.Release(ticketID)

	events := sess.Attach(user)
	defer sess.Detach(userID, events)

	// Send initial session state
	if err := conn.WriteJSON(sess.Snapshot()); err != nil {
		return
	}

	// Setup ping ticker for keep-alive
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	done := make(chan struct{})

	// Handle incoming frames in a separate goroutine
	go h.readPump(connCtx, conn, sess, userID, done)

	// Main event loop
	for {
		select {
		case event, ok := <-events:
			if !ok {
				// Replaced by a newer connection for the same user.
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readPump decodes and dispatches frames from the client in arrival
// order, so operations on one session stay FIFO per connection.
func (h *SessionHandler) readPump(ctx context.Context, conn *websocket.Conn, sess *session.Session, userID string, done chan struct{}) {
	defer close(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Client disconnected or error occurred
			return
		}
		h.dispatcher.Dispatch(ctx, sess, userID, raw)
	}
}
