package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Jay-Parmar/PokerPlannerBE/auth"
	"github.com/Jay-Parmar/PokerPlannerBE/db"
	"github.com/Jay-Parmar/PokerPlannerBE/models"
)

// UserHandler handles account registration and login.
type UserHandler struct {
	store  *db.Store
	tokens *auth.Tokens
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store *db.Store, tokens *auth.Tokens) *UserHandler {
	return &UserHandler{
		store:  store,
		tokens: tokens,
	}
}

// Register handles account creation requests.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}

	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, "Invalid request format")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not hash password")
		return
	}

	user := models.User{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: time.Now(),
	}
	if err := h.store.CreateUser(c.Request.Context(), user, string(hash)); err != nil {
		if errors.Is(err, models.ErrUserExists) {
			standardResponse(c, http.StatusConflict, "error", nil, models.ErrUserExists.Error())
			return
		}
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not create user")
		return
	}

	standardResponse(c, http.StatusCreated, "created", user, "")
}

// Login handles login requests and returns a bearer token.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, "Invalid request format")
		return
	}

	user, hash, err := h.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		standardResponse(c, http.StatusUnauthorized, "error", nil, "Invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		standardResponse(c, http.StatusUnauthorized, "error", nil, "Invalid email or password")
		return
	}

	token, err := h.tokens.Sign(user.ID)
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not issue token")
		return
	}

	standardResponse(c, http.StatusOK, "ok", gin.H{"token": token, "user": user}, "")
}
