package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Jay-Parmar/PokerPlannerBE/auth"
	"github.com/Jay-Parmar/PokerPlannerBE/db"
)

func newTestRouter(t *testing.T) (*gin.Engine, *db.Store, *auth.Tokens) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tokens, err := auth.New("test-secret", "pokerplanner", time.Hour, nil)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}

	userHandler := NewUserHandler(store, tokens)
	router := gin.New()
	router.POST("/api/users", userHandler.Register)
	router.POST("/api/login", userHandler.Login)
	router.GET("/api/whoami", AuthRequired(tokens), func(c *gin.Context) {
		standardResponse(c, http.StatusOK, "ok", gin.H{"userId": currentUserID(c)}, "")
	})
	return router, store, tokens
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRegisterAndLogin(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := postJSON(t, router, "/api/users", gin.H{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "correct-horse",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body)
	}

	// Duplicate registration conflicts.
	rr = postJSON(t, router, "/api/users", gin.H{
		"name":     "Alice Again",
		"email":    "alice@example.com",
		"password": "correct-horse",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want %d", rr.Code, http.StatusConflict)
	}

	rr = postJSON(t, router, "/api/login", gin.H{
		"email":    "alice@example.com",
		"password": "correct-horse",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body)
	}

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Data.Token == "" {
		t.Fatal("login returned no token")
	}

	// The token authenticates API requests.
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Data.Token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("whoami status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := postJSON(t, router, "/api/users", gin.H{
		"name":     "Bob",
		"email":    "bob@example.com",
		"password": "correct-horse",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d", rr.Code, http.StatusCreated)
	}

	rr = postJSON(t, router, "/api/login", gin.H{
		"email":    "bob@example.com",
		"password": "wrong-horse",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("login status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthRequiredRejectsAnonymous(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthRequiredAcceptsQueryToken(t *testing.T) {
	router, _, tokens := newTestRouter(t)

	raw, err := tokens.Sign("u1")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/whoami?token="+raw, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}
