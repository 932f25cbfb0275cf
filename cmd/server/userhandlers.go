package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"example.com/cassandrablog/internal/flash"
	"example.com/cassandrablog/internal/middleware"
	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/store"
	"example.com/cassandrablog/internal/views"
)

// --- User handlers ---

// createUserHandler handles POST requests to create a new user.
// Expects JSON body: {"username": "example"}
// Returns JSON response: {"user_id": <id>, "token": <jwt>}
func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	type req struct{ Username string }
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/users", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !models.ValidUsername(body.Username) {
		logg.Info("http/users", "Invalid username length")
		http.Error(w, "username must be 1-50 characters", http.StatusBadRequest)
		return
	}

	// CreateUser returns the existing id when the username is taken
	userID, err := s.store.CreateUser(r.Context(), body.Username)
	if err != nil {
		logg.Error("http/users", "Failed to create user", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	tokenStr, err := middleware.IssueToken(s.opts.JWTSecret, userID, s.opts.TokenTTL)
	if err != nil {
		logg.Error("http/users", "Failed to generate token", err)
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	views.WriteJSON(w, map[string]any{
		"user_id": userID,
		"token":   tokenStr,
	}, http.StatusOK)
}

// meHandler returns the token's user with their post count.
func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	u, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		storeError(w, "http/users", err)
		return
	}

	stats, err := s.store.GetAuthorStats(r.Context(), userID)
	if err != nil {
		storeError(w, "http/users", err)
		return
	}

	views.WriteJSON(w, map[string]any{
		"user_id":    u.ID,
		"username":   u.Username,
		"post_count": stats.PostCount,
	}, http.StatusOK)
}

func (s *Server) loginFormHandler(w http.ResponseWriter, r *http.Request) {
	msg := flash.Get(r.Context(), s.flash, w, r)
	s.render(w, r, http.StatusOK, "login", &views.Page{Title: "Login", Errors: msg.Errors})
}

// loginHandler signs in by username, registering it on first use, and keeps
// the token in a cookie.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	if !models.ValidUsername(username) {
		s.setFlash(w, r, flash.Message{Errors: map[string]string{"username": "Username must be 1-50 characters"}})
		redirect(w, r, "/login")
		return
	}

	userID, err := s.store.CreateUser(r.Context(), username)
	if err != nil {
		storeError(w, "http/users", err)
		return
	}

	tokenStr, err := middleware.IssueToken(s.opts.JWTSecret, userID, s.opts.TokenTTL)
	if err != nil {
		logg.Error("http/users", "Failed to generate token", err)
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    tokenStr,
		Path:     "/",
		MaxAge:   int(s.opts.TokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	logg.Info("http/users", "User logged in (username anonymized)")
	redirect(w, r, "/posts")
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	clearTokenCookie(w)
	redirect(w, r, "/posts")
}
