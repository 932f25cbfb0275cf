package server

import (
	"context"
	"errors"
	"net/http"

	appkafka "example.com/cassandrablog/internal/broker"
	"example.com/cassandrablog/internal/flash"
	"example.com/cassandrablog/internal/middleware"
	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/store"
	"example.com/cassandrablog/internal/views"
)

type ctxKey string

const postCtxKey = ctxKey("post")

// postFromContext returns the post loaded by checkPermission.
func postFromContext(ctx context.Context) *models.Post {
	p, _ := ctx.Value(postCtxKey).(*models.Post)
	return p
}

// currentUser resolves the authenticated user for the layout. Lookup
// failures render the page anonymously.
func (s *Server) currentUser(r *http.Request) *models.User {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return nil
	}
	u, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logg.Error("http", "Failed to load current user", err)
		}
		return nil
	}
	return u
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, page *views.Page) {
	page.CurrentUser = s.currentUser(r)
	s.views.Render(w, r, status, name, page)
}

func redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// storeError answers persistence failures with a JSON error payload.
func storeError(w http.ResponseWriter, module string, err error) {
	logg.Error(module, "Store operation failed", err)
	views.WriteJSON(w, map[string]string{"error": "internal server error"}, http.StatusInternalServerError)
}

// errorPage renders the error template, or {"error": msg} for JSON clients.
func (s *Server) errorPage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if views.WantsJSON(r) {
		views.WriteJSON(w, map[string]string{"error": msg}, status)
		return
	}
	s.render(w, r, status, "error", &views.Page{Title: http.StatusText(status), Status: status, Message: msg})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.errorPage(w, r, http.StatusNotFound, "not found")
}

func (s *Server) forbidden(w http.ResponseWriter, r *http.Request) {
	s.errorPage(w, r, http.StatusForbidden, "forbidden")
}

// setFlash stores msg for the next page. A failing flash store only loses
// the message.
func (s *Server) setFlash(w http.ResponseWriter, r *http.Request, msg flash.Message) {
	if err := flash.Set(r.Context(), s.flash, w, msg); err != nil {
		logg.Error("http", "Failed to store flash message", err)
	}
}

// requireLogin sends anonymous browsers to the login page and answers 401
// to JSON clients. A token whose user no longer exists counts as anonymous,
// so posts always reference a stored author.
func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
			_, err := s.store.GetUser(r.Context(), userID)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			if !errors.Is(err, store.ErrNotFound) {
				storeError(w, "http", err)
				return
			}
			logg.Info("http", "Token for unknown user rejected (id anonymized)")
			clearTokenCookie(w)
		}

		if views.WantsJSON(r) {
			views.WriteJSON(w, map[string]string{"error": "unauthorized"}, http.StatusUnauthorized)
			return
		}
		s.setFlash(w, r, flash.Message{Errors: map[string]string{"login": "Please login first"}})
		redirect(w, r, "/login")
	})
}

// checkPermission lets only the post's author through. The loaded post is
// handed to next through the request context.
func (s *Server) checkPermission(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		post, err := s.store.GetPost(r.Context(), r.PathValue("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.notFound(w, r)
				return
			}
			storeError(w, "http/posts", err)
			return
		}

		userID, _ := middleware.UserIDFromContext(r.Context())
		if post.AuthorID != userID {
			logg.Info("http/posts", "Permission denied for post (ids anonymized)")
			s.forbidden(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), postCtxKey, post)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// publish sends a post event within PublishTimeout. Failures are logged and
// never fail the request since the post is already stored.
func (s *Server) publish(r *http.Request, eventType string, post models.Post) {
	if s.kafkaWriter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.PublishTimeout)
	defer cancel()
	if err := appkafka.Publish(ctx, s.kafkaWriter, appkafka.NewPostEvent(eventType, post)); err != nil {
		logg.Error("http/posts", "Failed to publish "+eventType, err)
	}
}
