package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/cassandrablog/internal/flash"
	"example.com/cassandrablog/internal/middleware"
	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/search"
	"example.com/cassandrablog/internal/store"
	"example.com/cassandrablog/internal/views"
	"github.com/google/uuid"
)

// --- Post handlers ---

// listPostsHandler renders one page of posts, newest first.
// Query parameters: page, limit, searchType, searchText.
func (s *Server) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := search.StateFromQuery(r.URL.Query())
	page, limit := search.ParsePage(state.Page, state.Limit)

	filter, err := search.Build(ctx, s.store, state.SearchType, state.SearchText)
	if err != nil {
		storeError(w, "http/posts", err)
		return
	}

	var posts []models.Post
	maxPage := 0
	if !filter.MatchesNothing() {
		count, err := s.store.CountPosts(ctx, filter)
		if err != nil {
			storeError(w, "http/posts", err)
			return
		}
		maxPage = search.MaxPage(count, limit)

		posts, err = s.store.FindPosts(ctx, filter, search.Skip(page, limit), limit)
		if err != nil {
			storeError(w, "http/posts", err)
			return
		}
	}

	s.render(w, r, http.StatusOK, "index", &views.Page{
		Title:      "Posts",
		State:      state,
		Posts:      posts,
		Pagination: views.NewPagination(page, maxPage, limit),
	})
}

func (s *Server) newPostHandler(w http.ResponseWriter, r *http.Request) {
	msg := flash.Get(r.Context(), s.flash, w, r)
	s.render(w, r, http.StatusOK, "new", &views.Page{
		Title:  "New post",
		State:  search.StateFromQuery(r.URL.Query()),
		Form:   msg.Post,
		Errors: msg.Errors,
	})
}

// decodePostForm reads title and body from a JSON or form body.
func decodePostForm(r *http.Request) (flash.PostForm, error) {
	var form flash.PostForm
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return form, err
		}
		return form, nil
	}
	if err := r.ParseForm(); err != nil {
		return form, err
	}
	form.Title = r.PostForm.Get("title")
	form.Body = r.PostForm.Get("body")
	return form, nil
}

// failValidation sends the form and its errors back to the page that
// produced them. JSON clients get 422 with the errors instead.
func (s *Server) failValidation(w http.ResponseWriter, r *http.Request, verrs models.ValidationErrors, form flash.PostForm, back string) {
	if views.WantsJSON(r) {
		views.WriteJSON(w, map[string]any{"errors": verrs}, http.StatusUnprocessableEntity)
		return
	}
	s.setFlash(w, r, flash.Message{Post: &form, Errors: verrs})
	redirect(w, r, back)
}

// createPostHandler stores a post by the logged in user and publishes
// post_created. On success the listing is shown from page 1 without search.
func (s *Server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := search.StateFromQuery(r.URL.Query())

	form, err := decodePostForm(r)
	if err != nil {
		logg.Error("http/posts", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	userID, _ := middleware.UserIDFromContext(ctx)
	post := models.Post{
		ID:        uuid.NewString(),
		Title:     form.Title,
		Body:      form.Body,
		AuthorID:  userID,
		CreatedAt: time.Now().UTC(),
	}

	err = post.Validate()
	if err == nil {
		err = s.store.AddPost(ctx, post)
	}
	if err != nil {
		var verrs models.ValidationErrors
		if errors.As(err, &verrs) {
			s.failValidation(w, r, verrs, form, "/posts/new"+state.Encode())
			return
		}
		storeError(w, "http/posts", err)
		return
	}

	logg.Info("http/posts", "Post created successfully (ids anonymized)")
	s.publish(r, models.PostCreated, post)

	if views.WantsJSON(r) {
		views.WriteJSON(w, post, http.StatusCreated)
		return
	}
	redirect(w, r, "/posts"+state.Cleared().Encode())
}

func (s *Server) showPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	post, err := s.store.GetPost(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.notFound(w, r)
			return
		}
		storeError(w, "http/posts", err)
		return
	}

	stats, err := s.store.GetAuthorStats(ctx, post.AuthorID)
	if err != nil {
		logg.Error("http/posts", "Failed to load author stats", err)
	}

	s.render(w, r, http.StatusOK, "show", &views.Page{
		Title:       post.Title,
		State:       search.StateFromQuery(r.URL.Query()),
		Post:        post,
		AuthorPosts: stats.PostCount,
	})
}

// editPostHandler prefers the flashed form of a failed update over the
// stored post.
func (s *Server) editPostHandler(w http.ResponseWriter, r *http.Request) {
	post := postFromContext(r.Context())
	msg := flash.Get(r.Context(), s.flash, w, r)

	form := msg.Post
	if form == nil {
		form = &flash.PostForm{Title: post.Title, Body: post.Body}
	}
	form.ID = post.ID

	s.render(w, r, http.StatusOK, "edit", &views.Page{
		Title:  "Edit post",
		State:  search.StateFromQuery(r.URL.Query()),
		Post:   post,
		Form:   form,
		Errors: msg.Errors,
	})
}

func (s *Server) updatePostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current := postFromContext(ctx)
	state := search.StateFromQuery(r.URL.Query())

	form, err := decodePostForm(r)
	if err != nil {
		logg.Error("http/posts", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	form.ID = current.ID

	post := *current
	post.Author = nil
	post.Title = form.Title
	post.Body = form.Body
	post.UpdatedAt = time.Now().UTC()

	err = post.Validate()
	if err == nil {
		err = s.store.UpdatePost(ctx, post)
	}
	if err != nil {
		var verrs models.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			s.failValidation(w, r, verrs, form, "/posts/"+post.ID+"/edit"+state.Encode())
		case errors.Is(err, store.ErrNotFound):
			s.notFound(w, r)
		default:
			storeError(w, "http/posts", err)
		}
		return
	}

	logg.Info("http/posts", "Post updated successfully (ids anonymized)")
	s.publish(r, models.PostUpdated, post)

	if views.WantsJSON(r) {
		views.WriteJSON(w, post, http.StatusOK)
		return
	}
	redirect(w, r, "/posts/"+post.ID+state.Encode())
}

func (s *Server) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	post := postFromContext(ctx)

	if err := s.store.DeletePost(ctx, post.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.notFound(w, r)
			return
		}
		storeError(w, "http/posts", err)
		return
	}

	logg.Info("http/posts", "Post deleted successfully (ids anonymized)")
	s.publish(r, models.PostDeleted, *post)

	if views.WantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	redirect(w, r, "/posts"+search.StateFromQuery(r.URL.Query()).Encode())
}
