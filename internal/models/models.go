package models

import (
	"sort"
	"strings"
	"time"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Post is a blog post. Author is only set when the reference was populated
// on read.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	AuthorID  string    `json:"author_id"`
	Author    *User     `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Post event types published on every successful mutation.
const (
	PostCreated = "post_created"
	PostUpdated = "post_updated"
	PostDeleted = "post_deleted"
)

type PostEvent struct {
	Type string    `json:"type"`
	Post Post      `json:"post"`
	At   time.Time `json:"at"`
}

type AuthorStats struct {
	AuthorID  string `json:"author_id"`
	PostCount int64  `json:"post_count"`
}

// ValidationErrors maps a field name to its message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate checks the fields every stored post must carry.
func (p Post) Validate() error {
	errs := ValidationErrors{}
	if strings.TrimSpace(p.Title) == "" {
		errs["title"] = "Title is required!"
	}
	if strings.TrimSpace(p.Body) == "" {
		errs["body"] = "Body is required!"
	}
	if p.AuthorID == "" {
		errs["author"] = "Author is required!"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidUsername applies the 1-50 character rule used at registration.
func ValidUsername(username string) bool {
	return len(username) > 0 && len(username) <= 50
}
