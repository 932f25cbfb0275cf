package store

import (
	"context"
	"errors"
	"fmt"

	config "example.com/cassandrablog/internal/init"
	"example.com/cassandrablog/internal/logger"
	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/search"
)

var logg = logger.New()

// ErrNotFound is returned when a post or user does not exist.
var ErrNotFound = errors.New("not found")

// --- Interfaces ---

// PostRepository persists posts. Reads populate Post.Author; a dangling
// author reference leaves it nil.
type PostRepository interface {
	AddPost(ctx context.Context, post models.Post) error
	GetPost(ctx context.Context, id string) (*models.Post, error)
	UpdatePost(ctx context.Context, post models.Post) error
	DeletePost(ctx context.Context, id string) error
	CountPosts(ctx context.Context, f search.Filter) (int, error)
	// FindPosts returns one page of matching posts, newest first.
	FindPosts(ctx context.Context, f search.Filter, skip, limit int) ([]models.Post, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, username string) (string, error)
	GetUserIDByUsername(ctx context.Context, username string) (string, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	// FindUsersByUsername matches usernames containing text, ignoring case.
	FindUsersByUsername(ctx context.Context, text string) ([]models.User, error)
}

type StatsRepository interface {
	AddAuthorPostCount(ctx context.Context, authorID string, delta int64) error
	GetAuthorStats(ctx context.Context, authorID string) (models.AuthorStats, error)
}

type StoreInterface interface {
	PostRepository
	UserRepository
	StatsRepository
	Close()
}

// New opens the backend selected by STORE_DRIVER.
func New(ctx context.Context, cfg *config.Config) (StoreInterface, error) {
	switch cfg.StoreDriver {
	case "", "cassandra":
		return NewCassandra(cfg)
	case "postgres":
		return NewPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.StoreDriver)
	}
}

type userGetter interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// populateAuthors resolves author references, looking each author up once.
func populateAuthors(ctx context.Context, users userGetter, posts []models.Post) error {
	cache := make(map[string]*models.User)
	for i := range posts {
		id := posts[i].AuthorID
		u, ok := cache[id]
		if !ok {
			var err error
			u, err = users.GetUser(ctx, id)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("failed to populate author: %w", err)
			}
			cache[id] = u
		}
		posts[i].Author = u
	}
	return nil
}
