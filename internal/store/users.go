package store

import (
	"context"

	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/search"
	"github.com/gocql/gocql"
)

// --- User operations ---

// GetUserIDByUsername returns the existing user_id by username.
// If the user does not exist, it returns empty string without an error.
func (s *Store) GetUserIDByUsername(ctx context.Context, username string) (string, error) {
	var id string
	err := s.Session.Query(
		`SELECT user_id FROM users_by_username WHERE username = ?`,
		username,
	).WithContext(ctx).Scan(&id)
	if err != nil {
		if err == gocql.ErrNotFound {
			return "", nil
		}
		logg.Error("store", "Failed to query user by username", err)
		return "", err
	}
	return id, nil
}

// CreateUser creates a new user if the username does not exist.
// Returns the existing user_id if username already exists.
func (s *Store) CreateUser(ctx context.Context, username string) (string, error) {
	existingID, err := s.GetUserIDByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if existingID != "" {
		return existingID, nil
	}

	id := gocql.TimeUUID().String()

	// Claim the username first so two concurrent registrations agree on one id
	result := make(map[string]interface{})
	applied, err := s.Session.Query(`
		INSERT INTO users_by_username (username, user_id)
		VALUES (?, ?) IF NOT EXISTS`,
		username, id,
	).WithContext(ctx).MapScanCAS(result)
	if err != nil {
		logg.Error("store", "Failed to create username entry", err)
		return "", err
	}

	if !applied {
		return s.GetUserIDByUsername(ctx, username)
	}

	err = s.Session.Query(`
		INSERT INTO users (user_id, username)
		VALUES (?, ?)`,
		id, username,
	).WithContext(ctx).Exec()
	if err != nil {
		logg.Error("store", "Failed to create user in main table", err)
		return "", err
	}

	logg.Info("store", "User created successfully (username anonymized)")
	return id, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var username string
	err := s.Session.Query(
		`SELECT username FROM users WHERE user_id = ?`,
		id,
	).WithContext(ctx).Scan(&username)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		logg.Error("store", "Failed to query user by id", err)
		return nil, err
	}
	return &models.User{ID: id, Username: username}, nil
}

// FindUsersByUsername scans the users table; CQL has no substring predicate.
func (s *Store) FindUsersByUsername(ctx context.Context, text string) ([]models.User, error) {
	iter := s.Session.Query(`SELECT user_id, username FROM users`).
		WithContext(ctx).PageSize(500).Iter()

	var id, username string
	var res []models.User
	for iter.Scan(&id, &username) {
		if search.ContainsFold(username, text) {
			res = append(res, models.User{ID: id, Username: username})
		}
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to search users", err)
		return nil, err
	}
	return res, nil
}

// --- Author stats ---

func (s *Store) AddAuthorPostCount(ctx context.Context, authorID string, delta int64) error {
	if err := s.Session.Query(
		`UPDATE author_stats SET post_count = post_count + ? WHERE author_id = ?`,
		delta, authorID,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to update author stats", err)
		return err
	}
	return nil
}

func (s *Store) GetAuthorStats(ctx context.Context, authorID string) (models.AuthorStats, error) {
	stats := models.AuthorStats{AuthorID: authorID}
	err := s.Session.Query(
		`SELECT post_count FROM author_stats WHERE author_id = ?`,
		authorID,
	).WithContext(ctx).Scan(&stats.PostCount)
	if err != nil && err != gocql.ErrNotFound {
		logg.Error("store", "Failed to read author stats", err)
		return stats, err
	}
	return stats, nil
}
