package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	config "example.com/cassandrablog/internal/init"
	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/search"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps posts and users in Postgres and pushes the search
// filter down into SQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a connection pool and applies migrations.
func NewPostgres(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	if cfg.MigrationsEnabled {
		if err := runMigrations("postgres", migrateURL(cfg.PostgresDSN)); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pcfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pcfg.MaxConns = 20
	pcfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	pcfg.ConnConfig.StatementCacheCapacity = 256

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logg.Info("store", "Connected to Postgres (dsn anonymized)")
	return &PostgresStore{pool: pool}, nil
}

// migrateURL switches a postgres:// DSN to the scheme the pgx/v5 migrate
// driver registers.
func migrateURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

func (s *PostgresStore) Close() {
	s.pool.Close()
	logg.Info("store", "Postgres pool closed")
}

// filterSQL renders f as a WHERE clause, appending its arguments to args.
func filterSQL(f search.Filter, args []any) (string, []any) {
	if f.IsAll() {
		return "", args
	}

	var ors []string
	for _, c := range f.Clauses {
		switch c.Field {
		case search.FieldTitle:
			args = append(args, c.Text)
			ors = append(ors, fmt.Sprintf("position(lower($%d) in lower(p.title)) > 0", len(args)))
		case search.FieldBody:
			args = append(args, c.Text)
			ors = append(ors, fmt.Sprintf("position(lower($%d) in lower(p.body)) > 0", len(args)))
		case search.FieldAuthor:
			args = append(args, c.AuthorIDs)
			ors = append(ors, fmt.Sprintf("p.author_id = ANY($%d)", len(args)))
		}
	}

	if len(ors) == 0 {
		return " WHERE FALSE", args
	}
	return " WHERE " + strings.Join(ors, " OR "), args
}

// --- Posts ---

func (s *PostgresStore) AddPost(ctx context.Context, post models.Post) error {
	if err := post.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO posts (id, title, body, author_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.Title, post.Body, post.AuthorID, post.CreatedAt,
	)
	if err != nil {
		logg.Error("store", "Failed to add post", err)
		return err
	}
	return nil
}

const selectPosts = `
	SELECT p.id, p.title, p.body, p.author_id, p.created_at, p.updated_at, u.username
	FROM posts p
	LEFT JOIN users u ON u.id = p.author_id`

func scanPost(row pgx.Row) (models.Post, error) {
	var p models.Post
	var updated *time.Time
	var username *string
	if err := row.Scan(&p.ID, &p.Title, &p.Body, &p.AuthorID, &p.CreatedAt, &updated, &username); err != nil {
		return p, err
	}
	if updated != nil {
		p.UpdatedAt = *updated
	}
	if username != nil {
		p.Author = &models.User{ID: p.AuthorID, Username: *username}
	}
	return p, nil
}

func (s *PostgresStore) GetPost(ctx context.Context, id string) (*models.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, selectPosts+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		logg.Error("store", "Failed to get post", err)
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) UpdatePost(ctx context.Context, post models.Post) error {
	current, err := s.GetPost(ctx, post.ID)
	if err != nil {
		return err
	}
	post.AuthorID = current.AuthorID
	if err := post.Validate(); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE posts SET title = $1, body = $2, updated_at = $3
		WHERE id = $4`,
		post.Title, post.Body, post.UpdatedAt, post.ID,
	)
	if err != nil {
		logg.Error("store", "Failed to update post", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeletePost(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		logg.Error("store", "Failed to delete post", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountPosts(ctx context.Context, f search.Filter) (int, error) {
	where, args := filterSQL(f, nil)
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM posts p`+where, args...).Scan(&count); err != nil {
		logg.Error("store", "Failed to count posts", err)
		return 0, err
	}
	return count, nil
}

func (s *PostgresStore) FindPosts(ctx context.Context, f search.Filter, skip, limit int) ([]models.Post, error) {
	where, args := filterSQL(f, nil)
	args = append(args, skip, limit)
	query := selectPosts + where +
		fmt.Sprintf(` ORDER BY p.created_at DESC, p.id OFFSET $%d LIMIT $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		logg.Error("store", "Failed to find posts", err)
		return nil, err
	}
	defer rows.Close()

	var res []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		logg.Error("store", "Failed to read posts", err)
		return nil, err
	}
	return res, nil
}

// --- Users ---

func (s *PostgresStore) GetUserIDByUsername(ctx context.Context, username string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		logg.Error("store", "Failed to query user by username", err)
		return "", err
	}
	return id, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, username string) (string, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username) VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING`,
		uuid.NewString(), username,
	)
	if err != nil {
		logg.Error("store", "Failed to create user", err)
		return "", err
	}
	return s.GetUserIDByUsername(ctx, username)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := models.User{ID: id}
	err := s.pool.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, id).Scan(&u.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) FindUsersByUsername(ctx context.Context, text string) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username FROM users
		WHERE position(lower($1) in lower(username)) > 0`,
		text,
	)
	if err != nil {
		logg.Error("store", "Failed to search users", err)
		return nil, err
	}
	defer rows.Close()

	var res []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// --- Author stats ---

func (s *PostgresStore) AddAuthorPostCount(ctx context.Context, authorID string, delta int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO author_stats (author_id, post_count) VALUES ($1, $2)
		ON CONFLICT (author_id) DO UPDATE SET post_count = author_stats.post_count + EXCLUDED.post_count`,
		authorID, delta,
	)
	if err != nil {
		logg.Error("store", "Failed to update author stats", err)
	}
	return err
}

func (s *PostgresStore) GetAuthorStats(ctx context.Context, authorID string) (models.AuthorStats, error) {
	stats := models.AuthorStats{AuthorID: authorID}
	err := s.pool.QueryRow(ctx, `SELECT post_count FROM author_stats WHERE author_id = $1`, authorID).
		Scan(&stats.PostCount)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return stats, err
	}
	return stats, nil
}
