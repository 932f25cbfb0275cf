package store

import (
	"context"
	"time"

	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/search"
	"github.com/gocql/gocql"
)

// All posts share one partition of posts_by_time so the listing can be
// read newest first. Filters are applied while paging through it since CQL
// has neither OR nor substring predicates.
//
// A listing request therefore reads the partition twice: CountPosts walks
// all of it and FindPosts walks it up to the end of the requested page.
// Both costs grow with the total number of posts, not with the page size.
const postsBucket = 0

const scanPageSize = 500

// --- Post operations ---

func (s *Store) AddPost(ctx context.Context, post models.Post) error {
	if err := post.Validate(); err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`
		INSERT INTO posts (post_id, title, body, author_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		post.ID, post.Title, post.Body, post.AuthorID, post.CreatedAt,
	)
	batch.Query(`
		INSERT INTO posts_by_time (bucket, created_at, post_id, title, body, author_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		postsBucket, post.CreatedAt, post.ID, post.Title, post.Body, post.AuthorID,
	)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to add post", err)
		return err
	}

	logg.Info("store", "Post added to posts tables (post content anonymized)")
	return nil
}

// getPostRow reads a post without populating its author.
func (s *Store) getPostRow(ctx context.Context, id string) (*models.Post, error) {
	p := models.Post{ID: id}
	var updated *time.Time
	err := s.Session.Query(`
		SELECT title, body, author_id, created_at, updated_at
		FROM posts WHERE post_id = ?`,
		id,
	).WithContext(ctx).Scan(&p.Title, &p.Body, &p.AuthorID, &p.CreatedAt, &updated)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		logg.Error("store", "Failed to get post", err)
		return nil, err
	}
	if updated != nil {
		p.UpdatedAt = *updated
	}
	return &p, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*models.Post, error) {
	p, err := s.getPostRow(ctx, id)
	if err != nil {
		return nil, err
	}
	posts := []models.Post{*p}
	if err := populateAuthors(ctx, s, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// UpdatePost rewrites title, body and updated_at. Author and creation time
// are kept from the stored row.
func (s *Store) UpdatePost(ctx context.Context, post models.Post) error {
	current, err := s.getPostRow(ctx, post.ID)
	if err != nil {
		return err
	}
	post.AuthorID = current.AuthorID
	if err := post.Validate(); err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`
		UPDATE posts SET title = ?, body = ?, updated_at = ?
		WHERE post_id = ?`,
		post.Title, post.Body, post.UpdatedAt, post.ID,
	)
	batch.Query(`
		UPDATE posts_by_time SET title = ?, body = ?, updated_at = ?
		WHERE bucket = ? AND created_at = ? AND post_id = ?`,
		post.Title, post.Body, post.UpdatedAt, postsBucket, current.CreatedAt, post.ID,
	)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to update post", err)
		return err
	}

	logg.Info("store", "Post updated (post content anonymized)")
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	current, err := s.getPostRow(ctx, id)
	if err != nil {
		return err
	}

	batch := s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM posts WHERE post_id = ?`, id)
	batch.Query(`
		DELETE FROM posts_by_time
		WHERE bucket = ? AND created_at = ? AND post_id = ?`,
		postsBucket, current.CreatedAt, id,
	)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to delete post", err)
		return err
	}

	logg.Info("store", "Post deleted")
	return nil
}

func (s *Store) CountPosts(ctx context.Context, f search.Filter) (int, error) {
	return countMatching(ctx, s.scanPosts, f)
}

func (s *Store) FindPosts(ctx context.Context, f search.Filter, skip, limit int) ([]models.Post, error) {
	res, err := pageMatching(ctx, s.scanPosts, f, skip, limit)
	if err != nil {
		return nil, err
	}
	if err := populateAuthors(ctx, s, res); err != nil {
		return nil, err
	}
	return res, nil
}

// postScanner feeds posts newest first to fn until it returns false.
type postScanner func(ctx context.Context, fn func(models.Post) bool) error

func countMatching(ctx context.Context, scan postScanner, f search.Filter) (int, error) {
	if f.MatchesNothing() {
		return 0, nil
	}
	count := 0
	err := scan(ctx, func(p models.Post) bool {
		if f.Match(p) {
			count++
		}
		return true
	})
	return count, err
}

// pageMatching skips the first skip matches and stops the scan as soon as
// limit matches are collected.
func pageMatching(ctx context.Context, scan postScanner, f search.Filter, skip, limit int) ([]models.Post, error) {
	if f.MatchesNothing() || limit <= 0 {
		return nil, nil
	}

	var res []models.Post
	seen := 0
	err := scan(ctx, func(p models.Post) bool {
		if !f.Match(p) {
			return true
		}
		seen++
		if seen <= skip {
			return true
		}
		res = append(res, p)
		return len(res) < limit
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// scanPosts walks posts_by_time newest first until fn returns false.
func (s *Store) scanPosts(ctx context.Context, fn func(models.Post) bool) error {
	iter := s.Session.Query(`
		SELECT post_id, title, body, author_id, created_at, updated_at
		FROM posts_by_time WHERE bucket = ?`,
		postsBucket,
	).WithContext(ctx).PageSize(scanPageSize).Iter()

	var p models.Post
	var updated *time.Time
	for iter.Scan(&p.ID, &p.Title, &p.Body, &p.AuthorID, &p.CreatedAt, &updated) {
		p.UpdatedAt = time.Time{}
		if updated != nil {
			p.UpdatedAt = *updated
		}
		if !fn(p) {
			break
		}
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to scan posts", err)
		return err
	}
	return nil
}
