package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/search"
)

func seedPosts(t *testing.T, m *MockStore, authorID string, n int) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		err := m.AddPost(context.Background(), models.Post{
			ID:        fmt.Sprintf("p%02d", i),
			Title:     fmt.Sprintf("post %d", i),
			Body:      "body",
			AuthorID:  authorID,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("AddPost failed: %v", err)
		}
	}
}

func TestMockStore_RoundTripPopulatesAuthor(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	uid, _ := m.CreateUser(ctx, "alice")

	post := models.Post{ID: "p1", Title: "Hello", Body: "World", AuthorID: uid, CreatedAt: time.Now()}
	if err := m.AddPost(ctx, post); err != nil {
		t.Fatalf("AddPost failed: %v", err)
	}

	got, err := m.GetPost(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.Title != "Hello" || got.Body != "World" || got.AuthorID != uid {
		t.Fatalf("unexpected post: %+v", got)
	}
	if got.Author == nil || got.Author.Username != "alice" {
		t.Fatalf("expected populated author, got %+v", got.Author)
	}
}

func TestMockStore_RejectsInvalidPost(t *testing.T) {
	m := NewMock()
	err := m.AddPost(context.Background(), models.Post{ID: "p1", Title: " ", AuthorID: "u"})

	var verrs models.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if verrs["title"] == "" || verrs["body"] == "" {
		t.Fatalf("expected title and body errors, got %+v", verrs)
	}
}

func TestMockStore_PagingNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	uid, _ := m.CreateUser(ctx, "alice")
	seedPosts(t, m, uid, 25)

	count, _ := m.CountPosts(ctx, search.All)
	if count != 25 {
		t.Fatalf("expected 25 posts, got %d", count)
	}

	page, err := m.FindPosts(ctx, search.All, search.Skip(3, 10), 10)
	if err != nil {
		t.Fatalf("FindPosts failed: %v", err)
	}
	if len(page) != 5 {
		t.Fatalf("expected 5 posts on the last page, got %d", len(page))
	}
	if page[0].ID != "p04" || page[4].ID != "p00" {
		t.Fatalf("unexpected ordering: first=%s last=%s", page[0].ID, page[4].ID)
	}
}

func TestMockStore_UnknownPost(t *testing.T) {
	m := NewMock()
	if _, err := m.GetPost(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.DeletePost(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPopulateAuthors_DanglingReference(t *testing.T) {
	ctx := context.Background()
	m := NewMock()
	uid, _ := m.CreateUser(ctx, "alice")

	posts := []models.Post{{AuthorID: uid}, {AuthorID: "removed"}, {AuthorID: uid}}
	if err := populateAuthors(ctx, m, posts); err != nil {
		t.Fatalf("populateAuthors failed: %v", err)
	}
	if posts[0].Author == nil || posts[2].Author == nil {
		t.Fatal("expected existing author to be populated")
	}
	if posts[1].Author != nil {
		t.Fatalf("dangling author should stay nil, got %+v", posts[1].Author)
	}

	if err := populateAuthors(ctx, &MockStoreFail{}, posts); err == nil {
		t.Fatal("expected lookup failure to propagate")
	}
}

func TestFilterSQL(t *testing.T) {
	where, args := filterSQL(search.All, nil)
	if where != "" || len(args) != 0 {
		t.Fatalf("All should not add a WHERE clause, got %q %v", where, args)
	}

	where, _ = filterSQL(search.Filter{}, nil)
	if where != " WHERE FALSE" {
		t.Fatalf("empty filter should match nothing, got %q", where)
	}

	f := search.Filter{Clauses: []search.Clause{
		{Field: search.FieldTitle, Text: "cat"},
		{Field: search.FieldBody, Text: "cat"},
		{Field: search.FieldAuthor, AuthorIDs: []string{"u1", "u2"}},
	}}
	where, args = filterSQL(f, []any{"existing"})

	for _, part := range []string{
		"position(lower($2) in lower(p.title)) > 0",
		"position(lower($3) in lower(p.body)) > 0",
		"p.author_id = ANY($4)",
	} {
		if !strings.Contains(where, part) {
			t.Fatalf("expected %q in %q", part, where)
		}
	}
	if strings.Count(where, " OR ") != 2 {
		t.Fatalf("expected clauses joined by OR, got %q", where)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %v", args)
	}
}

func TestMigrateURL(t *testing.T) {
	got := migrateURL("postgres://u:p@db:5432/blog?sslmode=disable")
	if got != "pgx5://u:p@db:5432/blog?sslmode=disable" {
		t.Fatalf("unexpected url %q", got)
	}
	if migrateURL("pgx5://x") != "pgx5://x" {
		t.Fatal("pgx5 url should be kept")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, name := range []string{
		"migrations/cassandra/000001_init.up.cql",
		"migrations/postgres/000001_init.up.sql",
	} {
		b, err := migrationsFS.ReadFile(name)
		if err != nil {
			t.Fatalf("missing migration %s: %v", name, err)
		}
		if !strings.Contains(string(b), "posts") {
			t.Fatalf("migration %s does not create posts", name)
		}
	}
}

// sliceScanner serves posts newest first and counts the rows it handed out.
func sliceScanner(posts []models.Post, visited *int) postScanner {
	return func(_ context.Context, fn func(models.Post) bool) error {
		for _, p := range posts {
			*visited++
			if !fn(p) {
				break
			}
		}
		return nil
	}
}

func scanRows(n int) []models.Post {
	posts := make([]models.Post, n)
	for i := range posts {
		title := "dog"
		if i%2 == 0 {
			title = "cat"
		}
		posts[i] = models.Post{ID: fmt.Sprintf("r%02d", i), Title: title, Body: "body", AuthorID: "u"}
	}
	return posts
}

func TestPageMatching_SkipAndLimit(t *testing.T) {
	ctx := context.Background()
	cats := search.Filter{Clauses: []search.Clause{{Field: search.FieldTitle, Text: "cat"}}}

	tests := []struct {
		name        string
		filter      search.Filter
		skip, limit int
		wantIDs     []string
		wantVisited int
	}{
		{"first page stops at limit", search.All, 0, 3, []string{"r00", "r01", "r02"}, 3},
		{"skip lands on page boundary", search.All, 3, 3, []string{"r03", "r04", "r05"}, 6},
		{"short last page", search.All, 9, 3, []string{"r09"}, 10},
		{"skip past the end", search.All, 10, 3, nil, 10},
		{"skip counts matches only", cats, 2, 2, []string{"r04", "r06"}, 7},
		{"zero limit", search.All, 0, 0, nil, 0},
		{"match nothing", search.Filter{}, 0, 3, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visited := 0
			got, err := pageMatching(ctx, sliceScanner(scanRows(10), &visited), tt.filter, tt.skip, tt.limit)
			if err != nil {
				t.Fatalf("pageMatching failed: %v", err)
			}
			var ids []string
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Fatalf("expected %v, got %v", tt.wantIDs, ids)
			}
			if visited != tt.wantVisited {
				t.Fatalf("expected %d rows scanned, got %d", tt.wantVisited, visited)
			}
		})
	}
}

func TestCountMatching(t *testing.T) {
	ctx := context.Background()
	cats := search.Filter{Clauses: []search.Clause{{Field: search.FieldTitle, Text: "CAT"}}}

	visited := 0
	n, err := countMatching(ctx, sliceScanner(scanRows(10), &visited), cats)
	if err != nil || n != 5 {
		t.Fatalf("expected 5 matches, got %d (%v)", n, err)
	}
	if visited != 10 {
		t.Fatalf("count should scan every row, scanned %d", visited)
	}

	visited = 0
	if n, _ := countMatching(ctx, sliceScanner(scanRows(10), &visited), search.Filter{}); n != 0 || visited != 0 {
		t.Fatalf("match nothing should not scan, got count %d after %d rows", n, visited)
	}

	failing := func(context.Context, func(models.Post) bool) error { return errors.New("scan failed") }
	if _, err := countMatching(ctx, failing, search.All); err == nil {
		t.Fatal("expected scan error to propagate")
	}
	if _, err := pageMatching(ctx, failing, search.All, 0, 10); err == nil {
		t.Fatal("expected scan error to propagate")
	}
}
