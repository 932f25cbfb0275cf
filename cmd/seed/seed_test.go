package seed

import (
	"context"
	"testing"

	"example.com/cassandrablog/internal/search"
	"example.com/cassandrablog/internal/store"
	"github.com/brianvoe/gofakeit/v6"
)

func TestRun_SeedsUsersPostsAndStats(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()

	if err := Run(ctx, st, 5, 40, gofakeit.New(42)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(st.Users) != 5 {
		t.Fatalf("expected 5 users, got %d", len(st.Users))
	}
	count, _ := st.CountPosts(ctx, search.All)
	if count != 40 {
		t.Fatalf("expected 40 posts, got %d", count)
	}

	var total int64
	for id := range st.Users {
		stats, _ := st.GetAuthorStats(ctx, id)
		total += stats.PostCount
	}
	if total != 40 {
		t.Fatalf("author stats should add up to 40, got %d", total)
	}

	for _, p := range st.Posts {
		if err := p.Validate(); err != nil {
			t.Fatalf("seeded post is invalid: %v", err)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	if err := Run(context.Background(), store.NewMock(), 0, 10, nil); err == nil {
		t.Fatal("expected error without users")
	}
	if err := Run(context.Background(), &store.MockStoreFail{}, 2, 2, gofakeit.New(1)); err == nil {
		t.Fatal("expected store error")
	}
}
