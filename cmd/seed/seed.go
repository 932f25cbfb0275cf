package seed

import (
	"context"
	"fmt"
	"time"

	"example.com/cassandrablog/internal/logger"
	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/store"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

var logg = logger.New()

// Run creates users fake users and posts fake posts spread over the past
// year. Author stats are written directly since no events are published.
func Run(ctx context.Context, st store.StoreInterface, users, posts int, faker *gofakeit.Faker) error {
	if users <= 0 {
		return fmt.Errorf("seed needs at least one user, got %d", users)
	}
	if faker == nil {
		faker = gofakeit.New(time.Now().UnixNano())
	}

	ids := make([]string, 0, users)
	seen := make(map[string]bool, users)
	for len(ids) < users {
		name := faker.Username()
		if len(name) > 50 {
			name = name[:50]
		}
		id, err := st.CreateUser(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		// CreateUser hands back existing ids for repeated names
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	logg.Info("seed", fmt.Sprintf("Created %d users", len(ids)))

	now := time.Now().UTC()
	yearAgo := now.AddDate(-1, 0, 0)
	counts := make(map[string]int64, len(ids))

	for i := 0; i < posts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		author := ids[faker.Number(0, len(ids)-1)]
		post := models.Post{
			ID:        uuid.NewString(),
			Title:     faker.Sentence(faker.Number(3, 8)),
			Body:      faker.Paragraph(faker.Number(1, 4), faker.Number(2, 5), 12, "\n\n"),
			AuthorID:  author,
			CreatedAt: faker.DateRange(yearAgo, now).UTC(),
		}
		if err := st.AddPost(ctx, post); err != nil {
			return fmt.Errorf("failed to add post: %w", err)
		}
		counts[author]++
	}

	for author, n := range counts {
		if err := st.AddAuthorPostCount(ctx, author, n); err != nil {
			return fmt.Errorf("failed to update author stats: %w", err)
		}
	}

	logg.Info("seed", fmt.Sprintf("Created %d posts", posts))
	return nil
}
