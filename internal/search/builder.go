package search

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"example.com/cassandrablog/internal/models"
)

// MinTextLength is the shortest searchText that restricts the listing.
const MinTextLength = 3

// UserFinder resolves usernames for author searches.
type UserFinder interface {
	// GetUserIDByUsername returns "" without an error when no user has
	// exactly this username.
	GetUserIDByUsername(ctx context.Context, username string) (string, error)
	FindUsersByUsername(ctx context.Context, text string) ([]models.User, error)
}

// Build translates searchType/searchText into a Filter. It returns All when
// the request does not ask for a search, and a filter matching nothing when
// it asks for one that no clause can satisfy.
func Build(ctx context.Context, users UserFinder, searchType, searchText string) (Filter, error) {
	if searchType == "" || utf8.RuneCountInString(searchText) < MinTextLength {
		return All, nil
	}

	types := tokens(searchType)
	var clauses []Clause

	if types["title"] {
		clauses = append(clauses, Clause{Field: FieldTitle, Text: searchText})
	}
	if types["body"] {
		clauses = append(clauses, Clause{Field: FieldBody, Text: searchText})
	}

	if types["author!"] {
		id, err := users.GetUserIDByUsername(ctx, searchText)
		if err != nil {
			return Filter{}, fmt.Errorf("failed to resolve author: %w", err)
		}
		if id != "" {
			clauses = append(clauses, Clause{Field: FieldAuthor, AuthorIDs: []string{id}})
		}
	} else if types["author"] {
		found, err := users.FindUsersByUsername(ctx, searchText)
		if err != nil {
			return Filter{}, fmt.Errorf("failed to search authors: %w", err)
		}
		if len(found) > 0 {
			ids := make([]string, 0, len(found))
			for _, u := range found {
				ids = append(ids, u.ID)
			}
			clauses = append(clauses, Clause{Field: FieldAuthor, AuthorIDs: ids})
		}
	}

	return Filter{Clauses: clauses}, nil
}

func tokens(searchType string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Split(strings.ToLower(searchType), ",") {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = true
		}
	}
	return set
}
