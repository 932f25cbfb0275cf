// Package search turns list query parameters into a post filter and holds
// the pagination arithmetic of the post listing.
package search

import (
	"strings"

	"example.com/cassandrablog/internal/models"
)

type Field string

const (
	FieldTitle  Field = "title"
	FieldBody   Field = "body"
	FieldAuthor Field = "author"
)

// Clause is one alternative of a filter. Title and body clauses carry Text,
// author clauses carry AuthorIDs.
type Clause struct {
	Field     Field
	Text      string
	AuthorIDs []string
}

// Filter is an OR of clauses. The zero Filter matches nothing; use All for
// an unrestricted listing.
type Filter struct {
	Clauses []Clause
	all     bool
}

// All is the "no filtering" sentinel.
var All = Filter{all: true}

func (f Filter) IsAll() bool { return f.all }

func (f Filter) MatchesNothing() bool { return !f.all && len(f.Clauses) == 0 }

// Match reports whether the post satisfies any clause.
func (f Filter) Match(p models.Post) bool {
	if f.all {
		return true
	}
	for _, c := range f.Clauses {
		if c.match(p) {
			return true
		}
	}
	return false
}

func (c Clause) match(p models.Post) bool {
	switch c.Field {
	case FieldTitle:
		return ContainsFold(p.Title, c.Text)
	case FieldBody:
		return ContainsFold(p.Body, c.Text)
	case FieldAuthor:
		for _, id := range c.AuthorIDs {
			if p.AuthorID == id {
				return true
			}
		}
	}
	return false
}

// ContainsFold is a case-insensitive substring test.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
