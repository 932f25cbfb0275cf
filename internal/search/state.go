package search

import (
	"net/url"
	"strings"
)

// State is the listing position carried across redirects and links so the
// user lands back on the same page and search.
type State struct {
	Page       string
	Limit      string
	SearchType string
	SearchText string
}

func StateFromQuery(q url.Values) State {
	return State{
		Page:       q.Get("page"),
		Limit:      q.Get("limit"),
		SearchType: q.Get("searchType"),
		SearchText: q.Get("searchText"),
	}
}

// Cleared drops the search and returns to page 1, keeping the limit.
func (s State) Cleared() State {
	return State{Page: "1", Limit: s.Limit}
}

func (s State) WithPage(page string) State {
	s.Page = page
	return s
}

// Encode renders "?page=..&limit=..&searchType=..&searchText=.." with
// empty values left out, or "" when nothing is set.
func (s State) Encode() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+url.QueryEscape(v))
		}
	}
	add("page", s.Page)
	add("limit", s.Limit)
	add("searchType", s.SearchType)
	add("searchText", s.SearchText)

	if len(parts) == 0 {
		return ""
	}
	return "?" + strings.Join(parts, "&")
}
