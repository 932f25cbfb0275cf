package search

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"example.com/cassandrablog/internal/models"
)

// fakeUsers is a tiny in-memory UserFinder that counts lookups
type fakeUsers struct {
	users      []models.User
	exactCalls int
	fuzzyCalls int
	fail       bool
}

func (f *fakeUsers) GetUserIDByUsername(_ context.Context, username string) (string, error) {
	f.exactCalls++
	if f.fail {
		return "", errors.New("lookup failed")
	}
	for _, u := range f.users {
		if u.Username == username {
			return u.ID, nil
		}
	}
	return "", nil
}

func (f *fakeUsers) FindUsersByUsername(_ context.Context, text string) ([]models.User, error) {
	f.fuzzyCalls++
	if f.fail {
		return nil, errors.New("lookup failed")
	}
	var out []models.User
	for _, u := range f.users {
		if ContainsFold(u.Username, text) {
			out = append(out, u)
		}
	}
	return out, nil
}

func newUsers() *fakeUsers {
	return &fakeUsers{users: []models.User{
		{ID: "u1", Username: "alice"},
		{ID: "u2", Username: "Malcolm"},
		{ID: "u3", Username: "bob"},
	}}
}

func TestBuild_ShortOrMissingInputListsEverything(t *testing.T) {
	cases := []struct{ searchType, searchText string }{
		{"title", ""},
		{"title", "ca"},
		{"author!", "al"},
		{"title,body,author", "é!"},
		{"", "catalog"},
	}
	for _, c := range cases {
		users := newUsers()
		f, err := Build(context.Background(), users, c.searchType, c.searchText)
		if err != nil {
			t.Fatalf("%+v: unexpected error %v", c, err)
		}
		if !f.IsAll() {
			t.Fatalf("%+v: expected the list-everything sentinel, got %+v", c, f)
		}
		if users.exactCalls+users.fuzzyCalls != 0 {
			t.Fatalf("%+v: no user lookup expected", c)
		}
	}
}

func TestBuild_TitleBodyCaseInsensitive(t *testing.T) {
	f, err := Build(context.Background(), newUsers(), "Title,BODY", "cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	posts := []struct {
		post models.Post
		want bool
	}{
		{models.Post{Title: "My CAT", Body: "x"}, true},
		{models.Post{Title: "x", Body: "concatenate"}, true},
		{models.Post{Title: "dog", Body: "bird"}, false},
	}
	for _, p := range posts {
		if got := f.Match(p.post); got != p.want {
			t.Fatalf("Match(%+v) = %v, want %v", p.post, got, p.want)
		}
	}
}

func TestBuild_ExactAuthor(t *testing.T) {
	users := newUsers()
	f, err := Build(context.Background(), users, "author!", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Match(models.Post{AuthorID: "u1"}) || f.Match(models.Post{AuthorID: "u2"}) {
		t.Fatalf("expected only alice's posts to match, got %+v", f)
	}

	f, err = Build(context.Background(), users, "author!", "alicia")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.IsAll() || !f.MatchesNothing() {
		t.Fatalf("unknown exact author must match nothing, got %+v", f)
	}
}

func TestBuild_FuzzyAuthor(t *testing.T) {
	f, err := Build(context.Background(), newUsers(), "author", "AL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// "AL" is short, so widen to three letters
	if !f.IsAll() {
		t.Fatalf("two letters should not filter, got %+v", f)
	}

	f, err = Build(context.Background(), newUsers(), "author", "alc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Match(models.Post{AuthorID: "u2"}) || f.Match(models.Post{AuthorID: "u1"}) {
		t.Fatalf("expected Malcolm only, got %+v", f)
	}
}

func TestBuild_ExactAuthorTakesPrecedence(t *testing.T) {
	users := newUsers()
	if _, err := Build(context.Background(), users, "author,author!", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if users.exactCalls != 1 || users.fuzzyCalls != 0 {
		t.Fatalf("expected exact lookup only, got exact=%d fuzzy=%d", users.exactCalls, users.fuzzyCalls)
	}
}

func TestBuild_AuthorCombinedWithTitle(t *testing.T) {
	f, err := Build(context.Background(), newUsers(), "title,author", "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Clauses) != 2 {
		t.Fatalf("expected title + author clauses, got %+v", f.Clauses)
	}
	if !f.Match(models.Post{Title: "about BOB"}) || !f.Match(models.Post{AuthorID: "u3"}) {
		t.Fatal("either clause should match")
	}
}

func TestBuild_UnknownTypesMatchNothing(t *testing.T) {
	f, err := Build(context.Background(), newUsers(), "tags", "golang")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.MatchesNothing() || f.Match(models.Post{Title: "golang"}) {
		t.Fatalf("expected match-nothing filter, got %+v", f)
	}
}

func TestBuild_LookupError(t *testing.T) {
	users := newUsers()
	users.fail = true
	if _, err := Build(context.Background(), users, "author", "alice"); err == nil {
		t.Fatal("expected lookup error to propagate")
	}
}

func TestParsePage(t *testing.T) {
	cases := []struct {
		page, limit         string
		wantPage, wantLimit int
	}{
		{"", "", 1, 10},
		{"3", "25", 3, 25},
		{"0", "0", 1, 1},
		{"-4", "-1", 1, 1},
		{"abc", "x", 1, 10},
		{"2", "", 2, 10},
	}
	for _, c := range cases {
		p, l := ParsePage(c.page, c.limit)
		if p != c.wantPage || l != c.wantLimit {
			t.Fatalf("ParsePage(%q, %q) = %d, %d; want %d, %d", c.page, c.limit, p, l, c.wantPage, c.wantLimit)
		}
	}
}

func TestPagination(t *testing.T) {
	if got := MaxPage(25, 10); got != 3 {
		t.Fatalf("MaxPage(25, 10) = %d, want 3", got)
	}
	if got := MaxPage(20, 10); got != 2 {
		t.Fatalf("MaxPage(20, 10) = %d, want 2", got)
	}
	if got := MaxPage(0, 10); got != 0 {
		t.Fatalf("MaxPage(0, 10) = %d, want 0", got)
	}
	if got := Skip(3, 10); got != 20 {
		t.Fatalf("Skip(3, 10) = %d, want 20", got)
	}

	items := []int{1, 2, 3, 4, 5}
	if got := Window(items, 3, 10); len(got) != 2 || got[0] != 4 {
		t.Fatalf("unexpected window %v", got)
	}
	if got := Window(items, 5, 2); got != nil {
		t.Fatalf("expected empty window past the end, got %v", got)
	}
}

func TestState_Encode(t *testing.T) {
	s := StateFromQuery(url.Values{
		"page":       {"2"},
		"limit":      {"5"},
		"searchType": {"title,body"},
		"searchText": {"hello world"},
	})

	got := s.Encode()
	want := "?page=2&limit=5&searchType=title%2Cbody&searchText=hello+world"
	if got != want {
		t.Fatalf("Encode() = %q, want %q", got, want)
	}

	cleared := s.Cleared().Encode()
	if cleared != "?page=1&limit=5" || strings.Contains(cleared, "search") {
		t.Fatalf("Cleared().Encode() = %q", cleared)
	}

	if (State{}).Encode() != "" {
		t.Fatal("empty state should encode to empty string")
	}
}
