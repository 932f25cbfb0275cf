package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"example.com/cassandrablog/internal/models"
	"example.com/cassandrablog/internal/search"
)

// MockStore simulates the store in memory for testing.
type MockStore struct {
	mu          sync.Mutex
	userCounter int

	Users      map[string]string
	Posts      map[string]models.Post
	Stats      map[string]int64
	ShouldFail bool // flag to simulate failures

	// Call counters let tests assert a write never happened
	UpdateCalls int
	DeleteCalls int
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Users: make(map[string]string),
		Posts: make(map[string]models.Post),
		Stats: make(map[string]int64),
	}
}

func (m *MockStore) Close() {}

func (m *MockStore) fail(op string) error {
	if m.ShouldFail {
		return errors.New("mock: " + op + " failed")
	}
	return nil
}

// CreateUser returns the existing id when the username is taken
func (m *MockStore) CreateUser(_ context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create user"); err != nil {
		return "", err
	}
	for id, u := range m.Users {
		if u == username {
			return id, nil
		}
	}
	m.userCounter++
	id := fmt.Sprintf("user_%d", m.userCounter)
	m.Users[id] = username
	return id, nil
}

// GetUserIDByUsername returns the user ID for a given username
func (m *MockStore) GetUserIDByUsername(_ context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get user by username"); err != nil {
		return "", err
	}
	for id, u := range m.Users {
		if u == username {
			return id, nil
		}
	}
	return "", nil
}

func (m *MockStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getUserLocked(id)
}

func (m *MockStore) getUserLocked(id string) (*models.User, error) {
	if err := m.fail("get user"); err != nil {
		return nil, err
	}
	username, ok := m.Users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.User{ID: id, Username: username}, nil
}

func (m *MockStore) FindUsersByUsername(_ context.Context, text string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("find users"); err != nil {
		return nil, err
	}
	var res []models.User
	for id, u := range m.Users {
		if search.ContainsFold(u, text) {
			res = append(res, models.User{ID: id, Username: u})
		}
	}
	return res, nil
}

// AddPost simulates adding a post
func (m *MockStore) AddPost(_ context.Context, post models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("add post"); err != nil {
		return err
	}
	if err := post.Validate(); err != nil {
		return err
	}
	post.Author = nil
	m.Posts[post.ID] = post
	return nil
}

func (m *MockStore) GetPost(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get post"); err != nil {
		return nil, err
	}
	p, ok := m.Posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Author, _ = m.getUserLocked(p.AuthorID)
	return &p, nil
}

func (m *MockStore) UpdatePost(_ context.Context, post models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if err := m.fail("update post"); err != nil {
		return err
	}
	current, ok := m.Posts[post.ID]
	if !ok {
		return ErrNotFound
	}
	current.Title = post.Title
	current.Body = post.Body
	current.UpdatedAt = post.UpdatedAt
	if err := current.Validate(); err != nil {
		return err
	}
	m.Posts[post.ID] = current
	return nil
}

func (m *MockStore) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if err := m.fail("delete post"); err != nil {
		return err
	}
	if _, ok := m.Posts[id]; !ok {
		return ErrNotFound
	}
	delete(m.Posts, id)
	return nil
}

// matching returns the posts matching f, newest first
func (m *MockStore) matching(f search.Filter) []models.Post {
	var res []models.Post
	for _, p := range m.Posts {
		if f.Match(p) {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res
}

func (m *MockStore) CountPosts(_ context.Context, f search.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("count posts"); err != nil {
		return 0, err
	}
	return len(m.matching(f)), nil
}

func (m *MockStore) FindPosts(_ context.Context, f search.Filter, skip, limit int) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("find posts"); err != nil {
		return nil, err
	}
	page := search.Window(m.matching(f), skip, limit)
	res := make([]models.Post, len(page))
	for i, p := range page {
		p.Author, _ = m.getUserLocked(p.AuthorID)
		res[i] = p
	}
	return res, nil
}

func (m *MockStore) AddAuthorPostCount(_ context.Context, authorID string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("add author post count"); err != nil {
		return err
	}
	m.Stats[authorID] += delta
	return nil
}

func (m *MockStore) GetAuthorStats(_ context.Context, authorID string) (models.AuthorStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get author stats"); err != nil {
		return models.AuthorStats{}, err
	}
	return models.AuthorStats{AuthorID: authorID, PostCount: m.Stats[authorID]}, nil
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) CreateUser(context.Context, string) (string, error) {
	return "", errors.New("mock store create user failed")
}

func (m *MockStoreFail) GetUserIDByUsername(context.Context, string) (string, error) {
	return "", errors.New("mock store get user by username failed")
}

func (m *MockStoreFail) GetUser(context.Context, string) (*models.User, error) {
	return nil, errors.New("mock store get user failed")
}

func (m *MockStoreFail) FindUsersByUsername(context.Context, string) ([]models.User, error) {
	return nil, errors.New("mock store find users failed")
}

func (m *MockStoreFail) AddPost(context.Context, models.Post) error {
	return errors.New("mock store add post failed")
}

func (m *MockStoreFail) GetPost(context.Context, string) (*models.Post, error) {
	return nil, errors.New("mock store get post failed")
}

func (m *MockStoreFail) UpdatePost(context.Context, models.Post) error {
	return errors.New("mock store update post failed")
}

func (m *MockStoreFail) DeletePost(context.Context, string) error {
	return errors.New("mock store delete post failed")
}

func (m *MockStoreFail) CountPosts(context.Context, search.Filter) (int, error) {
	return 0, errors.New("mock store count posts failed")
}

func (m *MockStoreFail) FindPosts(context.Context, search.Filter, int, int) ([]models.Post, error) {
	return nil, errors.New("mock store find posts failed")
}

func (m *MockStoreFail) AddAuthorPostCount(context.Context, string, int64) error {
	return errors.New("mock store add author post count failed")
}

func (m *MockStoreFail) GetAuthorStats(context.Context, string) (models.AuthorStats, error) {
	return models.AuthorStats{}, errors.New("mock store get author stats failed")
}
