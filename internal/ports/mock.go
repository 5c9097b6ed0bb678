package ports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
)

// MockPlatform is an in-memory Platform for testing. Tests seed comments,
// submissions, and flair directly; writes mutate the same state so
// multi-step flows observe their own effects.
type MockPlatform struct {
	mu sync.RWMutex

	CommentsByID map[string]domain.Comment
	Listing      []domain.Comment
	Exhausted    bool

	SubmissionsByID map[string]domain.Submission
	BotSubmissions  []domain.Submission

	Flair          map[string]string
	FlairTemplates []FlairTemplate
	Moderators     []string
	WikiPages      map[string]string
	Unprocessable  map[string]bool

	Replies []MockReply

	// Call tracking
	Calls map[string]int

	// Error injection. ErrorOnNext fires once and clears; ErrorAlways fires
	// on every call until removed.
	ErrorOnNext map[string]error
	ErrorAlways map[string]error
}

// MockReply records one Reply call.
type MockReply struct {
	ParentID string
	Text     string
}

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		CommentsByID:    make(map[string]domain.Comment),
		SubmissionsByID: make(map[string]domain.Submission),
		Flair:           make(map[string]string),
		WikiPages:       make(map[string]string),
		Unprocessable:   make(map[string]bool),
		Calls:           make(map[string]int),
		ErrorOnNext:     make(map[string]error),
		ErrorAlways:     make(map[string]error),
	}
}

func (m *MockPlatform) trackCall(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name]++
	if err, ok := m.ErrorOnNext[name]; ok {
		delete(m.ErrorOnNext, name)
		return err
	}
	if err, ok := m.ErrorAlways[name]; ok {
		return err
	}
	return nil
}

// CallCount returns how many times a method was invoked.
func (m *MockPlatform) CallCount(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Calls[name]
}

// AddComment seeds a comment into both the id index and the listing head.
func (m *MockPlatform) AddComment(c domain.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommentsByID[c.ID] = c
	m.Listing = append([]domain.Comment{c}, m.Listing...)
}

func (m *MockPlatform) ListRecentComments(ctx context.Context, limit int) (ListingPage, error) {
	if err := m.trackCall("ListRecentComments"); err != nil {
		return ListingPage{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	comments := m.Listing
	exhausted := true
	if limit < len(comments) {
		comments = comments[:limit]
		exhausted = m.Exhausted
	}
	out := make([]domain.Comment, len(comments))
	for i, c := range comments {
		out[i] = m.CommentsByID[c.ID]
	}
	return ListingPage{Comments: out, Exhausted: exhausted}, nil
}

func (m *MockPlatform) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	if err := m.trackCall("GetComment"); err != nil {
		return domain.Comment{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.CommentsByID[id]
	if !ok {
		return domain.Comment{}, fmt.Errorf("comment %s: not found", id)
	}
	return c, nil
}

func (m *MockPlatform) MarkProcessed(ctx context.Context, id string) error {
	if err := m.trackCall("MarkProcessed"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.CommentsByID[id]
	if !ok {
		return fmt.Errorf("comment %s: not found", id)
	}
	c.Saved = true
	m.CommentsByID[id] = c
	return nil
}

func (m *MockPlatform) Reply(ctx context.Context, parentID, text string) (string, error) {
	if err := m.trackCall("Reply"); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replies = append(m.Replies, MockReply{ParentID: parentID, Text: text})
	return fmt.Sprintf("reply%d", len(m.Replies)), nil
}

func (m *MockPlatform) LockComment(ctx context.Context, id string) error {
	if err := m.trackCall("LockComment"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.CommentsByID[id]; ok {
		c.Locked = true
		m.CommentsByID[id] = c
	}
	return nil
}

func (m *MockPlatform) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	if err := m.trackCall("GetSubmission"); err != nil {
		return domain.Submission{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.SubmissionsByID[id]
	if !ok {
		return domain.Submission{}, fmt.Errorf("submission %s: not found", id)
	}
	return s, nil
}

func (m *MockPlatform) ListBotSubmissions(ctx context.Context, limit int) ([]domain.Submission, error) {
	if err := m.trackCall("ListBotSubmissions"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Submission, 0, len(m.BotSubmissions))
	for _, s := range m.BotSubmissions {
		if cur, ok := m.SubmissionsByID[s.ID]; ok {
			s = cur
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockPlatform) SubmitPost(ctx context.Context, title, body, flairID string) (domain.Submission, error) {
	if err := m.trackCall("SubmitPost"); err != nil {
		return domain.Submission{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := domain.Submission{
		ID:         fmt.Sprintf("sub%d", len(m.SubmissionsByID)+1),
		Title:      title,
		CreatedUTC: time.Now().UTC(),
	}
	m.SubmissionsByID[s.ID] = s
	m.BotSubmissions = append([]domain.Submission{s}, m.BotSubmissions...)
	return s, nil
}

func (m *MockPlatform) StickySubmission(ctx context.Context, id string, state bool) error {
	if err := m.trackCall("StickySubmission"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.SubmissionsByID[id]; ok {
		s.Stickied = state
		m.SubmissionsByID[id] = s
	}
	return nil
}

func (m *MockPlatform) SetSuggestedSort(ctx context.Context, id, sort string) error {
	return m.trackCall("SetSuggestedSort")
}

func (m *MockPlatform) LockSubmission(ctx context.Context, id string) error {
	if err := m.trackCall("LockSubmission"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.SubmissionsByID[id]; ok {
		s.Locked = true
		m.SubmissionsByID[id] = s
	}
	return nil
}

func (m *MockPlatform) GetUserFlair(ctx context.Context, username string) (string, error) {
	if err := m.trackCall("GetUserFlair"); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Flair[username], nil
}

func (m *MockPlatform) SetUserFlair(ctx context.Context, username, text, templateID string) error {
	if err := m.trackCall("SetUserFlair"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flair[username] = text
	return nil
}

func (m *MockPlatform) ListFlairTemplates(ctx context.Context) ([]FlairTemplate, error) {
	if err := m.trackCall("ListFlairTemplates"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]FlairTemplate(nil), m.FlairTemplates...), nil
}

func (m *MockPlatform) ListModerators(ctx context.Context) ([]string, error) {
	if err := m.trackCall("ListModerators"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Moderators...), nil
}

func (m *MockPlatform) GetWikiPage(ctx context.Context, name string) (string, error) {
	if err := m.trackCall("GetWikiPage"); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.WikiPages[name]
	if !ok {
		return "", fmt.Errorf("wiki page %s: not found", name)
	}
	return body, nil
}

func (m *MockPlatform) IsUserProcessable(ctx context.Context, username string) (bool, error) {
	if err := m.trackCall("IsUserProcessable"); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.Unprocessable[username], nil
}
