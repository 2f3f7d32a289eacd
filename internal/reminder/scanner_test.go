package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"getitdone/internal/db"
)

// mockTaskStore filters an in-memory task list the way the real range query
// does, and records every query it receives.
type mockTaskStore struct {
	mu      sync.Mutex
	tasks   []db.Task
	queries [][3]string // date, from, to
	err     error
}

func (m *mockTaskStore) DueTasks(_ context.Context, date, fromTime, toTime string) ([]db.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, [3]string{date, fromTime, toTime})
	if m.err != nil {
		return nil, m.err
	}
	var out []db.Task
	for _, t := range m.tasks {
		if t.CreatedAt == date && t.StartTime >= fromTime && t.StartTime <= toTime && t.UserID != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

type mockProfiles struct {
	names map[string]string
}

func (m *mockProfiles) DisplayName(_ context.Context, userID string) string {
	if name, ok := m.names[userID]; ok {
		return name
	}
	return "you"
}

// capturePusher records every accepted message.
type capturePusher struct {
	mu    sync.Mutex
	sends []capturedSend
	err   error
}

type capturedSend struct {
	token string
	title string
	body  string
	data  map[string]string
}

func (p *capturePusher) Send(_ context.Context, token, title, body string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sends = append(p.sends, capturedSend{token: token, title: title, body: body, data: data})
	return nil
}

type scannerFixture struct {
	scanner *Scanner
	tasks   *mockTaskStore
	tokens  *mockTokenStore
	pusher  *capturePusher
	clock   *fakeClock
	cache   *Cache
}

func newScannerFixture(t *testing.T, now time.Time) *scannerFixture {
	t.Helper()

	clock := &fakeClock{now: now}
	tasks := &mockTaskStore{}
	tokens := newMockTokenStore()
	pusher := &capturePusher{}
	cache := NewCache(10*time.Minute, 15*time.Minute, clock.Now)
	logger := zerolog.Nop()

	sender := NewSender(tokens, pusher, nil, RetryConfig{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
	}, &logger)

	scanner := NewScanner(DefaultScannerConfig(), tasks, &mockProfiles{names: map[string]string{}},
		sender, cache, &logger, clock.Now)

	return &scannerFixture{
		scanner: scanner,
		tasks:   tasks,
		tokens:  tokens,
		pusher:  pusher,
		clock:   clock,
		cache:   cache,
	}
}

func TestScannerWindowSelection(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.tokens.add("user-1", "token-1", "device-1")

	f.tasks.tasks = []db.Task{
		{ID: "in-window", UserID: "user-1", Name: "Standup", StartTime: "12:10:00", CreatedAt: "2025-06-01"},
		{ID: "too-soon", UserID: "user-1", Name: "Coffee", StartTime: "12:08:00", CreatedAt: "2025-06-01"},
		{ID: "too-late", UserID: "user-1", Name: "Lunch", StartTime: "12:12:00", CreatedAt: "2025-06-01"},
	}

	stats := f.scanner.RunOnce(context.Background())

	assert.Equal(t, 1, stats.TasksFound, "only the task at now+10m is in the window")
	assert.Equal(t, 1, stats.Sent)
	require.Len(t, f.pusher.sends, 1)
	assert.Equal(t, "Task Reminder", f.pusher.sends[0].title)

	// The store saw the documented window bounds.
	require.Len(t, f.tasks.queries, 1)
	assert.Equal(t, [3]string{"2025-06-01", "12:09:30", "12:10:30"}, f.tasks.queries[0])
}

func TestScannerMidnightCrossoverSplitsQuery(t *testing.T) {
	// 23:50 + [9m30s, 10m30s] straddles midnight.
	now := time.Date(2025, 6, 1, 23, 50, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.tokens.add("user-1", "token-1", "device-1")

	f.tasks.tasks = []db.Task{
		{ID: "before-midnight", UserID: "user-1", Name: "Wrap up", StartTime: "23:59:45", CreatedAt: "2025-06-01"},
		{ID: "after-midnight", UserID: "user-1", Name: "Night shift", StartTime: "00:00:15", CreatedAt: "2025-06-02"},
	}

	stats := f.scanner.RunOnce(context.Background())

	require.Len(t, f.tasks.queries, 2, "window across midnight must split into two queries")
	assert.Equal(t, [3]string{"2025-06-01", "23:59:30", "23:59:59"}, f.tasks.queries[0])
	assert.Equal(t, [3]string{"2025-06-02", "00:00:00", "00:00:30"}, f.tasks.queries[1])

	assert.Equal(t, 2, stats.TasksFound)
	assert.Equal(t, 2, stats.Sent)
}

func TestScannerWindowEntirelyTomorrow(t *testing.T) {
	// At 23:55 the whole window lies past midnight: one query, dated tomorrow.
	now := time.Date(2025, 6, 1, 23, 55, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.tokens.add("user-1", "token-1", "device-1")

	f.tasks.tasks = []db.Task{
		{ID: "tomorrow", UserID: "user-1", Name: "Early start", StartTime: "00:05:00", CreatedAt: "2025-06-02"},
	}

	stats := f.scanner.RunOnce(context.Background())

	require.Len(t, f.tasks.queries, 1)
	assert.Equal(t, [3]string{"2025-06-02", "00:04:30", "00:05:30"}, f.tasks.queries[0])
	assert.Equal(t, 1, stats.Sent)
}

func TestScannerDedupIdempotence(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.tokens.add("user-1", "token-1", "device-1")
	f.tasks.tasks = []db.Task{
		{ID: "task-1", UserID: "user-1", Name: "Standup", StartTime: "12:10:00", CreatedAt: "2025-06-01"},
	}

	stats := f.scanner.RunOnce(context.Background())
	assert.Equal(t, 1, stats.Sent)

	// Second scan inside the suppression horizon: filtered, nothing sent.
	f.clock.Advance(time.Minute)
	stats = f.scanner.RunOnce(context.Background())
	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.Filtered)
	assert.Len(t, f.pusher.sends, 1)

	// Past suppression (but within retention) the same task may fire again,
	// e.g. after being edited back into the window.
	f.clock.Advance(10 * time.Minute)
	f.tasks.tasks[0].StartTime = "12:21:00"
	stats = f.scanner.RunOnce(context.Background())
	assert.Equal(t, 1, stats.Sent)
	assert.Len(t, f.pusher.sends, 2)
}

func TestScannerFailedSendNotMarked(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.tokens.add("user-1", "token-1", "device-1")
	f.pusher.err = errors.New("provider down")
	f.tasks.tasks = []db.Task{
		{ID: "task-1", UserID: "user-1", Name: "Standup", StartTime: "12:10:00", CreatedAt: "2025-06-01"},
	}

	stats := f.scanner.RunOnce(context.Background())
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Sent)

	// A failed send leaves no dedup entry, so the next scan retries it.
	f.pusher.err = nil
	stats = f.scanner.RunOnce(context.Background())
	assert.Equal(t, 0, stats.Filtered)
	assert.Equal(t, 1, stats.Sent)
}

func TestScannerMessageContent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.tokens.add("user-1", "token-1", "device-1")
	f.scanner.profiles = &mockProfiles{names: map[string]string{"user-1": "Ada"}}
	f.tasks.tasks = []db.Task{
		{ID: "task-1", UserID: "user-1", Name: "Deploy", StartTime: "12:10:00", Priority: "High", CreatedAt: "2025-06-01"},
	}

	f.scanner.RunOnce(context.Background())

	require.Len(t, f.pusher.sends, 1)
	sent := f.pusher.sends[0]
	assert.Equal(t, "Task Reminder", sent.title)
	assert.Contains(t, sent.body, "Ada")
	assert.Contains(t, sent.body, "Deploy")
	assert.Contains(t, sent.body, "High")
	assert.Equal(t, "task_reminder", sent.data["type"])
	assert.Equal(t, "High", sent.data["priority"])
}

func TestScannerPriorityDefaultsToMedium(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.tokens.add("user-1", "token-1", "device-1")
	f.tasks.tasks = []db.Task{
		{ID: "task-1", UserID: "user-1", Name: "Deploy", StartTime: "12:10:00", CreatedAt: "2025-06-01"},
	}

	f.scanner.RunOnce(context.Background())

	require.Len(t, f.pusher.sends, 1)
	assert.Contains(t, f.pusher.sends[0].body, "Medium")
	assert.Equal(t, "Medium", f.pusher.sends[0].data["priority"])
}

func TestScannerGroupsByUser(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.tokens.add("user-1", "token-1", "device-1")
	f.tokens.add("user-2", "token-2", "device-2")
	f.tasks.tasks = []db.Task{
		{ID: "t1", UserID: "user-1", Name: "A", StartTime: "12:10:00", CreatedAt: "2025-06-01"},
		{ID: "t2", UserID: "user-1", Name: "B", StartTime: "12:10:10", CreatedAt: "2025-06-01"},
		{ID: "t3", UserID: "user-2", Name: "C", StartTime: "12:10:20", CreatedAt: "2025-06-01"},
	}

	stats := f.scanner.RunOnce(context.Background())

	assert.Equal(t, 3, stats.TasksFound)
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 3, stats.Sent)
}

func TestScannerStoreErrorAbsorbed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newScannerFixture(t, now)
	f.tasks.err = errors.New("store down")

	stats := f.scanner.RunOnce(context.Background())
	assert.Equal(t, ScanStats{}, stats)
}
