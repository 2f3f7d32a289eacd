package reminder

import (
	"context"

	"getitdone/internal/db"
)

// FanOutResult aggregates one user-notification attempt across devices.
type FanOutResult struct {
	Sent          int `json:"sent"`
	Failed        int `json:"failed"`
	InvalidTokens int `json:"invalid_tokens"`
}

// Add merges other into r.
func (r *FanOutResult) Add(other FanOutResult) {
	r.Sent += other.Sent
	r.Failed += other.Failed
	r.InvalidTokens += other.InvalidTokens
}

// ScanStats summarizes one scanner execution.
type ScanStats struct {
	TasksFound int `json:"tasks_found"`
	Filtered   int `json:"filtered"`
	Users      int `json:"users"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// TaskStore provides the filtered task queries the scanner needs.
type TaskStore interface {
	// DueTasks returns incomplete owned tasks anchored to date with
	// start_time within [fromTime, toTime], all HH:MM:SS / YYYY-MM-DD
	// strings.
	DueTasks(ctx context.Context, date, fromTime, toTime string) ([]db.Task, error)
}

// TokenStore holds device push tokens with liveness state.
type TokenStore interface {
	ActiveTokens(ctx context.Context, userID string) ([]db.DeviceToken, error)
	DeactivateByToken(ctx context.Context, token string) error
	TouchLastUsed(ctx context.Context, deviceID string) error
}

// ProfileStore resolves display names. Implementations must not fail the
// caller: resolution errors fall back to a generic name.
type ProfileStore interface {
	DisplayName(ctx context.Context, userID string) string
}

// Pusher sends one message to one opaque token. A nil error means the
// provider accepted the message.
type Pusher interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// Ledger suppresses repeat reminders for the same (task, user) within a
// time horizon. The in-memory Cache is the default; RedisLedger backs
// multi-process deployments.
type Ledger interface {
	// Purge drops entries older than the retention horizon.
	Purge(ctx context.Context)
	// HasRecent reports whether key was marked within the suppression
	// horizon.
	HasRecent(ctx context.Context, key Key) bool
	// Mark records a successful send for key, refreshing any prior entry.
	Mark(ctx context.Context, key Key)
	// Size returns the current number of live entries.
	Size(ctx context.Context) int
}

// Key identifies a dedup entry.
type Key struct {
	TaskID string
	UserID string
}

func (k Key) String() string {
	return k.TaskID + "_" + k.UserID
}
