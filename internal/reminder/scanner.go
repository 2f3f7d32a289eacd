package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"getitdone/internal/db"
)

const reminderTitle = "Task Reminder"

// ScannerConfig holds the reminder window offsets.
type ScannerConfig struct {
	// WindowStartOffset is how far ahead the window opens. Default 9m30s.
	WindowStartOffset time.Duration
	// WindowEndOffset is how far ahead the window closes. Default 10m30s.
	// The half-minute padding on both sides absorbs processing delay around
	// the nominal 10-minute mark.
	WindowEndOffset time.Duration
}

// DefaultScannerConfig returns the documented defaults.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		WindowStartOffset: 9*time.Minute + 30*time.Second,
		WindowEndOffset:   10*time.Minute + 30*time.Second,
	}
}

// Scanner runs one pass over upcoming tasks and fans reminders out to their
// owners' devices.
type Scanner struct {
	config   ScannerConfig
	tasks    TaskStore
	profiles ProfileStore
	sender   *Sender
	ledger   Ledger
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewScanner creates a scanner. nowFn is injectable for tests; nil means
// time.Now.
func NewScanner(
	config ScannerConfig,
	tasks TaskStore,
	profiles ProfileStore,
	sender *Sender,
	ledger Ledger,
	logger *zerolog.Logger,
	nowFn func() time.Time,
) *Scanner {
	if config.WindowStartOffset <= 0 {
		config.WindowStartOffset = 9*time.Minute + 30*time.Second
	}
	if config.WindowEndOffset <= 0 {
		config.WindowEndOffset = 10*time.Minute + 30*time.Second
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Scanner{
		config:   config,
		tasks:    tasks,
		profiles: profiles,
		sender:   sender,
		ledger:   ledger,
		logger:   logger,
		now:      nowFn,
	}
}

// RunOnce executes a single scan. It never returns an error: every failure
// is logged and absorbed so one bad scan contributes nothing rather than
// killing the loop.
func (s *Scanner) RunOnce(ctx context.Context) ScanStats {
	start := time.Now()
	defer func() {
		scanDuration.Observe(time.Since(start).Seconds())
		cacheSize.Set(float64(s.ledger.Size(ctx)))
	}()

	var stats ScanStats

	s.ledger.Purge(ctx)

	now := s.now()
	windowStart := now.Add(s.config.WindowStartOffset)
	windowEnd := now.Add(s.config.WindowEndOffset)

	upcoming, err := s.queryWindow(ctx, windowStart, windowEnd)
	if err != nil {
		s.logger.Error().Err(err).Msg("fetch upcoming tasks")
		scansTotal.WithLabelValues("error").Inc()
		return stats
	}
	stats.TasksFound = len(upcoming)

	if len(upcoming) == 0 {
		s.logger.Debug().Msg("no upcoming tasks in window")
		scansTotal.WithLabelValues("ok").Inc()
		return stats
	}
	s.logger.Info().Int("count", len(upcoming)).
		Str("window_start", db.TimeOfDay(windowStart)).
		Str("window_end", db.TimeOfDay(windowEnd)).
		Msg("found upcoming tasks")

	// Dedup filter, then group the survivors by owner.
	byUser := make(map[string][]db.Task)
	for _, task := range upcoming {
		key := Key{TaskID: task.ID, UserID: task.UserID}
		if s.ledger.HasRecent(ctx, key) {
			s.logger.Debug().Str("task_id", task.ID).Msg("skipping task, reminder sent recently")
			stats.Filtered++
			dedupSuppressed.Inc()
			continue
		}
		byUser[task.UserID] = append(byUser[task.UserID], task)
	}
	stats.Users = len(byUser)

	if len(byUser) == 0 {
		s.logger.Debug().Int("filtered", stats.Filtered).Msg("nothing left after dedup filter")
		scansTotal.WithLabelValues("ok").Inc()
		return stats
	}

	for userID, userTasks := range byUser {
		userName := s.profiles.DisplayName(ctx, userID)

		for _, task := range userTasks {
			priority := task.Priority
			if priority == "" {
				priority = "Medium"
			}

			body := fmt.Sprintf("Hey, %s! %s is starting in 10 minutes—let's do this! Priority: %s",
				userName, task.Name, priority)
			data := map[string]string{
				"type":      "task_reminder",
				"task_name": task.Name,
				"priority":  priority,
				"user_name": userName,
			}

			result, err := s.sender.SendToUser(ctx, userID, reminderTitle, body, data)
			if err != nil || result.Sent == 0 {
				stats.Failed++
				notificationsTotal.WithLabelValues("failed").Inc()
				s.logger.Warn().Str("task_id", task.ID).Str("user_id", userID).
					Msg("task reminder not delivered to any device")
				continue
			}

			stats.Sent++
			notificationsTotal.WithLabelValues("sent").Inc()
			s.ledger.Mark(ctx, Key{TaskID: task.ID, UserID: userID})
			s.logger.Info().Str("task_id", task.ID).Str("user_id", userID).
				Str("task", task.Name).Msg("task reminder sent")
		}
	}

	scansTotal.WithLabelValues("ok").Inc()
	s.logger.Info().
		Int("found", stats.TasksFound).
		Int("filtered", stats.Filtered).
		Int("users", stats.Users).
		Int("sent", stats.Sent).
		Int("failed", stats.Failed).
		Msg("reminder scan completed")
	return stats
}

// queryWindow fetches tasks with start_time inside the window, splitting the
// query in two when the window crosses midnight: [start, 23:59:59] on the
// start date and [00:00:00, end] on the end date. A single range query would
// match the wrong rows across the date boundary.
func (s *Scanner) queryWindow(ctx context.Context, windowStart, windowEnd time.Time) ([]db.Task, error) {
	startDate := db.DateOf(windowStart)
	endDate := db.DateOf(windowEnd)
	startTime := db.TimeOfDay(windowStart)
	endTime := db.TimeOfDay(windowEnd)

	if startDate == endDate {
		return s.tasks.DueTasks(ctx, startDate, startTime, endTime)
	}

	s.logger.Debug().Msg("reminder window crosses midnight, splitting query")
	before, err := s.tasks.DueTasks(ctx, startDate, startTime, "23:59:59")
	if err != nil {
		return nil, err
	}
	after, err := s.tasks.DueTasks(ctx, endDate, "00:00:00", endTime)
	if err != nil {
		return nil, err
	}
	return append(before, after...), nil
}
