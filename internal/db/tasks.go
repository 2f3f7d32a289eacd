package db

import (
	"context"
	"time"
)

// Task is the slice of a task row the reminder engine reads.
type Task struct {
	ID        string
	UserID    string
	Name      string
	StartTime string // time of day, HH:MM:SS
	Priority  string
	CreatedAt string // anchoring date, YYYY-MM-DD
}

// DueTasks returns incomplete, owned tasks created on date whose start_time
// falls within [fromTime, toTime] (time-of-day strings, HH:MM:SS).
// Callers split windows that cross midnight into two calls.
func (db *DB) DueTasks(ctx context.Context, date, fromTime, toTime string) ([]Task, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, name, start_time, COALESCE(priority, ''), created_at
		FROM tasks
		WHERE completed = 0
		  AND created_at = ?
		  AND start_time >= ?
		  AND start_time <= ?
		  AND user_id IS NOT NULL
		  AND user_id != ''`,
		date, fromTime, toTime,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.StartTime, &t.Priority, &t.CreatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkCompleted flags a task as done. Completed tasks drop out of the
// reminder window immediately.
func (db *DB) MarkCompleted(ctx context.Context, taskID string) error {
	_, err := db.ExecContext(ctx,
		"UPDATE tasks SET completed = 1 WHERE id = ?",
		taskID,
	)
	return err
}

// TimeOfDay formats t as the HH:MM:SS string stored in start_time.
func TimeOfDay(t time.Time) string {
	return t.Format("15:04:05")
}

// DateOf formats t as the YYYY-MM-DD string stored in created_at.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
