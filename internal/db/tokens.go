package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DeviceToken represents a push token registered for one (user, device) pair.
type DeviceToken struct {
	ID         string
	UserID     string
	Token      string
	DeviceID   string
	DeviceName string
	IsActive   bool
	CreatedAt  time.Time
	LastUsed   time.Time
}

// ErrTokenNotFound is returned when an unregister matches no rows.
var ErrTokenNotFound = errors.New("device token not found")

// RegisterToken registers or renews a push token for (userID, deviceID).
// Upsert semantics: an existing (user, device) row is updated in place; a
// token string already registered under another device is repointed to the
// new owner (last write wins); otherwise a fresh row is inserted.
func (db *DB) RegisterToken(ctx context.Context, userID, token, deviceID, deviceName string) (*DeviceToken, error) {
	now := time.Now().UTC()

	var existingID string
	err := db.QueryRowContext(ctx,
		"SELECT id FROM device_tokens WHERE user_id = ? AND device_id = ?",
		userID, deviceID,
	).Scan(&existingID)

	switch {
	case err == nil:
		_, err = db.ExecContext(ctx,
			`UPDATE device_tokens
			SET token = ?, device_name = ?, last_used = ?, is_active = 1
			WHERE id = ?`,
			token, deviceName, now, existingID,
		)
		if err != nil {
			return nil, err
		}
		return db.getToken(ctx, existingID)

	case err == sql.ErrNoRows:
		// Token string may already exist under a different device.
		var byTokenID string
		err = db.QueryRowContext(ctx,
			"SELECT id FROM device_tokens WHERE token = ?",
			token,
		).Scan(&byTokenID)
		if err == nil {
			_, err = db.ExecContext(ctx,
				`UPDATE device_tokens
				SET user_id = ?, device_id = ?, device_name = ?, last_used = ?, is_active = 1
				WHERE id = ?`,
				userID, deviceID, deviceName, now, byTokenID,
			)
			if err != nil {
				return nil, err
			}
			return db.getToken(ctx, byTokenID)
		}
		if err != sql.ErrNoRows {
			return nil, err
		}

		id := uuid.NewString()
		_, err = db.ExecContext(ctx,
			`INSERT INTO device_tokens (id, user_id, token, device_id, device_name, is_active, created_at, last_used)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			id, userID, token, deviceID, deviceName, now, now,
		)
		if err != nil {
			return nil, err
		}
		return db.getToken(ctx, id)

	default:
		return nil, err
	}
}

// UnregisterToken deactivates the caller's token by device id or token
// string; at least one must be provided.
func (db *DB) UnregisterToken(ctx context.Context, userID, deviceID, token string) (int64, error) {
	if deviceID == "" && token == "" {
		return 0, errors.New("either device_id or token must be provided")
	}

	var res sql.Result
	var err error
	if deviceID != "" {
		res, err = db.ExecContext(ctx,
			"UPDATE device_tokens SET is_active = 0 WHERE user_id = ? AND device_id = ?",
			userID, deviceID,
		)
	} else {
		res, err = db.ExecContext(ctx,
			"UPDATE device_tokens SET is_active = 0 WHERE user_id = ? AND token = ?",
			userID, token,
		)
	}
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrTokenNotFound
	}
	return n, nil
}

// ActiveTokens returns all active tokens for a user.
func (db *DB) ActiveTokens(ctx context.Context, userID string) ([]DeviceToken, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, token, device_id, COALESCE(device_name, ''), is_active, created_at, last_used
		FROM device_tokens
		WHERE user_id = ? AND is_active = 1`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []DeviceToken
	for rows.Next() {
		var t DeviceToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.DeviceID, &t.DeviceName, &t.IsActive, &t.CreatedAt, &t.LastUsed); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// DeactivateByToken marks a token inactive after the push provider reports
// it invalid. Matches by token string regardless of owner.
func (db *DB) DeactivateByToken(ctx context.Context, token string) error {
	_, err := db.ExecContext(ctx,
		"UPDATE device_tokens SET is_active = 0 WHERE token = ?",
		token,
	)
	return err
}

// TouchLastUsed refreshes last_used after a successful delivery.
func (db *DB) TouchLastUsed(ctx context.Context, deviceID string) error {
	_, err := db.ExecContext(ctx,
		"UPDATE device_tokens SET last_used = ? WHERE device_id = ?",
		time.Now().UTC(), deviceID,
	)
	return err
}

// CleanupInactive hard-deletes inactive token rows. An empty userID cleans
// up globally.
func (db *DB) CleanupInactive(ctx context.Context, userID string) (int64, error) {
	var res sql.Result
	var err error
	if userID != "" {
		res, err = db.ExecContext(ctx,
			"DELETE FROM device_tokens WHERE user_id = ? AND is_active = 0",
			userID,
		)
	} else {
		res, err = db.ExecContext(ctx,
			"DELETE FROM device_tokens WHERE is_active = 0",
		)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *DB) getToken(ctx context.Context, id string) (*DeviceToken, error) {
	var t DeviceToken
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, token, device_id, COALESCE(device_name, ''), is_active, created_at, last_used
		FROM device_tokens WHERE id = ?`,
		id,
	).Scan(&t.ID, &t.UserID, &t.Token, &t.DeviceID, &t.DeviceName, &t.IsActive, &t.CreatedAt, &t.LastUsed)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
