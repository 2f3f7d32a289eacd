package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
)

// DisplayName resolves a human-readable name for a user, falling back
// through profile display name, profile full name, auth metadata, email
// local-part, and finally the literal "you". It never returns an error:
// reminder delivery must not fail on a missing name.
func (db *DB) DisplayName(ctx context.Context, userID string) string {
	var displayName, fullName sql.NullString
	err := db.QueryRowContext(ctx,
		"SELECT display_name, full_name FROM profiles WHERE id = ?",
		userID,
	).Scan(&displayName, &fullName)
	if err == nil {
		if name := strings.TrimSpace(displayName.String); name != "" {
			return name
		}
		if name := strings.TrimSpace(fullName.String); name != "" {
			return name
		}
	}

	var email, rawMeta sql.NullString
	err = db.QueryRowContext(ctx,
		"SELECT email, raw_user_meta_data FROM users WHERE id = ?",
		userID,
	).Scan(&email, &rawMeta)
	if err != nil {
		return "you"
	}

	if rawMeta.Valid && rawMeta.String != "" {
		var meta map[string]any
		if json.Unmarshal([]byte(rawMeta.String), &meta) == nil {
			for _, key := range []string{"full_name", "name", "first_name"} {
				if v, ok := meta[key].(string); ok {
					if name := strings.TrimSpace(v); name != "" {
						return name
					}
				}
			}
		}
	}

	if email.Valid {
		if at := strings.Index(email.String, "@"); at > 0 {
			return email.String[:at]
		}
	}

	return "you"
}
