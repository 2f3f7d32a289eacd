package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayNameFallbackChain(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	seedProfile := func(id, displayName, fullName string) {
		_, err := database.Exec(
			"INSERT INTO profiles (id, display_name, full_name) VALUES (?, ?, ?)",
			id, displayName, fullName,
		)
		require.NoError(t, err)
	}
	seedUser := func(id, email, meta string) {
		_, err := database.Exec(
			"INSERT INTO users (id, email, raw_user_meta_data) VALUES (?, ?, ?)",
			id, email, meta,
		)
		require.NoError(t, err)
	}

	seedProfile("u-display", "Ada", "Ada Lovelace")
	seedProfile("u-full", "", "Grace Hopper")
	seedUser("u-meta", "ken@example.com", `{"full_name": "Ken Thompson"}`)
	seedUser("u-meta-name", "", `{"name": "Rob"}`)
	seedUser("u-meta-first", "", `{"first_name": "Dennis"}`)
	seedUser("u-email", "linus@example.com", "")
	seedUser("u-bad-meta", "rich@example.com", "{not json")

	tests := []struct {
		name   string
		userID string
		want   string
	}{
		{"profile display name wins", "u-display", "Ada"},
		{"profile full name next", "u-full", "Grace Hopper"},
		{"auth metadata full_name", "u-meta", "Ken Thompson"},
		{"auth metadata name", "u-meta-name", "Rob"},
		{"auth metadata first_name", "u-meta-first", "Dennis"},
		{"email local-part", "u-email", "linus"},
		{"broken metadata falls through to email", "u-bad-meta", "rich"},
		{"unknown user", "u-nobody", "you"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, database.DisplayName(ctx, tt.userID))
		})
	}
}

func TestDisplayNameTrimsWhitespace(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	_, err := database.Exec(
		"INSERT INTO profiles (id, display_name, full_name) VALUES ('u1', '  Ada  ', '')",
	)
	require.NoError(t, err)

	assert.Equal(t, "Ada", database.DisplayName(ctx, "u1"))
}
