package push

import (
	"context"
	"errors"
)

// ErrNotInitialized is returned by Disabled for every send.
var ErrNotInitialized = errors.New("push provider not initialized")

// Disabled stands in for the FCM client when no credentials are configured.
// Every send fails transiently so the scanner keeps working and the failure
// shows up in counters rather than crashing anything.
type Disabled struct{}

func (Disabled) Send(context.Context, string, string, string, map[string]string) error {
	return ErrNotInitialized
}
