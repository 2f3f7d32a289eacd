package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// SendError represents a failure reported by the push provider.
type SendError struct {
	StatusCode int
	Code       string // FCM v1 error code, e.g. UNREGISTERED
	Message    string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("fcm error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Permanent reports whether the token is dead and should be deactivated
// rather than retried.
func (e *SendError) Permanent() bool {
	switch e.Code {
	case "UNREGISTERED", "SENDER_ID_MISMATCH":
		return true
	}
	return false
}

// AsSendError extracts a SendError from err.
func AsSendError(err error) (*SendError, bool) {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr, true
	}
	return nil, false
}

// IsPermanent reports whether err is a provider-reported dead-token failure.
func IsPermanent(err error) bool {
	if sendErr, ok := AsSendError(err); ok {
		return sendErr.Permanent()
	}
	return false
}

// Client sends messages through the FCM HTTP v1 API.
type Client struct {
	endpoint   string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient builds a client from a service account key. The project ID is
// taken from the key unless overridden.
func NewClient(ctx context.Context, serviceAccountJSON []byte, projectID string) (*Client, error) {
	if len(serviceAccountJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}

	creds, err := google.CredentialsFromJSON(ctx, serviceAccountJSON, messagingScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	if projectID == "" {
		projectID = creds.ProjectID
	}
	if projectID == "" {
		return nil, errors.New("firebase project id not set")
	}

	httpClient := oauth2.NewClient(ctx, creds.TokenSource)
	httpClient.Timeout = 10 * time.Second

	return &Client{
		endpoint:   fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", projectID),
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

type fcmMessage struct {
	Message struct {
		Token string            `json:"token"`
		Data  map[string]string `json:"data"`
	} `json:"message"`
}

type fcmErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// Send delivers one data-only message to one token. The payload carries no
// notification block so client platforms don't render a second system
// notification outside the app's own handler. A nil return means the
// provider accepted the message; any failure is a *SendError or a transport
// error.
func (c *Client) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	var msg fcmMessage
	msg.Message.Token = token
	msg.Message.Data = make(map[string]string, len(data)+3)
	for k, v := range data {
		msg.Message.Data[k] = v
	}
	msg.Message.Data["title"] = title
	msg.Message.Data["body"] = body
	msg.Message.Data["tag"] = "task-" + strconv.FormatInt(c.now().Unix(), 10)

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	sendErr := &SendError{StatusCode: resp.StatusCode}

	var errBody fcmErrorBody
	if json.Unmarshal(raw, &errBody) == nil {
		sendErr.Code = errBody.Error.Status
		sendErr.Message = errBody.Error.Message
		for _, d := range errBody.Error.Details {
			if d.ErrorCode != "" {
				sendErr.Code = d.ErrorCode
			}
		}
	}
	if sendErr.Message == "" {
		sendErr.Message = string(raw)
	}
	return sendErr
}

// newTestClient is used by tests to point at a fake FCM endpoint.
func newTestClient(endpoint string, httpClient *http.Client, now func() time.Time) *Client {
	return &Client{endpoint: endpoint, httpClient: httpClient, now: now}
}
