// Package notifications delivers push messages through the Firebase
// Cloud Messaging HTTP v1 API.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	fcmScope    = "https://www.googleapis.com/auth/firebase.messaging"
	fcmBaseURL  = "https://fcm.googleapis.com/v1/projects/"
	sendTimeout = 10 * time.Second
	maxErrBody  = 64 << 10
)

// ErrInvalidToken matches a SendError for a device token FCM no longer
// accepts. The token should be forgotten.
var ErrInvalidToken = errors.New("fcm_invalid_token")

// Message is one push. A nil Notification sends a data-only message;
// iOS needs the alert block to show anything while the app is closed.
// Messages sharing a CollapseKey replace each other on the device.
type Message struct {
	Data         map[string]string
	Notification *Notification
	CollapseKey  string
}

type Notification struct {
	Title string
	Body  string
}

type FCMSender struct {
	endpoint string
	client   *http.Client
}

// NewFCMSender loads a service account file. projectID may be empty when
// the file names the project.
func NewFCMSender(ctx context.Context, projectID, credentialsPath string) (*FCMSender, error) {
	if strings.TrimSpace(credentialsPath) == "" {
		return nil, errors.New("fcm credentials path required")
	}
	raw, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read fcm credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("load fcm credentials: %w", err)
	}
	if projectID == "" {
		projectID = creds.ProjectID
	}
	if projectID == "" {
		return nil, errors.New("fcm project id required")
	}

	client := &http.Client{
		Timeout: sendTimeout,
		Transport: &oauth2.Transport{
			Source: creds.TokenSource,
			Base:   otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	return newFCMSender(fcmBaseURL+projectID+"/messages:send", client), nil
}

func newFCMSender(endpoint string, client *http.Client) *FCMSender {
	return &FCMSender{endpoint: endpoint, client: client}
}

func (s *FCMSender) Send(ctx context.Context, token string, m Message) error {
	if s == nil {
		return errors.New("fcm sender not configured")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("fcm token required")
	}

	body, err := json.Marshal(fcmRequest{Message: buildMessage(token, m)})
	if err != nil {
		return fmt.Errorf("marshal fcm payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build fcm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send fcm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	return parseSendError(resp.StatusCode, raw)
}

func buildMessage(token string, m Message) fcmMessage {
	msg := fcmMessage{
		Token:   token,
		Data:    m.Data,
		Android: fcmAndroidConfig{Priority: "HIGH", CollapseKey: m.CollapseKey},
	}
	if m.Notification == nil {
		return msg
	}
	msg.Notification = &fcmNotification{Title: m.Notification.Title, Body: m.Notification.Body}
	headers := map[string]string{
		"apns-push-type": "alert",
		"apns-priority":  "10",
	}
	if m.CollapseKey != "" {
		headers["apns-collapse-id"] = m.CollapseKey
	}
	msg.APNS = &fcmAPNSConfig{Headers: headers}
	return msg
}

// SendError is a non-2xx answer from FCM.
type SendError struct {
	StatusCode int
	// Code is the FCM error code from the response details, e.g.
	// UNREGISTERED or QUOTA_EXCEEDED. It falls back to the RPC status.
	Code    string
	Message string
}

func (e *SendError) Error() string {
	msg := fmt.Sprintf("fcm send failed: status %d", e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *SendError) Is(target error) bool {
	if target != ErrInvalidToken {
		return false
	}
	switch e.Code {
	case "UNREGISTERED", "SENDER_ID_MISMATCH":
		return true
	}
	return false
}

// Temporary reports whether the same message may succeed later.
func (e *SendError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Data         map[string]string `json:"data,omitempty"`
	Notification *fcmNotification  `json:"notification,omitempty"`
	Android      fcmAndroidConfig  `json:"android,omitzero"`
	APNS         *fcmAPNSConfig    `json:"apns,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAPNSConfig struct {
	Headers map[string]string `json:"headers,omitempty"`
}

type fcmAndroidConfig struct {
	Priority    string `json:"priority,omitempty"`
	CollapseKey string `json:"collapse_key,omitempty"`
}

type fcmErrorResponse struct {
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

func parseSendError(status int, body []byte) *SendError {
	e := &SendError{StatusCode: status}
	var resp fcmErrorResponse
	if len(body) == 0 || json.Unmarshal(body, &resp) != nil {
		e.Message = strings.TrimSpace(string(body))
		return e
	}
	e.Code = resp.Error.Status
	e.Message = resp.Error.Message
	for _, d := range resp.Error.Details {
		if d.ErrorCode != "" {
			e.Code = d.ErrorCode
			break
		}
	}
	return e
}
