package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type capturedRequest struct {
	path    string
	payload struct {
		Message map[string]json.RawMessage `json:"message"`
	}
}

// fakeFCM answers every send with status and body and records the last
// request it saw.
func fakeFCM(t *testing.T, status int, body string) (*FCMSender, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got.payload); err != nil {
			t.Errorf("unmarshal request body: %v", err)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return newFCMSender(srv.URL+"/v1/projects/pid/messages:send", srv.Client()), got
}

func field[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return v
}

func TestFCMSenderAlertIncludesAPNSHeaders(t *testing.T) {
	sender, got := fakeFCM(t, http.StatusOK, `{"name":"projects/pid/messages/1"}`)

	err := sender.Send(context.Background(), "fcm-token-1", Message{
		Data:         map[string]string{"type": "friend_request"},
		Notification: &Notification{Title: "Friend request", Body: "bob sent you a friend request."},
		CollapseKey:  "friend_request:bob",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.path != "/v1/projects/pid/messages:send" {
		t.Fatalf("unexpected path %q", got.path)
	}

	msg := got.payload.Message
	if tok := field[string](t, msg["token"]); tok != "fcm-token-1" {
		t.Fatalf("token = %q", tok)
	}
	if n := field[fcmNotification](t, msg["notification"]); n.Title != "Friend request" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	apns := field[fcmAPNSConfig](t, msg["apns"])
	for k, want := range map[string]string{
		"apns-push-type":   "alert",
		"apns-priority":    "10",
		"apns-collapse-id": "friend_request:bob",
	} {
		if apns.Headers[k] != want {
			t.Fatalf("%s = %q, want %q", k, apns.Headers[k], want)
		}
	}
	if a := field[fcmAndroidConfig](t, msg["android"]); a.Priority != "HIGH" || a.CollapseKey != "friend_request:bob" {
		t.Fatalf("unexpected android config: %+v", a)
	}
}

func TestFCMSenderDataOnlyOmitsAlert(t *testing.T) {
	sender, got := fakeFCM(t, http.StatusOK, `{}`)

	if err := sender.Send(context.Background(), "fcm-token-1", Message{Data: map[string]string{"type": "friend_request"}}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, ok := got.payload.Message["notification"]; ok {
		t.Fatalf("data-only message must not carry a notification")
	}
	if _, ok := got.payload.Message["apns"]; ok {
		t.Fatalf("data-only message must not carry apns headers")
	}
	if d := field[map[string]string](t, got.payload.Message["data"]); d["type"] != "friend_request" {
		t.Fatalf("unexpected data: %v", d)
	}
}

func TestFCMSenderErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		invalid   bool
		temporary bool
		code      string
	}{
		{
			name:    "unregistered",
			status:  http.StatusNotFound,
			body:    `{"error":{"status":"NOT_FOUND","message":"gone","details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`,
			invalid: true,
			code:    "UNREGISTERED",
		},
		{
			name:    "sender mismatch",
			status:  http.StatusForbidden,
			body:    `{"error":{"status":"PERMISSION_DENIED","details":[{"errorCode":"SENDER_ID_MISMATCH"}]}}`,
			invalid: true,
			code:    "SENDER_ID_MISMATCH",
		},
		{
			name:      "quota",
			status:    http.StatusTooManyRequests,
			body:      `{"error":{"status":"RESOURCE_EXHAUSTED","details":[{"errorCode":"QUOTA_EXCEEDED"}]}}`,
			temporary: true,
			code:      "QUOTA_EXCEEDED",
		},
		{
			name:      "plain text",
			status:    http.StatusBadGateway,
			body:      "upstream down",
			temporary: true,
		},
		{
			name:   "status only",
			status: http.StatusBadRequest,
			body:   `{"error":{"status":"INVALID_ARGUMENT","message":"bad payload"}}`,
			code:   "INVALID_ARGUMENT",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, _ := fakeFCM(t, tt.status, tt.body)
			err := sender.Send(context.Background(), "tok", Message{})

			var se *SendError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SendError, got %v", err)
			}
			if se.StatusCode != tt.status || se.Code != tt.code {
				t.Fatalf("unexpected error fields: %+v", se)
			}
			if errors.Is(err, ErrInvalidToken) != tt.invalid {
				t.Fatalf("invalid token = %v, want %v", !tt.invalid, tt.invalid)
			}
			if se.Temporary() != tt.temporary {
				t.Fatalf("temporary = %v, want %v", se.Temporary(), tt.temporary)
			}
		})
	}
}

func TestFCMSenderRejectsEmptyToken(t *testing.T) {
	sender, _ := fakeFCM(t, http.StatusOK, `{}`)
	if err := sender.Send(context.Background(), "  ", Message{}); err == nil || !strings.Contains(err.Error(), "token required") {
		t.Fatalf("expected token error, got %v", err)
	}
}
