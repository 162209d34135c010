package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signscribe/internal/auth"
	"signscribe/internal/config"
	"signscribe/internal/notifications"
)

var _ auth.Mailer = notifications.NewService(&config.Config{})

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	if notifications.Enabled(&cfg) {
		t.Fatal("default config must not enable notifications")
	}
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyServerError(context.Background(), errors.New("boom"), "/predict"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "password reset",
			send: func(s notifications.Service) error {
				return s.SendPasswordReset(context.Background(), " ana@example.com ", "tok-123", expires)
			},
			expectTitle:    "SignScribe - Password Reset",
			expectMessage:  "Password reset requested for ana@example.com\nToken: tok-123\nExpires: 2026-03-01T12:00:00Z",
			expectTags:     "signscribe,auth,reset",
			expectPriority: "high",
		},
		{
			name: "server started",
			send: func(s notifications.Service) error {
				return s.NotifyServerStarted(context.Background(), "127.0.0.1:8000", true)
			},
			expectTitle:   "SignScribe - Server Started",
			expectMessage: "Listening on 127.0.0.1:8000",
			expectTags:    "signscribe,server,started",
		},
		{
			name: "server started without model",
			send: func(s notifications.Service) error {
				return s.NotifyServerStarted(context.Background(), "127.0.0.1:8000", false)
			},
			expectTitle:   "SignScribe - Server Started",
			expectMessage: "Listening on 127.0.0.1:8000\nNo sign model loaded; /predict returns 503",
			expectTags:    "signscribe,server,started,warning",
		},
		{
			name: "error",
			send: func(s notifications.Service) error {
				return s.NotifyServerError(context.Background(), errors.New("tensor shape mismatch"), "/predict")
			},
			expectTitle:    "SignScribe - Error",
			expectMessage:  "Error on /predict: tensor shape mismatch",
			expectTags:     "signscribe,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			send:           func(s notifications.Service) error { return s.TestNotification(context.Background()) },
			expectTitle:    "SignScribe - Test",
			expectMessage:  "Notification system test",
			expectTags:     "signscribe,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeoutSeconds = 5

			if err := tc.send(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic is read-only", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for forbidden topic")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic is read-only") {
		t.Fatalf("unexpected error: %v", err)
	}
}
