package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"binder/internal/config"
	"binder/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "link update clean",
			event: notifications.EventLinkUpdateCompleted,
			payload: notifications.Payload{
				"updated": "4",
				"skipped": "2",
				"failed":  "0",
			},
			expectTitle:   "Binder - Links Updated",
			expectMessage: "🔗 Link update complete: 4 updated, 2 skipped",
			expectTags:    "binder,links,completed",
		},
		{
			name:  "link update with failures",
			event: notifications.EventLinkUpdateCompleted,
			payload: notifications.Payload{
				"updated": "3",
				"skipped": "1",
				"failed":  "2",
			},
			expectTitle:    "Binder - Links Updated (with failures)",
			expectMessage:  "🔗 Link update complete: 3 updated, 1 skipped, 2 failed",
			expectTags:     "binder,links,completed",
			expectPriority: "high",
		},
		{
			name:  "zombie cleanup",
			event: notifications.EventZombieCleanupExecuted,
			payload: notifications.Payload{
				"cleaned": "2",
				"forced":  "1",
			},
			expectTitle:   "Binder - Process Cleanup",
			expectMessage: "🧹 Cleaned up 2 zombie Excel process(es) (1 force killed)",
			expectTags:    "binder,procs,cleanup",
		},
		{
			name:  "force close",
			event: notifications.EventForceCloseExecuted,
			payload: notifications.Payload{
				"closed": "3",
			},
			expectTitle:   "Binder - Excel Closed",
			expectMessage: "Closed 3 Excel process(es)",
			expectTags:    "binder,procs,closed",
		},
		{
			name:  "performance alert",
			event: notifications.EventPerformanceAlert,
			payload: notifications.Payload{
				"issues": "Critical CPU usage: 97.2%",
			},
			expectTitle:    "Binder - Performance Alert",
			expectMessage:  "⚠️ Critical CPU usage: 97.2%",
			expectTags:     "binder,performance,alert",
			expectPriority: "high",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "links-update",
				"error":   "failed to reach workbook",
			},
			expectTitle:    "Binder - Error",
			expectMessage:  "❌ Error with links-update: failed to reach workbook",
			expectTags:     "binder,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test notification",
			event:          notifications.EventTest,
			payload:        nil,
			expectTitle:    "Binder - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "binder,test",
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
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
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

func TestNtfyServiceIgnoresSuppressedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.LinkReports = false
	cfg.Notifications.ProcessAlerts = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	suppressed := []notifications.Event{
		notifications.EventLinkUpdateCompleted,
		notifications.EventZombieCleanupExecuted,
		notifications.EventForceCloseExecuted,
		notifications.EventPerformanceAlert,
		notifications.EventError,
	}

	for _, event := range suppressed {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceJoinsServerAndTopic(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyServer = server.URL + "/"
	cfg.Notifications.NtfyTopic = "binder-alerts"

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if path != "/binder-alerts" {
		t.Fatalf("expected topic path /binder-alerts, got %q", path)
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("topic is reserved"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic is reserved") {
		t.Fatalf("expected status and body in error, got %v", err)
	}
}
