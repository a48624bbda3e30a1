package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"binder/internal/config"
)

const userAgent = "Binder-Go/0.1.0"

// Event identifies a notification-worthy occurrence.
type Event string

const (
	// EventLinkUpdateCompleted fires after a link update run finishes.
	// Payload keys: updated, skipped, failed.
	EventLinkUpdateCompleted Event = "link-update-completed"
	// EventZombieCleanupExecuted fires after zombie Excel processes were
	// reaped. Payload keys: cleaned, forced.
	EventZombieCleanupExecuted Event = "zombie-cleanup-executed"
	// EventForceCloseExecuted fires after all Excel processes were closed.
	// Payload keys: closed, forced.
	EventForceCloseExecuted Event = "force-close-executed"
	// EventPerformanceAlert fires when resource usage crosses a critical
	// threshold. Payload keys: issues.
	EventPerformanceAlert Event = "performance-alert"
	// EventError fires for failures worth pushing to a phone.
	// Payload keys: context, error.
	EventError Event = "error"
	// EventTest exercises the delivery path end to end.
	EventTest Event = "test"
)

// Payload carries event-specific fields used to format the message.
type Payload map[string]string

// Service defines the notification surface exposed to the rest of the
// daemon. Publish never blocks the caller beyond the configured HTTP
// timeout and returns nil for events the configuration suppresses.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: endpointFor(cfg.Notifications.NtfyServer, topic),
		client:   &http.Client{Timeout: timeout},
		allow: map[Event]bool{
			EventLinkUpdateCompleted:   cfg.Notifications.LinkReports,
			EventZombieCleanupExecuted: cfg.Notifications.ProcessAlerts,
			EventForceCloseExecuted:    cfg.Notifications.ProcessAlerts,
			EventPerformanceAlert:      cfg.Notifications.ProcessAlerts,
			EventError:                 cfg.Notifications.Errors,
			EventTest:                  true,
		},
	}
}

// endpointFor joins the ntfy server and topic. A topic that is already a
// full URL is used as-is, which keeps test servers and self-hosted
// instances simple to point at.
func endpointFor(server, topic string) string {
	if strings.Contains(topic, "://") {
		return topic
	}
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if server == "" {
		server = "https://ntfy.sh"
	}
	return server + "/" + topic
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	allow    map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if allowed, known := n.allow[event]; known && !allowed {
		return nil
	}

	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventLinkUpdateCompleted:
		updated := count(payload, "updated")
		skipped := count(payload, "skipped")
		failed := count(payload, "failed")
		msg := message{
			title: "Binder - Links Updated",
			body:  fmt.Sprintf("🔗 Link update complete: %s updated, %s skipped", updated, skipped),
			tags:  []string{"binder", "links", "completed"},
		}
		if failed != "0" {
			msg.title = "Binder - Links Updated (with failures)"
			msg.body = fmt.Sprintf("🔗 Link update complete: %s updated, %s skipped, %s failed", updated, skipped, failed)
			msg.priority = "high"
		}
		return msg, true

	case EventZombieCleanupExecuted:
		body := fmt.Sprintf("🧹 Cleaned up %s zombie Excel process(es)", count(payload, "cleaned"))
		if forced := count(payload, "forced"); forced != "0" {
			body = fmt.Sprintf("%s (%s force killed)", body, forced)
		}
		return message{
			title: "Binder - Process Cleanup",
			body:  body,
			tags:  []string{"binder", "procs", "cleanup"},
		}, true

	case EventForceCloseExecuted:
		body := fmt.Sprintf("Closed %s Excel process(es)", count(payload, "closed"))
		if forced := count(payload, "forced"); forced != "0" {
			body = fmt.Sprintf("%s (%s force killed)", body, forced)
		}
		return message{
			title: "Binder - Excel Closed",
			body:  body,
			tags:  []string{"binder", "procs", "closed"},
		}, true

	case EventPerformanceAlert:
		issues := strings.TrimSpace(payload["issues"])
		if issues == "" {
			issues = "resource usage exceeded a critical threshold"
		}
		return message{
			title:    "Binder - Performance Alert",
			body:     "⚠️ " + issues,
			tags:     []string{"binder", "performance", "alert"},
			priority: "high",
		}, true

	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if contextLabel := strings.TrimSpace(payload["context"]); contextLabel != "" {
			builder.WriteString(" with ")
			builder.WriteString(contextLabel)
		}
		builder.WriteString(": ")
		if detail := strings.TrimSpace(payload["error"]); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Binder - Error",
			body:     builder.String(),
			tags:     []string{"binder", "error", "alert"},
			priority: "high",
		}, true

	case EventTest:
		return message{
			title:    "Binder - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"binder", "test"},
			priority: "low",
		}, true
	}

	return message{}, false
}

// count returns the payload value for key, defaulting to "0" so message
// templates never render empty counters.
func count(payload Payload, key string) string {
	value := strings.TrimSpace(payload[key])
	if value == "" {
		return "0"
	}
	return value
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
