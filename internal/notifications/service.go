package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"signscribe/internal/config"
)

const userAgent = "SignScribe-Go/0.1.0"

// Service defines the notification surface exposed to SignScribe components.
type Service interface {
	SendPasswordReset(ctx context.Context, email, token string, expires time.Time) error
	NotifyServerStarted(ctx context.Context, bind string, modelLoaded bool) error
	NotifyServerError(ctx context.Context, err error, route string) error
	TestNotification(ctx context.Context) error
}

// Enabled reports whether cfg names an ntfy topic.
func Enabled(cfg *config.Config) bool {
	return cfg != nil && strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if !Enabled(cfg) {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: strings.TrimSpace(cfg.Notifications.NtfyTopic),
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) SendPasswordReset(ctx context.Context, email, token string, expires time.Time) error {
	data := payload{
		title: "SignScribe - Password Reset",
		message: fmt.Sprintf("Password reset requested for %s\nToken: %s\nExpires: %s",
			strings.TrimSpace(email), token, expires.UTC().Format(time.RFC3339)),
		tags:     []string{"signscribe", "auth", "reset"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyServerStarted(ctx context.Context, bind string, modelLoaded bool) error {
	message := fmt.Sprintf("Listening on %s", strings.TrimSpace(bind))
	tags := []string{"signscribe", "server", "started"}
	if !modelLoaded {
		message += "\nNo sign model loaded; /predict returns 503"
		tags = append(tags, "warning")
	}
	data := payload{
		title:   "SignScribe - Server Started",
		message: message,
		tags:    tags,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyServerError(ctx context.Context, err error, route string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if route = strings.TrimSpace(route); route != "" {
		builder.WriteString(" on ")
		builder.WriteString(route)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "SignScribe - Error",
		message:  builder.String(),
		tags:     []string{"signscribe", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "SignScribe - Test",
		message:  "Notification system test",
		tags:     []string{"signscribe", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func (noopService) SendPasswordReset(context.Context, string, string, time.Time) error { return nil }
func (noopService) NotifyServerStarted(context.Context, string, bool) error            { return nil }
func (noopService) NotifyServerError(context.Context, error, string) error             { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
