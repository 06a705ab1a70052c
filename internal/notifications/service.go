package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trackside/internal/config"
)

const userAgent = "Trackside-Go/0.1.0"

// Service defines the notification surface exposed to daemon roles.
type Service interface {
	NotifyHeatStarted(ctx context.Context, heatID int64) error
	NotifyHeatFinished(ctx context.Context, heatID int64, laps int) error
	NotifyDecoderConnected(ctx context.Context, addr string) error
	NotifyDecoderLost(ctx context.Context, cause error) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
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
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		heatStarted:  cfg.Notifications.HeatStarted,
		heatFinished: cfg.Notifications.HeatFinished,
		decoder:      cfg.Notifications.Decoder,
		errors:       cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	heatStarted  bool
	heatFinished bool
	decoder      bool
	errors       bool
}

func (n *ntfyService) NotifyHeatStarted(ctx context.Context, heatID int64) error {
	if !n.heatStarted {
		return nil
	}
	data := payload{
		title:   "Trackside - Heat Started",
		message: fmt.Sprintf("🏁 Heat %d under way", heatID),
		tags:    []string{"trackside", "heat", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyHeatFinished(ctx context.Context, heatID int64, laps int) error {
	if !n.heatFinished {
		return nil
	}
	data := payload{
		title:   "Trackside - Heat Finished",
		message: fmt.Sprintf("🏁 Heat %d finished with %d laps", heatID, laps),
		tags:    []string{"trackside", "heat", "finished"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDecoderConnected(ctx context.Context, addr string) error {
	if !n.decoder {
		return nil
	}
	addr = strings.TrimSpace(addr)
	data := payload{
		title:   "Trackside - Decoder Online",
		message: fmt.Sprintf("📡 Decoder online: %s", addr),
		tags:    []string{"trackside", "decoder", "connected"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDecoderLost(ctx context.Context, cause error) error {
	if !n.decoder {
		return nil
	}
	reason := "connection closed"
	if cause != nil {
		reason = strings.TrimSpace(cause.Error())
	}
	data := payload{
		title:    "Trackside - Decoder Lost",
		message:  fmt.Sprintf("📡 Decoder connection lost: %s", reason),
		tags:     []string{"trackside", "decoder", "lost"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Trackside - Error",
		message:  builder.String(),
		tags:     []string{"trackside", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Trackside - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"trackside", "test"},
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

func (noopService) NotifyHeatStarted(context.Context, int64) error       { return nil }
func (noopService) NotifyHeatFinished(context.Context, int64, int) error { return nil }
func (noopService) NotifyDecoderConnected(context.Context, string) error { return nil }
func (noopService) NotifyDecoderLost(context.Context, error) error       { return nil }
func (noopService) NotifyError(context.Context, error, string) error     { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
