package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"trackside/internal/config"
	"trackside/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyHeatStarted(context.Background(), 7); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "heat started",
			notify: func(svc notifications.Service) error {
				return svc.NotifyHeatStarted(context.Background(), 12)
			},
			expectTitle:   "Trackside - Heat Started",
			expectMessage: "🏁 Heat 12 under way",
			expectTags:    "trackside,heat,started",
		},
		{
			name: "heat finished",
			notify: func(svc notifications.Service) error {
				return svc.NotifyHeatFinished(context.Background(), 12, 148)
			},
			expectTitle:   "Trackside - Heat Finished",
			expectMessage: "🏁 Heat 12 finished with 148 laps",
			expectTags:    "trackside,heat,finished",
		},
		{
			name: "decoder connected",
			notify: func(svc notifications.Service) error {
				return svc.NotifyDecoderConnected(context.Background(), "10.0.0.20:5403")
			},
			expectTitle:   "Trackside - Decoder Online",
			expectMessage: "📡 Decoder online: 10.0.0.20:5403",
			expectTags:    "trackside,decoder,connected",
		},
		{
			name: "decoder lost",
			notify: func(svc notifications.Service) error {
				return svc.NotifyDecoderLost(context.Background(), errors.New("read tcp: connection reset"))
			},
			expectTitle:    "Trackside - Decoder Lost",
			expectMessage:  "📡 Decoder connection lost: read tcp: connection reset",
			expectTags:     "trackside,decoder,lost",
			expectPriority: "high",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("database is locked"), "pass ingest")
			},
			expectTitle:    "Trackside - Error",
			expectMessage:  "❌ Error with pass ingest: database is locked",
			expectTags:     "trackside,error,alert",
			expectPriority: "high",
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
			if err := tc.notify(svc); err != nil {
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

func TestNtfyServiceHonorsConfigToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.HeatStarted = false
	cfg.Notifications.HeatFinished = false
	cfg.Notifications.Decoder = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyHeatStarted(ctx, 1); err != nil {
		t.Fatalf("suppressed heat started returned error: %v", err)
	}
	if err := svc.NotifyHeatFinished(ctx, 1, 10); err != nil {
		t.Fatalf("suppressed heat finished returned error: %v", err)
	}
	if err := svc.NotifyDecoderConnected(ctx, "addr"); err != nil {
		t.Fatalf("suppressed decoder connected returned error: %v", err)
	}
	if err := svc.NotifyDecoderLost(ctx, nil); err != nil {
		t.Fatalf("suppressed decoder lost returned error: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "test"); err != nil {
		t.Fatalf("suppressed error returned error: %v", err)
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
