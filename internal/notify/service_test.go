package notify_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"calldesk/internal/notify"
	"calldesk/internal/testsupport"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newWebhookService(t *testing.T) (notify.Service, func() []captured) {
	t.Helper()
	var mu sync.Mutex
	var got []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.WebhookURL = server.URL
	cfg.Notifications.Calls = true
	cfg.Notifications.Extractions = true
	cfg.Notifications.Feedback = true
	cfg.Notifications.Jobs = true
	cfg.Notifications.Errors = true

	return notify.NewService(cfg), func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), got...)
	}
}

func TestNewServiceReturnsNoopWhenURLMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.WebhookURL = ""
	svc := notify.NewService(cfg)
	if err := svc.NotifyJobCreated(context.Background(), 1, "Fix sink"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestWebhookServiceFormatsPayloads(t *testing.T) {
	svc, sent := newWebhookService(t)
	ctx := context.Background()

	if err := svc.NotifyJobCreated(ctx, 42, "Fix Kitchen Sink"); err != nil {
		t.Fatalf("NotifyJobCreated: %v", err)
	}
	if err := svc.NotifyReviewNeeded(ctx, 7, "extraction confidence too low"); err != nil {
		t.Fatalf("NotifyReviewNeeded: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("database locked"), "pipeline"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}

	got := sent()
	if len(got) != 3 {
		t.Fatalf("sent %d notifications, want 3", len(got))
	}
	if got[0].title != "Calldesk - Job Created" || got[0].body != "Job #42 created: Fix Kitchen Sink" {
		t.Fatalf("unexpected job notification %+v", got[0])
	}
	if got[1].priority != "high" || got[1].tags != "calldesk,review" {
		t.Fatalf("unexpected review notification %+v", got[1])
	}
	if got[2].body != "Error with pipeline: database locked" {
		t.Fatalf("unexpected error notification %+v", got[2])
	}
}

func TestWebhookServiceHonorsToggles(t *testing.T) {
	svc, sent := newWebhookService(t)
	_ = svc

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.WebhookURL = "http://localhost:1"
	cfg.Notifications.Jobs = false
	muted := notify.NewService(cfg)

	// A muted category returns nil without attempting delivery; the bogus
	// endpoint would otherwise fail.
	if err := muted.NotifyJobCreated(context.Background(), 1, "ignored"); err != nil {
		t.Fatalf("muted NotifyJobCreated: %v", err)
	}
	if len(sent()) != 0 {
		t.Fatal("unexpected delivery on muted category")
	}
}

func TestWebhookServiceSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.WebhookURL = server.URL
	cfg.Notifications.Errors = true
	svc := notify.NewService(cfg)

	if err := svc.NotifyError(context.Background(), errors.New("x"), "test"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
