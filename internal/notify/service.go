package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"calldesk/internal/config"
)

const userAgent = "Calldesk-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyCallReceived(ctx context.Context, callID int64) error
	NotifyExtractionCompleted(ctx context.Context, callID int64, serviceType string, confidence float64) error
	NotifyReviewNeeded(ctx context.Context, callID int64, reason string) error
	NotifyFeedbackSubmitted(ctx context.Context, category string, rating int) error
	NotifyJobCreated(ctx context.Context, jobID int64, title string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by the configured webhook.
// When no webhook URL is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	url := strings.TrimSpace(cfg.Notifications.WebhookURL)
	if url == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &webhookService{
		endpoint: url,
		client:   &http.Client{Timeout: timeout},
		calls:    cfg.Notifications.Calls,
		extract:  cfg.Notifications.Extractions,
		feedback: cfg.Notifications.Feedback,
		jobs:     cfg.Notifications.Jobs,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type webhookService struct {
	endpoint string
	client   *http.Client
	calls    bool
	extract  bool
	feedback bool
	jobs     bool
	errors   bool
}

func (n *webhookService) NotifyCallReceived(ctx context.Context, callID int64) error {
	if !n.calls {
		return nil
	}
	data := payload{
		title:   "Calldesk - Call Received",
		message: fmt.Sprintf("New call #%d queued for processing", callID),
		tags:    []string{"calldesk", "call", "received"},
	}
	return n.send(ctx, data)
}

func (n *webhookService) NotifyExtractionCompleted(ctx context.Context, callID int64, serviceType string, confidence float64) error {
	if !n.extract {
		return nil
	}
	serviceType = strings.TrimSpace(serviceType)
	if serviceType == "" {
		serviceType = "unspecified service"
	}
	data := payload{
		title:   "Calldesk - Extraction Complete",
		message: fmt.Sprintf("Call #%d: %s (confidence %.0f%%)", callID, serviceType, confidence*100),
		tags:    []string{"calldesk", "extract", "completed"},
	}
	return n.send(ctx, data)
}

func (n *webhookService) NotifyReviewNeeded(ctx context.Context, callID int64, reason string) error {
	if !n.calls {
		return nil
	}
	reason = strings.TrimSpace(reason)
	message := fmt.Sprintf("Call #%d needs manual review", callID)
	if reason != "" {
		message = fmt.Sprintf("%s\nReason: %s", message, reason)
	}
	data := payload{
		title:    "Calldesk - Review Needed",
		message:  message,
		tags:     []string{"calldesk", "review"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *webhookService) NotifyFeedbackSubmitted(ctx context.Context, category string, rating int) error {
	if !n.feedback {
		return nil
	}
	data := payload{
		title:   "Calldesk - Feedback",
		message: fmt.Sprintf("Feedback submitted: %s (rating %d/5)", category, rating),
		tags:    []string{"calldesk", "feedback"},
	}
	return n.send(ctx, data)
}

func (n *webhookService) NotifyJobCreated(ctx context.Context, jobID int64, title string) error {
	if !n.jobs {
		return nil
	}
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Calldesk - Job Created",
		message: fmt.Sprintf("Job #%d created: %s", jobID, title),
		tags:    []string{"calldesk", "job", "created"},
	}
	return n.send(ctx, data)
}

func (n *webhookService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
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
		title:    "Calldesk - Error",
		message:  builder.String(),
		tags:     []string{"calldesk", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *webhookService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Calldesk - Test",
		message:  "Notification system test",
		tags:     []string{"calldesk", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *webhookService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
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
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyCallReceived(context.Context, int64) error                        { return nil }
func (noopService) NotifyExtractionCompleted(context.Context, int64, string, float64) error { return nil }
func (noopService) NotifyReviewNeeded(context.Context, int64, string) error                { return nil }
func (noopService) NotifyFeedbackSubmitted(context.Context, string, int) error             { return nil }
func (noopService) NotifyJobCreated(context.Context, int64, string) error                  { return nil }
func (noopService) NotifyError(context.Context, error, string) error                       { return nil }
func (noopService) TestNotification(context.Context) error                                 { return nil }
