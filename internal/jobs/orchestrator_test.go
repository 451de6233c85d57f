package jobs_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"calldesk/internal/customers"
	"calldesk/internal/jobs"
	"calldesk/internal/notify"
	"calldesk/internal/services"
	"calldesk/internal/store"
	"calldesk/internal/testsupport"
)

func newOrchestrator(t *testing.T) (*jobs.Orchestrator, *store.Store, context.Context) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	matcher := customers.NewMatcher(cfg, st, logger)
	orch := jobs.NewOrchestrator(cfg, st, matcher, notify.NewService(cfg), logger)
	return orch, st, context.Background()
}

func seedExtraction(t *testing.T, st *store.Store, userID string, mutate func(*store.Extraction)) *store.Extraction {
	t.Helper()
	call := testsupport.NewTranscribedCall(t, st, userID, "my sink is leaking")
	extraction := &store.Extraction{
		CallID:         call.ID,
		UserID:         userID,
		HasAppointment: true,
		CustomerName:   "john smith",
		CustomerPhone:  "555-123-4567",
		ServiceType:    "plumbing repair",
		Description:    "Kitchen sink leaking under the cabinet.",
		Urgency:        "high",
		PreferredDate:  "tomorrow",
		QuotedPrice:    150,
		Confidence:     0.9,
	}
	if mutate != nil {
		mutate(extraction)
	}
	created, err := st.CreateExtraction(context.Background(), extraction)
	if err != nil {
		t.Fatalf("CreateExtraction: %v", err)
	}
	return created
}

func TestCreateJobValidationReportsAllViolations(t *testing.T) {
	orch, _, ctx := newOrchestrator(t)

	_, err := orch.CreateJob(ctx, "user-1", jobs.CreateJobInput{
		Title:         "Fix Sink",
		CustomerName:  "Jo",
		EstimatedCost: -5,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	violations := services.ValidationViolations(err)
	if len(violations) != 2 {
		t.Fatalf("violations = %v, want name and cost", violations)
	}
	joined := strings.Join(violations, "\n")
	if !strings.Contains(joined, "customer name") || !strings.Contains(joined, "estimated cost") {
		t.Fatalf("unexpected violations %v", violations)
	}
}

func TestCreateJobManual(t *testing.T) {
	orch, st, ctx := newOrchestrator(t)

	result, err := orch.CreateJob(ctx, "user-1", jobs.CreateJobInput{
		Title:         "Fix Kitchen Sink",
		CustomerName:  "John Smith",
		CustomerPhone: "555-123-4567",
		ServiceType:   "plumbing repair",
		ScheduledDate: "2026-09-15",
		EstimatedCost: 150,
		Priority:      "high",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if !result.IsNewCustomer || result.Customer == nil {
		t.Fatalf("expected a fresh customer, got %+v", result)
	}
	job := result.Job
	if job.Status != store.JobStatusQuoting || job.Priority != store.JobPriorityHigh {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.ScheduledDate == nil || job.ScheduledDate.Day() != 15 {
		t.Fatalf("scheduled date = %v, want Sep 15", job.ScheduledDate)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", result.Warnings)
	}

	customer, err := st.GetCustomer(ctx, "user-1", result.Customer.ID)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if customer.TotalJobs != 1 {
		t.Fatalf("customer total jobs = %d, want 1", customer.TotalJobs)
	}
}

func TestCreateJobUnparseableDateWarnsAndCreates(t *testing.T) {
	orch, _, ctx := newOrchestrator(t)

	result, err := orch.CreateJob(ctx, "user-1", jobs.CreateJobInput{
		Title:         "Fix Kitchen Sink",
		CustomerName:  "John Smith",
		ScheduledDate: "whenever mercury is in retrograde",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if result.Job.ScheduledDate != nil {
		t.Fatalf("scheduled date = %v, want nil", result.Job.ScheduledDate)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "could not be parsed") {
		t.Fatalf("warnings = %v, want a date warning", result.Warnings)
	}
}

func TestCreateJobBlacklistedCustomerWarns(t *testing.T) {
	orch, st, ctx := newOrchestrator(t)

	customer, err := st.CreateCustomer(ctx, &store.Customer{
		UserID: "user-1",
		Name:   "john smith",
		Phone:  "+15551234567",
		Status: store.CustomerStatusBlacklisted,
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	result, err := orch.CreateJob(ctx, "user-1", jobs.CreateJobInput{
		Title:         "Fix Kitchen Sink",
		CustomerName:  "John Smith",
		CustomerPhone: "555-123-4567",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if result.Customer.ID != customer.ID || result.IsNewCustomer {
		t.Fatalf("expected phone match against existing customer, got %+v", result)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "blacklisted") {
		t.Fatalf("warnings = %v, want a blacklist warning", result.Warnings)
	}
}

func TestCreateFromExtraction(t *testing.T) {
	orch, st, ctx := newOrchestrator(t)
	extraction := seedExtraction(t, st, "user-1", nil)

	result, err := orch.CreateFromExtraction(ctx, "user-1", extraction.ID)
	if err != nil {
		t.Fatalf("CreateFromExtraction: %v", err)
	}
	job := result.Job
	if job.Title != "Plumbing Repair - John Smith" {
		t.Fatalf("title = %q", job.Title)
	}
	if job.Priority != store.JobPriorityHigh || job.EstimatedCost != 150 {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.ScheduledDate == nil {
		t.Fatal("expected tomorrow to schedule the job")
	}
	if job.ExtractionID != extraction.ID {
		t.Fatalf("extraction id = %d, want %d", job.ExtractionID, extraction.ID)
	}

	linked, err := st.GetExtraction(ctx, "user-1", extraction.ID)
	if err != nil {
		t.Fatalf("GetExtraction: %v", err)
	}
	if linked.CustomerID != result.Customer.ID {
		t.Fatal("extraction not linked to the matched customer")
	}
}

func TestCreateFromExtractionRejectsNoAppointment(t *testing.T) {
	orch, st, ctx := newOrchestrator(t)
	extraction := seedExtraction(t, st, "user-1", func(e *store.Extraction) {
		e.HasAppointment = false
	})

	_, err := orch.CreateFromExtraction(ctx, "user-1", extraction.ID)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreateFromExtractionRejectsLowConfidence(t *testing.T) {
	orch, st, ctx := newOrchestrator(t)
	extraction := seedExtraction(t, st, "user-1", func(e *store.Extraction) {
		e.Confidence = 0.2
	})

	_, err := orch.CreateFromExtraction(ctx, "user-1", extraction.ID)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "confidence") {
		t.Fatalf("err = %v, want mention of confidence", err)
	}
}

func TestCreateFromExtractionUnparseableDateWarns(t *testing.T) {
	orch, st, ctx := newOrchestrator(t)
	extraction := seedExtraction(t, st, "user-1", func(e *store.Extraction) {
		e.PreferredDate = "after the holidays sometime maybe"
	})

	result, err := orch.CreateFromExtraction(ctx, "user-1", extraction.ID)
	if err != nil {
		t.Fatalf("CreateFromExtraction: %v", err)
	}
	if result.Job.ScheduledDate != nil {
		t.Fatal("expected unscheduled job")
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one date warning", result.Warnings)
	}
}

func TestCreateFromExtractionOwnerScoped(t *testing.T) {
	orch, st, ctx := newOrchestrator(t)
	extraction := seedExtraction(t, st, "user-1", nil)

	_, err := orch.CreateFromExtraction(ctx, "user-2", extraction.ID)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTransitionJobLifecycle(t *testing.T) {
	orch, _, ctx := newOrchestrator(t)
	created, err := orch.CreateJob(ctx, "user-1", jobs.CreateJobInput{
		Title:        "Fix Kitchen Sink",
		CustomerName: "John Smith",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	id := created.Job.ID

	for _, status := range []string{"confirmed", "in_progress", "completed"} {
		if _, err := orch.TransitionJob(ctx, "user-1", id, status); err != nil {
			t.Fatalf("TransitionJob(%s): %v", status, err)
		}
	}

	if _, err := orch.TransitionJob(ctx, "user-1", id, "quoting"); !errors.Is(err, store.ErrIllegalTransition) {
		t.Fatalf("err = %v, want ErrIllegalTransition", err)
	}
	if _, err := orch.TransitionJob(ctx, "user-1", id, "paused"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation for unknown status", err)
	}
	if _, err := orch.TransitionJob(ctx, "user-1", id+99, "confirmed"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteJob(t *testing.T) {
	orch, st, ctx := newOrchestrator(t)
	created, err := orch.CreateJob(ctx, "user-1", jobs.CreateJobInput{
		Title:        "Fix Kitchen Sink",
		CustomerName: "John Smith",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := orch.DeleteJob(ctx, "user-1", created.Job.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if err := orch.DeleteJob(ctx, "user-1", created.Job.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound on second delete", err)
	}

	customer, err := st.GetCustomer(ctx, "user-1", created.Customer.ID)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if customer.TotalJobs != 0 {
		t.Fatalf("customer total jobs = %d, want 0 after delete", customer.TotalJobs)
	}
}
