package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"calldesk/internal/store"
	"calldesk/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	call, err := st.NewCall(ctx, "user-1", "/audio/call1.wav")
	if err != nil {
		t.Fatalf("NewCall: %v", err)
	}
	if call.ID == 0 {
		t.Fatal("expected call ID to be assigned")
	}
	if call.Status != store.CallStatusPending {
		t.Fatalf("status = %q, want pending", call.Status)
	}

	fetched, err := st.GetCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if fetched == nil || fetched.AudioPath != "/audio/call1.wav" {
		t.Fatalf("unexpected fetched call: %#v", fetched)
	}
}

func TestNewTranscribedCallSkipsTranscription(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	call := testsupport.NewTranscribedCall(t, st, "user-1", "hello, I need my sink fixed")
	if call.Status != store.CallStatusTranscribed {
		t.Fatalf("status = %q, want transcribed", call.Status)
	}
	if !call.HasTranscript() {
		t.Fatal("expected transcript to be present")
	}
}

func TestGetUserCallOwnerScoping(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	call := testsupport.NewTranscribedCall(t, st, "user-1", "transcript")

	other, err := st.GetUserCall(ctx, "user-2", call.ID)
	if err != nil {
		t.Fatalf("GetUserCall: %v", err)
	}
	if other != nil {
		t.Fatal("owner mismatch must look like not-found")
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	call := testsupport.NewTranscribedCall(t, st, "user-1", "transcript")
	call.Status = store.CallStatusExtracting
	stale := time.Now().UTC().Add(-10 * time.Minute)
	call.LastHeartbeat = &stale
	if err := st.UpdateCall(ctx, call); err != nil {
		t.Fatalf("UpdateCall: %v", err)
	}

	reclaimed, err := st.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("reclaimed = %d, want 1", reclaimed)
	}

	fetched, err := st.GetCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if fetched.Status != store.CallStatusPending {
		t.Fatalf("status = %q, want pending", fetched.Status)
	}
	if fetched.LastHeartbeat != nil {
		t.Fatal("expected heartbeat to be cleared")
	}
}

func TestRetryFailedCalls(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	call := testsupport.NewTranscribedCall(t, st, "user-1", "transcript")
	call.SetFailed("extraction exploded")
	if err := st.UpdateCall(ctx, call); err != nil {
		t.Fatalf("UpdateCall: %v", err)
	}

	retried, err := st.RetryFailedCalls(ctx)
	if err != nil {
		t.Fatalf("RetryFailedCalls: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried = %d, want 1", retried)
	}
	fetched, _ := st.GetCall(ctx, call.ID)
	if fetched.Status != store.CallStatusPending || fetched.ErrorMessage != "" {
		t.Fatalf("unexpected call after retry: %#v", fetched)
	}
}

func TestHealthSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := st.NewCall(ctx, "user-1", fmt.Sprintf("/audio/%d.wav", i)); err != nil {
			t.Fatalf("NewCall: %v", err)
		}
	}
	call := testsupport.NewTranscribedCall(t, st, "user-1", "transcript")
	call.SetFailed("boom")
	if err := st.UpdateCall(ctx, call); err != nil {
		t.Fatalf("UpdateCall: %v", err)
	}

	health, err := st.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 4 || health.Pending != 3 || health.Failed != 1 {
		t.Fatalf("unexpected health: %#v", health)
	}
}

func TestCustomerUniquePhoneRace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	const workers = 8
	var wg sync.WaitGroup
	created := make([]bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := st.CreateCustomer(ctx, &store.Customer{
				UserID: "user-1",
				Name:   "A",
				Phone:  "+15557777777",
			})
			created[idx] = err == nil
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range created {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}

	customers, err := st.ListCustomers(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListCustomers: %v", err)
	}
	if len(customers) != 1 {
		t.Fatalf("customer rows = %d, want 1", len(customers))
	}
}

func TestCustomerUniqueEmailArbiter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := st.CreateCustomer(ctx, &store.Customer{
		UserID: "user-1",
		Name:   "Jane Doe",
		Email:  "jane@example.com",
	}); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	_, err := st.CreateCustomer(ctx, &store.Customer{
		UserID: "user-1",
		Name:   "Jane D",
		Email:  "jane@example.com",
	})
	if !errors.Is(err, store.ErrDuplicateCustomer) {
		t.Fatalf("err = %v, want ErrDuplicateCustomer for duplicate email", err)
	}

	// Same email under another user is a different identity.
	if _, err := st.CreateCustomer(ctx, &store.Customer{
		UserID: "user-2",
		Email:  "jane@example.com",
	}); err != nil {
		t.Fatalf("CreateCustomer other user: %v", err)
	}
}

func TestSoftDeleteCustomer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	customer := testsupport.NewCustomer(t, st, "user-1", "John Smith", "+15551234567", "john@example.com")

	ok, err := st.SoftDeleteCustomer(ctx, "user-1", customer.ID)
	if err != nil {
		t.Fatalf("SoftDeleteCustomer: %v", err)
	}
	if !ok {
		t.Fatal("expected soft delete to affect a row")
	}

	fetched, err := st.GetCustomer(ctx, "user-1", customer.ID)
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if fetched == nil {
		t.Fatal("soft-deleted customer must remain fetchable")
	}
	if fetched.Status != store.CustomerStatusFormer {
		t.Fatalf("status = %q, want former", fetched.Status)
	}
	if fetched.Phone != "" || fetched.Email != "" {
		t.Fatalf("contact fields not cleared: %#v", fetched)
	}
}

func TestJobTransitionsManageCompletedAt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	customer := testsupport.NewCustomer(t, st, "user-1", "Jane Doe", "+15550001111", "")
	job, err := st.CreateJob(ctx, &store.Job{
		UserID:     "user-1",
		CustomerID: customer.ID,
		Title:      "Fix Sink",
		ActualCost: 250,
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != store.JobStatusQuoting {
		t.Fatalf("status = %q, want quoting", job.Status)
	}

	for _, next := range []store.JobStatus{
		store.JobStatusConfirmed,
		store.JobStatusInProgress,
		store.JobStatusCompleted,
	} {
		job, err = st.TransitionJobStatus(ctx, "user-1", job.ID, next)
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if job.CompletedAt == nil {
		t.Fatal("completed job must carry completedAt")
	}

	job, err = st.TransitionJobStatus(ctx, "user-1", job.ID, store.JobStatusInProgress)
	if err != nil {
		t.Fatalf("transition back to in_progress: %v", err)
	}
	if job.CompletedAt != nil {
		t.Fatal("leaving completed must clear completedAt")
	}
}

func TestJobTransitionRejectsIllegalEdge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	customer := testsupport.NewCustomer(t, st, "user-1", "Jane Doe", "+15550002222", "")
	job, err := st.CreateJob(ctx, &store.Job{
		UserID:     "user-1",
		CustomerID: customer.ID,
		Title:      "Inspect Roof",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if _, err := st.TransitionJobStatus(ctx, "user-1", job.ID, store.JobStatusCompleted); err == nil {
		t.Fatal("expected quoting -> completed to be rejected")
	}
}

func TestDeleteJobDecrementsCustomerCounter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	customer := testsupport.NewCustomer(t, st, "user-1", "Jane Doe", "+15550003333", "")
	job, err := st.CreateJob(ctx, &store.Job{
		UserID:     "user-1",
		CustomerID: customer.ID,
		Title:      "Replace Water Heater",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	after, _ := st.GetCustomer(ctx, "user-1", customer.ID)
	if after.TotalJobs != 1 {
		t.Fatalf("total jobs = %d, want 1 after create", after.TotalJobs)
	}

	ok, err := st.DeleteJob(ctx, "user-1", job.ID)
	if err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if !ok {
		t.Fatal("expected delete to succeed")
	}

	after, _ = st.GetCustomer(ctx, "user-1", customer.ID)
	if after.TotalJobs != 0 {
		t.Fatalf("total jobs = %d, want 0 after delete", after.TotalJobs)
	}
}

func TestAdjustExtractionConfidenceClamps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	call := testsupport.NewTranscribedCall(t, st, "user-1", "transcript")
	extraction, err := st.CreateExtraction(ctx, &store.Extraction{
		CallID:         call.ID,
		UserID:         "user-1",
		HasAppointment: true,
		Confidence:     0.95,
	})
	if err != nil {
		t.Fatalf("CreateExtraction: %v", err)
	}

	if err := st.AdjustExtractionConfidence(ctx, "user-1", extraction.ID, 0.15); err != nil {
		t.Fatalf("AdjustExtractionConfidence: %v", err)
	}
	fetched, _ := st.GetExtraction(ctx, "user-1", extraction.ID)
	if fetched.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want clamped to 1.0", fetched.Confidence)
	}

	if err := st.AdjustExtractionConfidence(ctx, "user-1", extraction.ID, -2.0); err != nil {
		t.Fatalf("AdjustExtractionConfidence: %v", err)
	}
	fetched, _ = st.GetExtraction(ctx, "user-1", extraction.ID)
	if fetched.Confidence != 0.0 {
		t.Fatalf("confidence = %v, want clamped to 0.0", fetched.Confidence)
	}
}

func TestRefreshCustomerAggregates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	customer := testsupport.NewCustomer(t, st, "user-1", "Jane Doe", "+15550004444", "")
	for i, cost := range []float64{100, 300} {
		job, err := st.CreateJob(ctx, &store.Job{
			UserID:     "user-1",
			CustomerID: customer.ID,
			Title:      fmt.Sprintf("Job %d", i),
			ActualCost: cost,
		})
		if err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
		for _, next := range []store.JobStatus{
			store.JobStatusConfirmed, store.JobStatusInProgress, store.JobStatusCompleted,
		} {
			if _, err := st.TransitionJobStatus(ctx, "user-1", job.ID, next); err != nil {
				t.Fatalf("transition: %v", err)
			}
		}
	}

	if _, err := st.RefreshCustomerAggregates(ctx); err != nil {
		t.Fatalf("RefreshCustomerAggregates: %v", err)
	}

	after, _ := st.GetCustomer(ctx, "user-1", customer.ID)
	if after.TotalJobs != 2 {
		t.Fatalf("total jobs = %d, want 2", after.TotalJobs)
	}
	if after.TotalSpent != 400 {
		t.Fatalf("total spent = %v, want 400", after.TotalSpent)
	}
	if after.AverageJobValue != 200 {
		t.Fatalf("average job value = %v, want 200", after.AverageJobValue)
	}
}

func TestFeedbackAppendOnlyRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	call := testsupport.NewTranscribedCall(t, st, "user-1", "transcript")
	extraction, err := st.CreateExtraction(ctx, &store.Extraction{
		CallID: call.ID, UserID: "user-1", Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("CreateExtraction: %v", err)
	}

	record, err := st.CreateFeedback(ctx, &store.FeedbackRecord{
		UserID:          "user-1",
		CallID:          call.ID,
		ExtractionID:    extraction.ID,
		Category:        "SERVICE_TYPE_CORRECTION",
		Rating:          2,
		OriginalValue:   "plumbing",
		CorrectedValue:  "electrical",
		ConfidenceDelta: -0.06,
	})
	if err != nil {
		t.Fatalf("CreateFeedback: %v", err)
	}
	if record.ID == 0 || record.CreatedAt.IsZero() {
		t.Fatalf("unexpected record: %#v", record)
	}

	records, err := st.ListFeedbackForExtraction(ctx, "user-1", extraction.ID)
	if err != nil {
		t.Fatalf("ListFeedbackForExtraction: %v", err)
	}
	if len(records) != 1 || records[0].CorrectedValue != "electrical" {
		t.Fatalf("unexpected records: %#v", records)
	}
}
