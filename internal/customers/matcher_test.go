package customers_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"calldesk/internal/customers"
	"calldesk/internal/testsupport"
)

func newMatcher(t *testing.T) (*customers.Matcher, context.Context) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return customers.NewMatcher(cfg, st, slog.New(slog.NewTextHandler(io.Discard, nil))), context.Background()
}

func TestFindOrCreateCreatesThenMatchesByPhone(t *testing.T) {
	matcher, ctx := newMatcher(t)

	first, err := matcher.FindOrCreate(ctx, "user-1", customers.Contact{
		Name:  "John Smith",
		Phone: "555-123-4567",
		Email: "John@Example.com",
	})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if !first.IsNewCustomer || first.Customer == nil {
		t.Fatalf("expected new customer, got %#v", first)
	}
	if first.Customer.Phone != "+15551234567" {
		t.Fatalf("stored phone = %q, want normalized", first.Customer.Phone)
	}
	if first.Customer.Email != "john@example.com" {
		t.Fatalf("stored email = %q, want lowercased", first.Customer.Email)
	}

	second, err := matcher.FindOrCreate(ctx, "user-1", customers.Contact{
		Phone: "(555) 123-4567",
	})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if second.IsNewCustomer {
		t.Fatal("expected phone match, not creation")
	}
	if second.MatchedBy != customers.MatchedByPhone || second.Confidence != 100 {
		t.Fatalf("unexpected match: %#v", second)
	}
	if second.Customer.ID != first.Customer.ID {
		t.Fatal("phone match resolved a different customer")
	}
}

func TestFindOrCreateMatchesByEmail(t *testing.T) {
	matcher, ctx := newMatcher(t)

	first, err := matcher.FindOrCreate(ctx, "user-1", customers.Contact{
		Name:  "Jane Doe",
		Email: "jane@example.com",
	})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}

	second, err := matcher.FindOrCreate(ctx, "user-1", customers.Contact{
		Email: "JANE@Example.COM",
	})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if second.MatchedBy != customers.MatchedByEmail || second.Confidence != 95 {
		t.Fatalf("unexpected match: %#v", second)
	}
	if second.Customer.ID != first.Customer.ID {
		t.Fatal("email match resolved a different customer")
	}
}

func TestFindOrCreateMatchesByNameSimilarity(t *testing.T) {
	matcher, ctx := newMatcher(t)

	first, err := matcher.FindOrCreate(ctx, "user-1", customers.Contact{Name: "John Smith"})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}

	second, err := matcher.FindOrCreate(ctx, "user-1", customers.Contact{Name: "Jon Smith"})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if second.MatchedBy != customers.MatchedByNameSimilarity {
		t.Fatalf("matched by %q, want name_similarity", second.MatchedBy)
	}
	if second.Confidence <= 80 {
		t.Fatalf("confidence = %v, want > 80", second.Confidence)
	}
	if second.Customer.ID != first.Customer.ID {
		t.Fatal("name match resolved a different customer")
	}

	third, err := matcher.FindOrCreate(ctx, "user-1", customers.Contact{Name: "Robert Johnson"})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if !third.IsNewCustomer {
		t.Fatal("dissimilar name should create a new customer")
	}
}

func TestFindOrCreateEmptyContactIsNoOp(t *testing.T) {
	matcher, ctx := newMatcher(t)

	result, err := matcher.FindOrCreate(ctx, "user-1", customers.Contact{Name: "  ", Phone: "", Email: " "})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if result.Customer != nil || result.IsNewCustomer {
		t.Fatalf("expected nil-customer no-op, got %#v", result)
	}
	if result.MatchedBy != customers.MatchedByNone {
		t.Fatalf("matched by %q, want none", result.MatchedBy)
	}
}

func TestFindOrCreateScopedPerUser(t *testing.T) {
	matcher, ctx := newMatcher(t)

	if _, err := matcher.FindOrCreate(ctx, "user-1", customers.Contact{Phone: "+15551230000"}); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	result, err := matcher.FindOrCreate(ctx, "user-2", customers.Contact{Phone: "+15551230000"})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if !result.IsNewCustomer {
		t.Fatal("same phone under a different user must create a new customer")
	}
}

func TestFindOrCreateConcurrentConverges(t *testing.T) {
	matcher, ctx := newMatcher(t)

	const workers = 6
	results := make([]*customers.MatchResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = matcher.FindOrCreate(ctx, "user-1", customers.Contact{
				Name:  "A",
				Phone: "+15557777777",
				Email: "a@x.com",
			})
		}(i)
	}
	wg.Wait()

	var id int64
	newCount := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if results[i].Customer == nil {
			t.Fatalf("worker %d resolved no customer", i)
		}
		if id == 0 {
			id = results[i].Customer.ID
		} else if results[i].Customer.ID != id {
			t.Fatalf("worker %d resolved customer %d, others resolved %d", i, results[i].Customer.ID, id)
		}
		if results[i].IsNewCustomer {
			newCount++
		}
	}
	if newCount > 1 {
		t.Fatalf("isNewCustomer true for %d workers, want at most 1", newCount)
	}
}

func TestFindOrCreateConcurrentEmailOnlyConverges(t *testing.T) {
	matcher, ctx := newMatcher(t)

	const workers = 6
	results := make([]*customers.MatchResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = matcher.FindOrCreate(ctx, "user-1", customers.Contact{
				Email: "race@example.com",
			})
		}(i)
	}
	wg.Wait()

	var id int64
	newCount := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if results[i].Customer == nil {
			t.Fatalf("worker %d resolved no customer", i)
		}
		if id == 0 {
			id = results[i].Customer.ID
		} else if results[i].Customer.ID != id {
			t.Fatalf("worker %d resolved customer %d, others resolved %d", i, results[i].Customer.ID, id)
		}
		if results[i].IsNewCustomer {
			newCount++
		}
	}
	if newCount > 1 {
		t.Fatalf("isNewCustomer true for %d workers, want at most 1", newCount)
	}
}
