package testsupport

import (
	"context"
	"testing"

	"calldesk/internal/config"
	"calldesk/internal/store"
)

// MustOpenStore opens a store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewTranscribedCall inserts a call carrying a transcript for tests.
func NewTranscribedCall(t testing.TB, st *store.Store, userID, transcript string) *store.Call {
	t.Helper()

	call, err := st.NewTranscribedCall(context.Background(), userID, transcript, 0.92, 45, "en")
	if err != nil {
		t.Fatalf("store.NewTranscribedCall: %v", err)
	}
	return call
}

// NewCustomer inserts a customer for tests.
func NewCustomer(t testing.TB, st *store.Store, userID, name, phone, email string) *store.Customer {
	t.Helper()

	customer, err := st.CreateCustomer(context.Background(), &store.Customer{
		UserID: userID,
		Name:   name,
		Phone:  phone,
		Email:  email,
	})
	if err != nil {
		t.Fatalf("store.CreateCustomer: %v", err)
	}
	return customer
}
