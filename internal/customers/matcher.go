package customers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"calldesk/internal/config"
	"calldesk/internal/logging"
	"calldesk/internal/namematch"
	"calldesk/internal/phone"
	"calldesk/internal/services"
	"calldesk/internal/store"
)

// MatchMethod identifies how a caller was resolved to a customer.
type MatchMethod string

const (
	MatchedByNone           MatchMethod = "none"
	MatchedByPhone          MatchMethod = "phone"
	MatchedByEmail          MatchMethod = "email"
	MatchedByNameSimilarity MatchMethod = "name_similarity"
)

// Contact carries the caller fragments extracted from a call.
type Contact struct {
	Name  string
	Phone string
	Email string
}

func (c Contact) empty() bool {
	return strings.TrimSpace(c.Name) == "" &&
		strings.TrimSpace(c.Phone) == "" &&
		strings.TrimSpace(c.Email) == ""
}

// MatchResult reports the outcome of a find-or-create. Customer is nil only
// when the contact was entirely empty; that case is a deliberate no-op, not
// an error, so junk records are never created from blank extractions.
type MatchResult struct {
	Customer      *store.Customer
	IsNewCustomer bool
	MatchedBy     MatchMethod
	Confidence    float64
}

// Matcher deduplicates callers against a user's customer base.
type Matcher struct {
	store         *store.Store
	nameThreshold float64
	logger        *slog.Logger
}

// NewMatcher constructs a Matcher using the configured name threshold.
func NewMatcher(cfg *config.Config, st *store.Store, logger *slog.Logger) *Matcher {
	return &Matcher{
		store:         st,
		nameThreshold: cfg.Matching.NameThreshold,
		logger:        logger,
	}
}

// FindOrCreate resolves contact fragments to exactly one customer.
//
// Precedence: phone match (confidence 100), email match (95), name
// similarity above the threshold (the score itself), then creation. An
// entirely blank contact short-circuits to a nil-customer no-op result.
func (m *Matcher) FindOrCreate(ctx context.Context, userID string, contact Contact) (*MatchResult, error) {
	if userID == "" {
		return nil, services.Wrap(services.ErrValidation, "match", "find-or-create", "user id is required", nil)
	}

	normalizedPhone := ""
	if raw := strings.TrimSpace(contact.Phone); raw != "" {
		normalizedPhone = phone.Normalize(raw)
	}
	email := strings.ToLower(strings.TrimSpace(contact.Email))
	name := strings.TrimSpace(contact.Name)

	if normalizedPhone != "" {
		existing, err := m.store.FindCustomerByPhone(ctx, userID, normalizedPhone)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &MatchResult{Customer: existing, MatchedBy: MatchedByPhone, Confidence: 100}, nil
		}
	}

	if email != "" {
		existing, err := m.store.FindCustomerByEmail(ctx, userID, email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &MatchResult{Customer: existing, MatchedBy: MatchedByEmail, Confidence: 95}, nil
		}
	}

	if name != "" {
		best, score, err := m.bestNameMatch(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		if best != nil && score > m.nameThreshold {
			return &MatchResult{Customer: best, MatchedBy: MatchedByNameSimilarity, Confidence: score}, nil
		}
	}

	if contact.empty() {
		return &MatchResult{MatchedBy: MatchedByNone}, nil
	}

	created, err := m.store.CreateCustomer(ctx, &store.Customer{
		UserID: userID,
		Name:   name,
		Phone:  normalizedPhone,
		Email:  email,
	})
	if err == nil {
		m.logger.Info("customer created",
			logging.CustomerID(created.ID),
			slog.String(logging.KeyUserID, userID),
		)
		return &MatchResult{Customer: created, IsNewCustomer: true, MatchedBy: MatchedByNone, Confidence: 100}, nil
	}

	if errors.Is(err, store.ErrDuplicateCustomer) {
		// Lost a unique-index race; the winner is the match.
		method := MatchedByPhone
		var (
			winner   *store.Customer
			fetchErr error
		)
		if normalizedPhone != "" {
			winner, fetchErr = m.store.FindCustomerByPhone(ctx, userID, normalizedPhone)
			if fetchErr != nil {
				return nil, fetchErr
			}
		}
		if winner == nil && email != "" {
			winner, fetchErr = m.store.FindCustomerByEmail(ctx, userID, email)
			if fetchErr != nil {
				return nil, fetchErr
			}
			method = MatchedByEmail
		}
		if winner == nil {
			return nil, services.Wrap(services.ErrConflict, "match", "find-or-create",
				"duplicate customer not found on re-fetch", err)
		}
		confidence := 100.0
		if method == MatchedByEmail {
			confidence = 95
		}
		m.logger.Debug("customer create race resolved",
			logging.CustomerID(winner.ID),
			slog.String(logging.KeyUserID, userID),
		)
		return &MatchResult{Customer: winner, MatchedBy: method, Confidence: confidence}, nil
	}
	return nil, err
}

func (m *Matcher) bestNameMatch(ctx context.Context, userID, name string) (*store.Customer, float64, error) {
	existing, err := m.store.ListCustomers(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	var (
		best  *store.Customer
		score float64
	)
	for _, candidate := range existing {
		if candidate.Status == store.CustomerStatusFormer || candidate.Name == "" {
			continue
		}
		if s := namematch.Similarity(name, candidate.Name); s > score {
			best = candidate
			score = s
		}
	}
	return best, score, nil
}
