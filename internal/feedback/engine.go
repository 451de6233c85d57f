package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"calldesk/internal/logging"
	"calldesk/internal/notify"
	"calldesk/internal/services"
	"calldesk/internal/store"
)

// SubmitInput is one human correction against an extraction.
type SubmitInput struct {
	ExtractionID   int64
	Category       string
	Rating         int
	OriginalValue  string
	CorrectedValue string
	Comment        string
}

// OverrideInput replaces an extraction's fields wholesale with human truth.
type OverrideInput struct {
	HasAppointment  bool
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	ServiceType     string
	Description     string
	Urgency         string
	PreferredDate   string
	PreferredTime   string
	Flexibility     string
	Address         string
	QuotedPrice     float64
	BudgetMentioned bool
	PricingNote     string
}

// CategoryCount is one slice of the summary breakdown.
type CategoryCount struct {
	Category string
	Count    int
}

// Summary aggregates a user's feedback over a trailing window.
type Summary struct {
	TotalFeedbacks   int
	AverageRating    float64
	ImprovementRate  float64
	ConfidenceImpact float64
	Categories       []CategoryCount
}

// Engine applies feedback to extractions and reports aggregate trends.
type Engine struct {
	store    *store.Store
	notifier notify.Service
	logger   *slog.Logger
}

// NewEngine builds the feedback engine.
func NewEngine(st *store.Store, notifier notify.Service, logger *slog.Logger) *Engine {
	return &Engine{store: st, notifier: notifier, logger: logger}
}

// SubmitFeedback validates and records one correction, then nudges the
// extraction's confidence by the category-weighted rating delta. The record
// is append-only; resubmitting does not replace earlier feedback.
func (e *Engine) SubmitFeedback(ctx context.Context, userID string, input SubmitInput) (*store.FeedbackRecord, error) {
	var violations services.Violations
	if userID == "" {
		violations.Add("user id is required")
	}
	if input.ExtractionID <= 0 {
		violations.Add("extraction id is required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		violations.Add(fmt.Sprintf("rating must be between 1 and 5, got %d", input.Rating))
	}
	category := Category(input.Category)
	if !category.Known() {
		violations.Add(fmt.Sprintf("unknown feedback category %q", input.Category))
	}
	if err := violations.Err(); err != nil {
		return nil, err
	}

	extraction, err := e.store.GetExtraction(ctx, userID, input.ExtractionID)
	if err != nil {
		return nil, err
	}
	if extraction == nil {
		return nil, services.Wrap(services.ErrNotFound, "feedback", "submit", "extraction not found", nil)
	}

	delta := Adjustment(category, input.Rating)
	if err := e.store.AdjustExtractionConfidence(ctx, userID, extraction.ID, delta); err != nil {
		return nil, err
	}

	record, err := e.store.CreateFeedback(ctx, &store.FeedbackRecord{
		UserID:           userID,
		CallID:           extraction.CallID,
		ExtractionID:     extraction.ID,
		Category:         string(category),
		Rating:           input.Rating,
		OriginalValue:    input.OriginalValue,
		CorrectedValue:   input.CorrectedValue,
		Comment:          input.Comment,
		ModelImprovement: isModelImprovement(input),
		ConfidenceDelta:  delta,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("feedback recorded",
		slog.Int64("extraction_id", extraction.ID),
		slog.String("category", string(category)),
		slog.Int("rating", input.Rating),
		slog.Float64("confidence_delta", delta),
	)
	if err := e.notifier.NotifyFeedbackSubmitted(ctx, string(category), input.Rating); err != nil {
		e.logger.Warn("feedback notification failed", logging.Error(err))
	}
	return record, nil
}

// isModelImprovement flags feedback worth feeding back into prompt tuning:
// the human supplied a different value and rated the extraction poorly.
func isModelImprovement(input SubmitInput) bool {
	return input.CorrectedValue != "" &&
		input.CorrectedValue != input.OriginalValue &&
		input.Rating <= 2
}

// CreateManualOverride replaces an extraction with dispatcher-entered truth.
// Nothing is mutated when the override itself is unusable: an appointment
// with neither a customer name nor a service type cannot seed a job.
func (e *Engine) CreateManualOverride(ctx context.Context, userID string, extractionID int64, override OverrideInput) (*store.Extraction, error) {
	var violations services.Violations
	if userID == "" {
		violations.Add("user id is required")
	}
	if override.HasAppointment && override.CustomerName == "" && override.ServiceType == "" {
		violations.Add("an appointment override needs a customer name or a service type")
	}
	if err := violations.Err(); err != nil {
		return nil, err
	}

	extraction, err := e.store.GetExtraction(ctx, userID, extractionID)
	if err != nil {
		return nil, err
	}
	if extraction == nil {
		return nil, services.Wrap(services.ErrNotFound, "feedback", "override", "extraction not found", nil)
	}

	extraction.HasAppointment = override.HasAppointment
	extraction.CustomerName = override.CustomerName
	extraction.CustomerPhone = override.CustomerPhone
	extraction.CustomerEmail = override.CustomerEmail
	extraction.ServiceType = override.ServiceType
	extraction.Description = override.Description
	extraction.Urgency = override.Urgency
	extraction.PreferredDate = override.PreferredDate
	extraction.PreferredTime = override.PreferredTime
	extraction.Flexibility = override.Flexibility
	extraction.Address = override.Address
	extraction.QuotedPrice = override.QuotedPrice
	extraction.BudgetMentioned = override.BudgetMentioned
	extraction.PricingNote = override.PricingNote
	extraction.Reviewed = true
	extraction.ManualOverride = true
	if err := e.store.UpdateExtraction(ctx, extraction); err != nil {
		return nil, err
	}

	delta := Adjustment(CategoryManualOverride, 1)
	if err := e.store.AdjustExtractionConfidence(ctx, userID, extraction.ID, delta); err != nil {
		return nil, err
	}
	if _, err := e.store.CreateFeedback(ctx, &store.FeedbackRecord{
		UserID:           userID,
		CallID:           extraction.CallID,
		ExtractionID:     extraction.ID,
		Category:         string(CategoryManualOverride),
		Rating:           1,
		ModelImprovement: true,
		ConfidenceDelta:  delta,
	}); err != nil {
		return nil, err
	}

	e.logger.Info("manual override applied", slog.Int64("extraction_id", extraction.ID))
	return e.store.GetExtraction(ctx, userID, extraction.ID)
}

// GetFeedbackSummary aggregates a user's feedback over the trailing window.
// ConfidenceImpact compares the window's average extraction confidence to a
// perfect 1.0, so it is 0 when every extraction was fully trusted and grows
// more negative as confidence drops.
func (e *Engine) GetFeedbackSummary(ctx context.Context, userID string, days int) (*Summary, error) {
	if userID == "" {
		return nil, services.Wrap(services.ErrValidation, "feedback", "summary", "user id is required", nil)
	}
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	records, err := e.store.ListFeedbackSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	summary := &Summary{TotalFeedbacks: len(records)}
	if len(records) > 0 {
		ratingSum := 0
		improvements := 0
		counts := make(map[string]int)
		for _, record := range records {
			ratingSum += record.Rating
			if record.ModelImprovement {
				improvements++
			}
			counts[record.Category]++
		}
		summary.AverageRating = float64(ratingSum) / float64(len(records))
		summary.ImprovementRate = float64(improvements) / float64(len(records))
		for category, count := range counts {
			summary.Categories = append(summary.Categories, CategoryCount{Category: category, Count: count})
		}
		sort.Slice(summary.Categories, func(i, j int) bool {
			if summary.Categories[i].Count != summary.Categories[j].Count {
				return summary.Categories[i].Count > summary.Categories[j].Count
			}
			return summary.Categories[i].Category < summary.Categories[j].Category
		})
	}

	confidences, err := e.store.ConfidencesSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	if len(confidences) > 0 {
		total := 0.0
		for _, c := range confidences {
			total += c
		}
		summary.ConfidenceImpact = total/float64(len(confidences)) - 1.0
	}
	return summary, nil
}
