package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"calldesk/internal/config"
	"calldesk/internal/customers"
	"calldesk/internal/dateparse"
	"calldesk/internal/logging"
	"calldesk/internal/notify"
	"calldesk/internal/phone"
	"calldesk/internal/services"
	"calldesk/internal/store"
)

// CreateJobInput is the manual job-entry surface.
type CreateJobInput struct {
	Title         string
	Description   string
	ServiceType   string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Address       string
	ScheduledDate string
	EstimatedCost float64
	Priority      string
}

// CreateResult reports a job creation, including anything that degraded
// gracefully along the way.
type CreateResult struct {
	Job           *store.Job
	Customer      *store.Customer
	IsNewCustomer bool
	Warnings      []string
}

// Orchestrator owns the job lifecycle: creation from either entry path,
// status transitions, and deletion.
type Orchestrator struct {
	store         *store.Store
	matcher       *customers.Matcher
	notifier      notify.Service
	minConfidence float64
	logger        *slog.Logger
	now           func() time.Time
}

// NewOrchestrator builds the orchestrator using the configured confidence
// floor for automatic job creation.
func NewOrchestrator(cfg *config.Config, st *store.Store, matcher *customers.Matcher, notifier notify.Service, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:         st,
		matcher:       matcher,
		notifier:      notifier,
		minConfidence: cfg.Extraction.MinJobConfidence,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateJob creates a work order from manual input. Validation reports every
// violated constraint in one pass rather than stopping at the first.
func (o *Orchestrator) CreateJob(ctx context.Context, userID string, input CreateJobInput) (*CreateResult, error) {
	var violations services.Violations
	if userID == "" {
		violations.Add("user id is required")
	}
	title := strings.TrimSpace(input.Title)
	if len(title) < 3 {
		violations.Add("title must be at least 3 characters")
	}
	name := strings.TrimSpace(input.CustomerName)
	if len(name) <= 2 {
		violations.Add("customer name must be longer than 2 characters")
	}
	if raw := strings.TrimSpace(input.CustomerPhone); raw != "" && !phone.Plausible(phone.Normalize(raw)) {
		violations.Add(fmt.Sprintf("customer phone %q is not a valid phone number", raw))
	}
	if input.EstimatedCost < 0 {
		violations.Add("estimated cost cannot be negative")
	}
	priority := store.JobPriorityNormal
	if raw := strings.TrimSpace(input.Priority); raw != "" {
		parsed, ok := parsePriority(raw)
		if !ok {
			violations.Add(fmt.Sprintf("unknown priority %q", raw))
		} else {
			priority = parsed
		}
	}
	if err := violations.Err(); err != nil {
		return nil, err
	}

	match, err := o.matcher.FindOrCreate(ctx, userID, customers.Contact{
		Name:  name,
		Phone: input.CustomerPhone,
		Email: input.CustomerEmail,
	})
	if err != nil {
		return nil, err
	}

	result := &CreateResult{Customer: match.Customer, IsNewCustomer: match.IsNewCustomer}
	if match.Customer.Status == store.CustomerStatusBlacklisted {
		result.Warnings = append(result.Warnings, fmt.Sprintf("customer %d is blacklisted", match.Customer.ID))
	}
	var scheduled *time.Time
	if raw := strings.TrimSpace(input.ScheduledDate); raw != "" {
		if parsed, ok := dateparse.Parse(raw, o.now()); ok {
			scheduled = &parsed
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf("scheduled date %q could not be parsed; job left unscheduled", raw))
		}
	}

	job, err := o.store.CreateJob(ctx, &store.Job{
		UserID:        userID,
		CustomerID:    match.Customer.ID,
		Title:         title,
		ServiceType:   strings.TrimSpace(input.ServiceType),
		Description:   strings.TrimSpace(input.Description),
		Priority:      priority,
		EstimatedCost: input.EstimatedCost,
		ScheduledDate: scheduled,
		Address:       strings.TrimSpace(input.Address),
	})
	if err != nil {
		return nil, err
	}
	result.Job = job

	o.logger.Info("job created",
		logging.JobID(job.ID),
		logging.CustomerID(match.Customer.ID),
		slog.String("priority", string(job.Priority)),
	)
	if err := o.notifier.NotifyJobCreated(ctx, job.ID, job.Title); err != nil {
		o.logger.Warn("job notification failed", logging.Error(err))
	}
	return result, nil
}

// CreateFromExtraction promotes an extraction into a work order. Extractions
// without an appointment or below the confidence floor are rejected; an
// unparseable preferred date degrades to a warning and an unscheduled job.
func (o *Orchestrator) CreateFromExtraction(ctx context.Context, userID string, extractionID int64) (*CreateResult, error) {
	if userID == "" {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create-from-extraction", "user id is required", nil)
	}

	extraction, err := o.store.GetExtraction(ctx, userID, extractionID)
	if err != nil {
		return nil, err
	}
	if extraction == nil {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "create-from-extraction", "extraction not found", nil)
	}
	if !extraction.HasAppointment {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create-from-extraction",
			"extraction has no appointment to schedule", nil)
	}
	if extraction.Confidence < o.minConfidence {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create-from-extraction",
			fmt.Sprintf("extraction confidence %.2f below minimum %.2f", extraction.Confidence, o.minConfidence), nil)
	}

	match, err := o.matcher.FindOrCreate(ctx, userID, customers.Contact{
		Name:  extraction.CustomerName,
		Phone: extraction.CustomerPhone,
		Email: extraction.CustomerEmail,
	})
	if err != nil {
		return nil, err
	}
	if match.Customer == nil {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create-from-extraction",
			"extraction carries no contact information", nil)
	}
	if extraction.CustomerID != match.Customer.ID {
		extraction.CustomerID = match.Customer.ID
		if err := o.store.UpdateExtraction(ctx, extraction); err != nil {
			return nil, err
		}
	}

	result := &CreateResult{Customer: match.Customer, IsNewCustomer: match.IsNewCustomer}
	if match.Customer.Status == store.CustomerStatusBlacklisted {
		result.Warnings = append(result.Warnings, fmt.Sprintf("customer %d is blacklisted", match.Customer.ID))
	}
	var scheduled *time.Time
	if extraction.PreferredDate != "" {
		phrase := strings.TrimSpace(extraction.PreferredDate + " " + extraction.PreferredTime)
		parsed, ok := dateparse.Parse(phrase, o.now())
		if !ok {
			parsed, ok = dateparse.Parse(extraction.PreferredDate, o.now())
		}
		if ok {
			scheduled = &parsed
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf("preferred date %q could not be parsed; job left unscheduled", extraction.PreferredDate))
		}
	}

	job, err := o.store.CreateJob(ctx, &store.Job{
		UserID:        userID,
		CustomerID:    match.Customer.ID,
		ExtractionID:  extraction.ID,
		Title:         generateTitle(extraction.ServiceType, extraction.CustomerName),
		ServiceType:   extraction.ServiceType,
		Description:   extraction.Description,
		Priority:      priorityForUrgency(extraction.Urgency),
		EstimatedCost: extraction.QuotedPrice,
		ScheduledDate: scheduled,
		Address:       extraction.Address,
	})
	if err != nil {
		return nil, err
	}
	result.Job = job

	o.logger.Info("job created from extraction",
		logging.JobID(job.ID),
		slog.Int64("extraction_id", extraction.ID),
		logging.CustomerID(match.Customer.ID),
		slog.Float64(logging.KeyConfidence, extraction.Confidence),
	)
	if err := o.notifier.NotifyJobCreated(ctx, job.ID, job.Title); err != nil {
		o.logger.Warn("job notification failed", logging.Error(err))
	}
	return result, nil
}

// TransitionJob moves a job through the state machine.
func (o *Orchestrator) TransitionJob(ctx context.Context, userID string, jobID int64, toStatus string) (*store.Job, error) {
	to, ok := store.ParseJobStatus(toStatus)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "jobs", "transition",
			fmt.Sprintf("unknown job status %q", toStatus), nil)
	}
	job, err := o.store.TransitionJobStatus(ctx, userID, jobID, to)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "transition", "job not found", nil)
	}
	o.logger.Info("job transitioned", logging.JobID(job.ID), slog.String("status", string(job.Status)))
	return job, nil
}

// DeleteJob hard-deletes a job; the store reverses the customer's counter.
func (o *Orchestrator) DeleteJob(ctx context.Context, userID string, jobID int64) error {
	deleted, err := o.store.DeleteJob(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if !deleted {
		return services.Wrap(services.ErrNotFound, "jobs", "delete", "job not found", nil)
	}
	o.logger.Info("job deleted", logging.JobID(jobID))
	return nil
}

func parsePriority(value string) (store.JobPriority, bool) {
	switch store.JobPriority(strings.ToLower(strings.TrimSpace(value))) {
	case store.JobPriorityLow:
		return store.JobPriorityLow, true
	case store.JobPriorityNormal:
		return store.JobPriorityNormal, true
	case store.JobPriorityHigh:
		return store.JobPriorityHigh, true
	case store.JobPriorityUrgent:
		return store.JobPriorityUrgent, true
	default:
		return "", false
	}
}

// priorityForUrgency maps spoken urgency to work-order priority. Anything
// unrecognized lands on normal.
func priorityForUrgency(urgency string) store.JobPriority {
	switch strings.ToLower(strings.TrimSpace(urgency)) {
	case "emergency", "urgent":
		return store.JobPriorityUrgent
	case "high":
		return store.JobPriorityHigh
	case "low":
		return store.JobPriorityLow
	default:
		return store.JobPriorityNormal
	}
}
