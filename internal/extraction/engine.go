package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"calldesk/internal/config"
	"calldesk/internal/dateparse"
	"calldesk/internal/logging"
	"calldesk/internal/phone"
	"calldesk/internal/services"
)

// Result reports one extraction attempt. Data is nil only when Success is
// false; Error then carries the caller-safe failure description.
type Result struct {
	Success          bool
	Data             *Appointment
	Error            string
	ProcessingTimeMs int64
}

// Engine extracts appointment data from transcripts and applies the
// deterministic validation layer on top of the collaborator's output.
type Engine struct {
	collab  Collaborator
	timeout time.Duration
	logger  *slog.Logger
}

// NewEngine wires the configured model collaborator. The API key must be set;
// otherwise every call would burn a queue slot just to fail.
func NewEngine(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Extraction.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "extract", "init",
			"extraction API key is not configured", nil)
	}
	return NewEngineWith(newAnthropicCollaborator(cfg), cfg, logger), nil
}

// NewEngineWith builds an engine around an explicit collaborator.
func NewEngineWith(collab Collaborator, cfg *config.Config, logger *slog.Logger) *Engine {
	timeout := time.Duration(cfg.Extraction.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Engine{collab: collab, timeout: timeout, logger: logger}
}

// Extract analyzes one transcript. A transcript with no appointment in it is
// a successful extraction, not a failure; collaborator and schema problems
// return both a failed Result and the classified error.
func (e *Engine) Extract(ctx context.Context, transcript string) (*Result, error) {
	start := time.Now()
	if strings.TrimSpace(transcript) == "" {
		err := services.Wrap(services.ErrValidation, "extract", "extract", "transcript is empty", nil)
		return failedResult(err, start), err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	response, err := e.collab.Complete(ctx, systemPrompt, transcript)
	if err != nil {
		if ctx.Err() != nil {
			err = services.Wrap(services.ErrTimeout, "extract", "complete", "extraction timed out", err)
		}
		return failedResult(err, start), err
	}

	payload, err := parsePayload(response)
	if err != nil {
		return failedResult(err, start), err
	}

	data := normalize(payload)
	data.Issues = detectIssues(data)

	e.logger.Debug("extraction completed",
		slog.Bool("has_appointment", data.HasAppointment),
		slog.Float64(logging.KeyConfidence, data.Confidence),
		slog.Int("issues", len(data.Issues)),
	)
	return &Result{
		Success:          true,
		Data:             data,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func failedResult(err error, start time.Time) *Result {
	return &Result{
		Error:            err.Error(),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
}

var urgencyLevels = map[string]bool{
	"low":       true,
	"normal":    true,
	"high":      true,
	"emergency": true,
}

func normalize(p *rawPayload) *Appointment {
	a := &Appointment{
		HasAppointment:    *p.HasAppointment,
		CustomerName:      strings.TrimSpace(p.CustomerName),
		CustomerPhone:     strings.TrimSpace(p.CustomerPhone),
		CustomerEmail:     strings.ToLower(strings.TrimSpace(p.CustomerEmail)),
		ServiceType:       strings.TrimSpace(p.ServiceType),
		Description:       strings.TrimSpace(p.Description),
		Urgency:           strings.ToLower(strings.TrimSpace(p.Urgency)),
		PreferredDate:     strings.TrimSpace(p.PreferredDate),
		PreferredTime:     strings.TrimSpace(p.PreferredTime),
		Flexibility:       strings.TrimSpace(p.Flexibility),
		Address:           strings.TrimSpace(p.Address),
		AddressConfidence: clamp01(p.AddressConfidence),
		QuotedPrice:       p.QuotedPrice,
		BudgetMentioned:   p.BudgetMentioned,
		PricingNote:       strings.TrimSpace(p.PricingNote),
		Confidence:        clamp01(scaleConfidence(*p.Confidence)),
	}
	if a.Urgency == "" {
		a.Urgency = "normal"
	}
	return a
}

// scaleConfidence tolerates collaborators answering on a 0-100 scale.
func scaleConfidence(c float64) float64 {
	if c > 1 && c <= 100 {
		return c / 100
	}
	return c
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// detectIssues flags conditions a dispatcher should double-check. Issues do
// not block job creation on their own; the confidence threshold does.
func detectIssues(a *Appointment) []string {
	if !a.HasAppointment {
		return nil
	}

	var issues []string
	if a.CustomerName == "" {
		issues = append(issues, "no customer name mentioned")
	}
	if a.ServiceType == "" {
		issues = append(issues, "no service type mentioned")
	}
	if a.CustomerPhone != "" && !phone.Plausible(phone.Normalize(a.CustomerPhone)) {
		issues = append(issues, fmt.Sprintf("customer phone %q looks invalid", a.CustomerPhone))
	}
	if a.PreferredDate != "" {
		if _, ok := dateparse.Parse(a.PreferredDate, time.Now()); !ok {
			issues = append(issues, fmt.Sprintf("preferred date %q could not be parsed", a.PreferredDate))
		}
	}
	if !urgencyLevels[a.Urgency] {
		issues = append(issues, fmt.Sprintf("unrecognized urgency %q", a.Urgency))
		a.Urgency = "normal"
	}
	if a.QuotedPrice < 0 {
		issues = append(issues, "negative quoted price")
		a.QuotedPrice = 0
	}
	return issues
}
