package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"calldesk/internal/config"
	"calldesk/internal/extraction"
	"calldesk/internal/jobs"
	"calldesk/internal/logging"
	"calldesk/internal/notify"
	"calldesk/internal/services"
	"calldesk/internal/store"
	"calldesk/internal/transcribe"
)

// StageSet bundles the concrete handlers the manager orchestrates.
type StageSet struct {
	Transcriber Handler
	Extractor   Handler
	Matcher     Handler
}

// TranscribeStage turns call audio into a transcript.
type TranscribeStage struct {
	transcriber transcribe.Transcriber
	logger      *slog.Logger
}

// NewTranscribeStage builds the transcription stage.
func NewTranscribeStage(transcriber transcribe.Transcriber, logger *slog.Logger) *TranscribeStage {
	return &TranscribeStage{transcriber: transcriber, logger: logger}
}

func (s *TranscribeStage) Prepare(ctx context.Context, call *store.Call) error {
	if strings.TrimSpace(call.AudioPath) == "" && !call.HasTranscript() {
		return services.Wrap(services.ErrValidation, "transcribe", "prepare",
			"call has neither audio nor transcript", nil)
	}
	return nil
}

func (s *TranscribeStage) Execute(ctx context.Context, call *store.Call) error {
	if call.HasTranscript() {
		logging.WithContext(ctx, s.logger).Debug("transcript already present, skipping")
		return nil
	}
	result, err := s.transcriber.Transcribe(ctx, call.AudioPath)
	if err != nil {
		return err
	}
	call.TranscriptText = result.Text
	call.TranscriptConfidence = result.Confidence
	call.DurationSeconds = result.DurationSeconds
	call.Language = result.Language
	return nil
}

func (s *TranscribeStage) HealthCheck(ctx context.Context) Health {
	if s.transcriber == nil {
		return Unhealthy("transcribe", "no transcriber configured")
	}
	return Healthy("transcribe")
}

// ExtractStage runs the extraction engine over the call's transcript and
// persists the structured result.
type ExtractStage struct {
	store    *store.Store
	engine   *extraction.Engine
	notifier notify.Service
	logger   *slog.Logger
}

// NewExtractStage builds the extraction stage.
func NewExtractStage(st *store.Store, engine *extraction.Engine, notifier notify.Service, logger *slog.Logger) *ExtractStage {
	return &ExtractStage{store: st, engine: engine, notifier: notifier, logger: logger}
}

func (s *ExtractStage) Prepare(ctx context.Context, call *store.Call) error {
	if !call.HasTranscript() {
		return services.Wrap(services.ErrValidation, "extract", "prepare", "call has no transcript", nil)
	}
	return nil
}

func (s *ExtractStage) Execute(ctx context.Context, call *store.Call) error {
	result, err := s.engine.Extract(ctx, call.TranscriptText)
	if err != nil {
		return err
	}

	data := result.Data
	record, err := s.store.CreateExtraction(ctx, &store.Extraction{
		CallID:            call.ID,
		UserID:            call.UserID,
		HasAppointment:    data.HasAppointment,
		CustomerName:      data.CustomerName,
		CustomerPhone:     data.CustomerPhone,
		CustomerEmail:     data.CustomerEmail,
		ServiceType:       data.ServiceType,
		Description:       data.Description,
		Urgency:           data.Urgency,
		PreferredDate:     data.PreferredDate,
		PreferredTime:     data.PreferredTime,
		Flexibility:       data.Flexibility,
		Address:           data.Address,
		AddressConfidence: data.AddressConfidence,
		QuotedPrice:       data.QuotedPrice,
		BudgetMentioned:   data.BudgetMentioned,
		PricingNote:       data.PricingNote,
		Confidence:        data.Confidence,
		Issues:            data.Issues,
	})
	if err != nil {
		return err
	}
	call.ExtractionID = record.ID
	if len(data.Issues) > 0 {
		call.NeedsReview = true
		call.ReviewReason = strings.Join(data.Issues, "; ")
	}

	if err := s.notifier.NotifyExtractionCompleted(ctx, call.ID, data.ServiceType, data.Confidence); err != nil {
		logging.WithContext(ctx, s.logger).Warn("extraction notification failed", logging.Error(err))
	}
	return nil
}

func (s *ExtractStage) HealthCheck(ctx context.Context) Health {
	if s.engine == nil {
		return Unhealthy("extract", "no extraction engine configured")
	}
	return Healthy("extract")
}

// MatchStage resolves the extracted contact to a customer and promotes
// confident appointments into jobs.
type MatchStage struct {
	store         *store.Store
	orchestrator  *jobs.Orchestrator
	notifier      notify.Service
	minConfidence float64
	logger        *slog.Logger
}

// NewMatchStage builds the matching stage.
func NewMatchStage(cfg *config.Config, st *store.Store, orchestrator *jobs.Orchestrator, notifier notify.Service, logger *slog.Logger) *MatchStage {
	return &MatchStage{
		store:         st,
		orchestrator:  orchestrator,
		notifier:      notifier,
		minConfidence: cfg.Extraction.MinJobConfidence,
		logger:        logger,
	}
}

func (s *MatchStage) Prepare(ctx context.Context, call *store.Call) error {
	return nil
}

func (s *MatchStage) Execute(ctx context.Context, call *store.Call) error {
	extractionRecord, err := s.store.GetExtractionByCall(ctx, call.UserID, call.ID)
	if err != nil {
		return err
	}
	if extractionRecord == nil {
		return services.Wrap(services.ErrNotFound, "match", "execute", "call has no extraction", nil)
	}
	logger := logging.WithContext(ctx, s.logger)
	if !extractionRecord.HasAppointment {
		// A caller with nothing to schedule completes without a job.
		logger.Debug("no appointment extracted")
		return nil
	}

	if extractionRecord.Confidence < s.minConfidence {
		call.Status = store.CallStatusReview
		call.NeedsReview = true
		call.ReviewReason = fmt.Sprintf("extraction confidence %.2f below minimum %.2f",
			extractionRecord.Confidence, s.minConfidence)
		if err := s.notifier.NotifyReviewNeeded(ctx, call.ID, call.ReviewReason); err != nil {
			logger.Warn("review notification failed", logging.Error(err))
		}
		return nil
	}

	result, err := s.orchestrator.CreateFromExtraction(ctx, call.UserID, extractionRecord.ID)
	if err != nil {
		return err
	}
	for _, warning := range result.Warnings {
		logger.Warn("job created with degraded data", slog.String("warning", warning))
	}
	logger.Info("call matched",
		logging.JobID(result.Job.ID),
		logging.CustomerID(result.Customer.ID),
		slog.Bool("new_customer", result.IsNewCustomer),
	)
	return nil
}

func (s *MatchStage) HealthCheck(ctx context.Context) Health {
	if s.orchestrator == nil {
		return Unhealthy("match", "no job orchestrator configured")
	}
	return Healthy("match")
}
