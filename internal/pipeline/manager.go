package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"calldesk/internal/config"
	"calldesk/internal/logging"
	"calldesk/internal/notify"
	"calldesk/internal/services"
	"calldesk/internal/store"
)

type pipelineStage struct {
	name             string
	handler          Handler
	startStatus      store.CallStatus
	processingStatus store.CallStatus
	doneStatus       store.CallStatus
}

// Manager coordinates call processing using the registered stage handlers.
type Manager struct {
	cfg      *config.Config
	store    *store.Store
	logger   *slog.Logger
	notifier notify.Service

	pollInterval  time.Duration
	errorRetry    time.Duration
	heartbeat     *heartbeatMonitor
	stages        []pipelineStage
	stageByStart  map[store.CallStatus]pipelineStage
	startStatuses []store.CallStatus

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs the pipeline manager from the stage set.
func NewManager(cfg *config.Config, st *store.Store, stages StageSet, notifier notify.Service, logger *slog.Logger) *Manager {
	ordered := []pipelineStage{
		{
			name:             "transcribe",
			handler:          stages.Transcriber,
			startStatus:      store.CallStatusPending,
			processingStatus: store.CallStatusTranscribing,
			doneStatus:       store.CallStatusTranscribed,
		},
		{
			name:             "extract",
			handler:          stages.Extractor,
			startStatus:      store.CallStatusTranscribed,
			processingStatus: store.CallStatusExtracting,
			doneStatus:       store.CallStatusExtracted,
		},
		{
			name:             "match",
			handler:          stages.Matcher,
			startStatus:      store.CallStatusExtracted,
			processingStatus: store.CallStatusMatching,
			doneStatus:       store.CallStatusCompleted,
		},
	}

	m := &Manager{
		cfg:          cfg,
		store:        st,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetry:   time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		heartbeat: newHeartbeatMonitor(
			st,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		stages:       ordered,
		stageByStart: make(map[store.CallStatus]pipelineStage, len(ordered)),
	}
	for _, stg := range ordered {
		m.stageByStart[stg.startStatus] = stg
		m.startStatuses = append(m.startStatuses, stg.startStatus)
	}
	if m.pollInterval <= 0 {
		m.pollInterval = 5 * time.Second
	}
	if m.errorRetry <= 0 {
		m.errorRetry = m.pollInterval
	}
	return m
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("pipeline already running")
	}
	for _, stg := range m.stages {
		if stg.handler == nil {
			return errors.New("pipeline stage " + stg.name + " has no handler")
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// LastError returns the most recent processing error, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.reclaimStale(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("reclaim stale calls failed; stuck calls may remain", logging.Error(err))
		}

		call, err := m.store.NextCallForStatuses(ctx, m.startStatuses...)
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to fetch next call", logging.Error(err))
			m.waitOrShutdown(ctx, m.errorRetry)
			continue
		}
		if call == nil {
			m.waitOrShutdown(ctx, m.pollInterval)
			continue
		}

		if err := m.processCall(ctx, call); err != nil && errors.Is(err, context.Canceled) {
			return
		}
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context, wait time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

func (m *Manager) processCall(ctx context.Context, call *store.Call) error {
	stg, ok := m.stageByStart[call.Status]
	if !ok {
		m.logger.Warn("no stage configured for status", slog.String("status", string(call.Status)))
		m.waitOrShutdown(ctx, m.pollInterval)
		return nil
	}

	ctx = services.WithCallID(ctx, call.ID)
	ctx = services.WithStage(ctx, stg.name)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	stageLogger := logging.WithContext(ctx, m.logger)

	now := time.Now().UTC()
	call.Status = stg.processingStatus
	call.ErrorMessage = ""
	call.LastHeartbeat = &now
	if err := m.store.UpdateCall(ctx, call); err != nil {
		stageLogger.Error("failed to transition call to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	stageStart := time.Now()
	stageLogger.Info("stage started")

	if err := stg.handler.Prepare(ctx, call); err != nil {
		m.handleStageFailure(ctx, stageLogger, stg.name, call, err)
		return err
	}

	execErr := m.executeWithHeartbeat(ctx, stg.handler, call)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stageLogger, stg.name, call, execErr)
		return execErr
	}

	// Handlers may park a call themselves (review); otherwise advance.
	if call.Status == stg.processingStatus || call.Status == "" {
		call.Status = stg.doneStatus
	}
	call.LastHeartbeat = nil
	if err := m.store.UpdateCall(ctx, call); err != nil {
		stageLogger.Error("failed to persist stage result", logging.Error(err))
		m.setLastError(err)
		return err
	}

	stageLogger.Info("stage completed",
		slog.String("next_status", string(call.Status)),
		slog.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler Handler, call *store.Call) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.startLoop(hbCtx, &hbWG, call.ID)

	execErr := handler.Execute(ctx, call)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) handleStageFailure(ctx context.Context, stageLogger *slog.Logger, stageName string, call *store.Call, stageErr error) {
	m.setLastError(stageErr)

	status := services.FailureStatus(stageErr)
	call.Status = status
	call.ErrorMessage = strings.TrimSpace(stageErr.Error())
	call.LastHeartbeat = nil
	if status == store.CallStatusReview {
		call.NeedsReview = true
		if call.ReviewReason == "" {
			call.ReviewReason = call.ErrorMessage
		}
	}

	stageLogger.Error("stage failed",
		slog.String("resolved_status", string(status)),
		logging.Error(stageErr),
	)
	if err := m.store.UpdateCall(ctx, call); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("daemon shutting down, could not persist stage failure")
		} else {
			stageLogger.Error("failed to persist stage failure", logging.Error(err))
		}
		return
	}

	if status == store.CallStatusReview {
		if err := m.notifier.NotifyReviewNeeded(ctx, call.ID, call.ReviewReason); err != nil {
			stageLogger.Warn("review notification failed", logging.Error(err))
		}
	} else {
		if err := m.notifier.NotifyError(ctx, stageErr, stageName); err != nil {
			stageLogger.Warn("error notification failed", logging.Error(err))
		}
	}
}

// Health reports readiness for each configured stage.
func (m *Manager) Health(ctx context.Context) []Health {
	reports := make([]Health, 0, len(m.stages))
	for _, stg := range m.stages {
		if stg.handler == nil {
			reports = append(reports, Unhealthy(stg.name, "no handler configured"))
			continue
		}
		reports = append(reports, stg.handler.HealthCheck(ctx))
	}
	return reports
}
