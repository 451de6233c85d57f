package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"calldesk/internal/logging"
	"calldesk/internal/store"
)

// heartbeatMonitor keeps in-flight calls visibly alive and reclaims calls
// whose worker died mid-stage.
type heartbeatMonitor struct {
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

func newHeartbeatMonitor(st *store.Store, logger *slog.Logger, interval, timeout time.Duration) *heartbeatMonitor {
	return &heartbeatMonitor{store: st, logger: logger, interval: interval, timeout: timeout}
}

// reclaimStale resets processing calls whose heartbeat went quiet.
func (h *heartbeatMonitor) reclaimStale(ctx context.Context) error {
	if h.timeout <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-h.timeout)
	reclaimed, err := h.store.ReclaimStaleProcessing(ctx, cutoff)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		h.logger.Info("reclaimed stale calls", slog.Int64("count", reclaimed))
	}
	return nil
}

// startLoop updates a call's heartbeat until the context is cancelled.
func (h *heartbeatMonitor) startLoop(ctx context.Context, wg *sync.WaitGroup, callID int64) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateCallHeartbeat(ctx, callID); err != nil {
				if errors.Is(err, context.Canceled) {
					h.logger.Debug("heartbeat update cancelled by shutdown", logging.CallID(callID))
				} else {
					h.logger.Warn("heartbeat update failed", logging.CallID(callID), logging.Error(err))
				}
			}
		}
	}
}
