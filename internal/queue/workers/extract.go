// Package workers holds the asynq task handlers for the pipeline.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/creditpipe/creditpipe/internal/cache"
	"github.com/creditpipe/creditpipe/internal/queue"
	"github.com/creditpipe/creditpipe/internal/report"
)

// lockTTL outlives the longest extraction run so a crashed worker's lock
// eventually clears on its own.
const lockTTL = 15 * time.Minute

type ExtractWorker struct {
	manager *report.Manager
	locks   *cache.Cache
}

func NewExtractWorker(manager *report.Manager, locks *cache.Cache) *ExtractWorker {
	return &ExtractWorker{manager: manager, locks: locks}
}

func (w *ExtractWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ReportExtractPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	reportID, err := uuid.Parse(payload.ReportID)
	if err != nil {
		return fmt.Errorf("parse report ID: %w", err)
	}

	lockKey := "lock:report:" + reportID.String()
	if w.locks != nil {
		ok, err := w.locks.AcquireLock(ctx, lockKey, lockTTL)
		if err != nil {
			return fmt.Errorf("acquire report lock: %w", err)
		}
		if !ok {
			// Plain error so asynq backs off and retries once the holder
			// finishes or the lock expires.
			slog.Warn("report already being processed, backing off", "report_id", reportID)
			return fmt.Errorf("report %s is locked by another worker", reportID)
		}
		defer func() {
			if err := w.locks.ReleaseLock(context.Background(), lockKey); err != nil {
				slog.Error("release report lock failed", "report_id", reportID, "error", err)
			}
		}()
	}

	slog.Info("extracting report", "report_id", reportID, "force", payload.Force)
	// Reprocess handles the fresh-upload case too: with nothing derived
	// yet the purge is a no-op and the state guards pass.
	return w.manager.Reprocess(ctx, reportID, payload.Force)
}
