package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/creditpipe/creditpipe/internal/queue"
	"github.com/creditpipe/creditpipe/internal/report"
)

type ConsolidateWorker struct {
	manager *report.Manager
}

func NewConsolidateWorker(manager *report.Manager) *ConsolidateWorker {
	return &ConsolidateWorker{manager: manager}
}

func (w *ConsolidateWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ReportConsolidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	reportID, err := uuid.Parse(payload.ReportID)
	if err != nil {
		return fmt.Errorf("parse report ID: %w", err)
	}

	slog.Info("consolidating report", "report_id", reportID, "strategy", payload.Strategy)
	res, err := w.manager.Consolidate(ctx, reportID, payload.Strategy)
	if err != nil {
		return fmt.Errorf("consolidate report %s: %w", reportID, err)
	}

	slog.Info("consolidation stored",
		"report_id", reportID,
		"primary_source", res.Metadata.PrimarySource,
		"conflicts", res.Metadata.ConflictCount,
		"requires_review", res.Metadata.RequiresHumanReview)
	return nil
}
