package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/creditpipe/creditpipe/internal/consolidate"
	"github.com/creditpipe/creditpipe/internal/extract"
	"github.com/creditpipe/creditpipe/internal/models"
	"github.com/creditpipe/creditpipe/internal/storage"
)

// Store is the persistence surface the lifecycle manager drives.
// *Service implements it; tests substitute fakes.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, processingErrors *string) error
	SetRawText(ctx context.Context, id uuid.UUID, text string) error
	InsertResult(ctx context.Context, res *models.ExtractionResult) error
	ListResults(ctx context.Context, reportID uuid.UUID) ([]models.ExtractionResult, error)
	ReplaceEntities(ctx context.Context, reportID uuid.UUID, e *extract.Entities) error
	DeleteEntities(ctx context.Context, reportID uuid.UUID) error
	UpsertConsolidation(ctx context.Context, m *models.ConsolidationMetadata) error
}

// Extractor runs the backend fallback chain over a PDF.
type Extractor interface {
	Run(ctx context.Context, pdf []byte) *extract.Outcome
}

// Notifier fans report lifecycle events out to subscribers.
type Notifier interface {
	Dispatch(ctx context.Context, event string, payload interface{}) error
}

// Manager drives a report through pending, processing and its terminal
// state. A report that cannot be extracted ends failed with a reason;
// it never ends completed with made-up data.
type Manager struct {
	store           Store
	storage         storage.Storage
	bucket          string
	extractor       Extractor
	engine          *consolidate.Engine
	notifier        Notifier
	defaultStrategy string
}

func NewManager(store Store, st storage.Storage, bucket string, ex Extractor, engine *consolidate.Engine, notifier Notifier, defaultStrategy string) *Manager {
	if defaultStrategy == "" {
		defaultStrategy = models.StrategyHighestConfidence
	}
	return &Manager{
		store:           store,
		storage:         st,
		bucket:          bucket,
		extractor:       ex,
		engine:          engine,
		notifier:        notifier,
		defaultStrategy: defaultStrategy,
	}
}

// Process runs the full pipeline for one report. Every backend attempt,
// failed or not, lands as an extraction result row before the status
// moves. A returned error means the step is worth retrying; a terminal
// extraction failure returns nil after marking the report failed.
func (m *Manager) Process(ctx context.Context, reportID uuid.UUID) error {
	r, err := m.store.GetByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}

	if err := m.store.UpdateStatus(ctx, reportID, models.StatusProcessing, nil); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	pdf, err := storage.DownloadBytes(ctx, m.storage, m.bucket, r.FilePath)
	if err != nil {
		reason := fmt.Sprintf("download source file: %v", err)
		m.fail(ctx, reportID, reason)
		return fmt.Errorf("download source file: %w", err)
	}

	outcome := m.extractor.Run(ctx, pdf)
	for _, att := range outcome.Attempts {
		res := resultFromAttempt(reportID, att)
		if err := m.store.InsertResult(ctx, res); err != nil {
			return fmt.Errorf("record attempt %s: %w", att.Method, err)
		}
	}

	if outcome.Exhausted() {
		m.fail(ctx, reportID, outcome.FailureReason())
		// Terminal for this run; asynq must not retry a marked-failed report.
		return nil
	}

	winner := outcome.Attempts[outcome.Winner]
	if err := m.store.SetRawText(ctx, reportID, winner.Text); err != nil {
		return fmt.Errorf("store raw text: %w", err)
	}

	if _, err := m.Consolidate(ctx, reportID, m.defaultStrategy); err != nil {
		return fmt.Errorf("consolidate after extraction: %w", err)
	}

	if err := m.store.UpdateStatus(ctx, reportID, models.StatusCompleted, nil); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	slog.Info("report processed",
		"report_id", reportID,
		"winner", winner.Method,
		"attempts", len(outcome.Attempts))
	m.notify(ctx, models.EventReportCompleted, map[string]interface{}{
		"report_id": reportID.String(),
		"status":    models.StatusCompleted,
		"method":    winner.Method,
	})
	return nil
}

// Reprocess reruns extraction for a report. Extraction result rows from
// earlier runs are kept as history, but entities derived from the prior
// run are purged up front so nothing stale survives into the new run.
// Leaving a completed state needs force; so does racing an in-flight run.
func (m *Manager) Reprocess(ctx context.Context, reportID uuid.UUID, force bool) error {
	r, err := m.store.GetByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	switch {
	case r.ExtractionStatus == models.StatusProcessing && !force:
		return fmt.Errorf("report %s is already processing", reportID)
	case r.ExtractionStatus == models.StatusCompleted && !force:
		return fmt.Errorf("report %s is already completed, reprocessing requires force", reportID)
	}

	if err := m.store.DeleteEntities(ctx, reportID); err != nil {
		return fmt.Errorf("purge prior entities: %w", err)
	}
	return m.Process(ctx, reportID)
}

// Consolidate recomputes the agreed entity view from every successful
// extraction result on record and swaps the stored entities to match.
func (m *Manager) Consolidate(ctx context.Context, reportID uuid.UUID, strategy string) (*consolidate.Result, error) {
	if strategy == "" {
		strategy = m.defaultStrategy
	}

	results, err := m.store.ListResults(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("list extraction results: %w", err)
	}

	var sources []consolidate.Source
	for _, res := range results {
		// Failed attempts carry no text and never vote.
		if res.Metadata.ErrorMessage != "" || res.ExtractedText == "" {
			continue
		}
		sources = append(sources, consolidate.Source{
			Method:     res.ExtractionMethod,
			Confidence: res.ConfidenceScore,
			CreatedAt:  res.CreatedAt,
			Entities:   extract.Parse(res.ExtractedText),
		})
	}

	consolidated, err := m.engine.Consolidate(sources, strategy)
	if err != nil {
		return nil, err
	}

	if err := m.store.ReplaceEntities(ctx, reportID, consolidated.Entities); err != nil {
		return nil, fmt.Errorf("replace entities: %w", err)
	}

	consolidated.Metadata.ReportID = reportID
	if err := m.store.UpsertConsolidation(ctx, &consolidated.Metadata); err != nil {
		return nil, fmt.Errorf("store consolidation metadata: %w", err)
	}

	m.notify(ctx, models.EventConsolidationUpdated, map[string]interface{}{
		"report_id":      reportID.String(),
		"strategy":       strategy,
		"primary_source": consolidated.Metadata.PrimarySource,
		"conflict_count": consolidated.Metadata.ConflictCount,
	})
	return consolidated, nil
}

// Compare reports field-level agreement across the successful extraction
// results without touching stored entities.
func (m *Manager) Compare(ctx context.Context, reportID uuid.UUID) (*consolidate.Comparison, error) {
	results, err := m.store.ListResults(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("list extraction results: %w", err)
	}
	var sources []consolidate.Source
	for _, res := range results {
		if res.Metadata.ErrorMessage != "" || res.ExtractedText == "" {
			continue
		}
		sources = append(sources, consolidate.Source{
			Method:     res.ExtractionMethod,
			Confidence: res.ConfidenceScore,
			CreatedAt:  res.CreatedAt,
			Entities:   extract.Parse(res.ExtractedText),
		})
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("report %s has no successful extraction results", reportID)
	}
	return m.engine.Compare(sources), nil
}

func (m *Manager) fail(ctx context.Context, reportID uuid.UUID, reason string) {
	if err := m.store.UpdateStatus(ctx, reportID, models.StatusFailed, &reason); err != nil {
		slog.Error("failed to mark report failed", "report_id", reportID, "error", err)
		return
	}
	slog.Warn("report failed", "report_id", reportID, "reason", reason)
	m.notify(ctx, models.EventReportFailed, map[string]interface{}{
		"report_id": reportID.String(),
		"status":    models.StatusFailed,
		"error":     reason,
	})
}

func (m *Manager) notify(ctx context.Context, event string, payload interface{}) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Dispatch(ctx, event, payload); err != nil {
		slog.Error("webhook dispatch failed", "event", event, "error", err)
	}
}

func resultFromAttempt(reportID uuid.UUID, att extract.Attempt) *models.ExtractionResult {
	res := &models.ExtractionResult{
		ReportID:          reportID,
		ExtractionMethod:  att.Method,
		ConfidenceScore:   att.Confidence,
		CharacterCount:    att.CharacterCount,
		WordCount:         att.WordCount,
		HasStructuredData: att.HasStructured,
		ProcessingTimeMs:  att.Duration.Milliseconds(),
	}
	if att.Accepted {
		res.ExtractedText = att.Text
	} else {
		res.Metadata = models.ExtractionMetadata{
			ErrorMessage: att.Err,
			Rejected:     att.ContentReject,
		}
		if att.ContentReject {
			res.Metadata.RejectReason = att.Err
		}
	}
	return res
}
