package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditpipe/creditpipe/internal/config"
	"github.com/creditpipe/creditpipe/internal/consolidate"
	"github.com/creditpipe/creditpipe/internal/extract"
	"github.com/creditpipe/creditpipe/internal/models"
)

const sampleText = `Name: John Smith
Current Balance: $1,250.00 Capital One Platinum
Inquiry: Chase Bank 01/15/2024 Hard`

type fakeStore struct {
	reports        map[uuid.UUID]*models.Report
	results        []models.ExtractionResult
	entities       map[uuid.UUID]*extract.Entities
	consolidations map[uuid.UUID]models.ConsolidationMetadata
	statusLog      []string
}

func newFakeStore(r *models.Report) *fakeStore {
	return &fakeStore{
		reports:        map[uuid.UUID]*models.Report{r.ID: r},
		entities:       make(map[uuid.UUID]*extract.Entities),
		consolidations: make(map[uuid.UUID]models.ConsolidationMetadata),
	}
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	r, ok := f.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string, processingErrors *string) error {
	r := f.reports[id]
	r.ExtractionStatus = status
	r.ProcessingErrors = processingErrors
	f.statusLog = append(f.statusLog, status)
	return nil
}

func (f *fakeStore) SetRawText(ctx context.Context, id uuid.UUID, text string) error {
	f.reports[id].RawText = &text
	return nil
}

func (f *fakeStore) InsertResult(ctx context.Context, res *models.ExtractionResult) error {
	res.ID = uuid.New()
	res.CreatedAt = time.Now()
	f.results = append(f.results, *res)
	return nil
}

func (f *fakeStore) ListResults(ctx context.Context, reportID uuid.UUID) ([]models.ExtractionResult, error) {
	var out []models.ExtractionResult
	for _, r := range f.results {
		if r.ReportID == reportID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ReplaceEntities(ctx context.Context, reportID uuid.UUID, e *extract.Entities) error {
	f.entities[reportID] = e
	return nil
}

func (f *fakeStore) DeleteEntities(ctx context.Context, reportID uuid.UUID) error {
	delete(f.entities, reportID)
	return nil
}

func (f *fakeStore) UpsertConsolidation(ctx context.Context, m *models.ConsolidationMetadata) error {
	m.UpdatedAt = time.Now()
	f.consolidations[m.ReportID] = *m
	return nil
}

type fakeStorage struct {
	objects map[string][]byte
	err     error
}

func (f *fakeStorage) Upload(ctx context.Context, bucket, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[path] = b
	return nil
}

func (f *fakeStorage) Download(ctx context.Context, bucket, path string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.objects[path]
	if !ok {
		return nil, fmt.Errorf("object %s not found", path)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeStorage) Delete(ctx context.Context, bucket, path string) error {
	delete(f.objects, path)
	return nil
}

type fakeExtractor struct {
	outcome *extract.Outcome
}

func (f *fakeExtractor) Run(ctx context.Context, pdf []byte) *extract.Outcome {
	return f.outcome
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Dispatch(ctx context.Context, event string, payload interface{}) error {
	f.events = append(f.events, event)
	return nil
}

func successOutcome() *extract.Outcome {
	return &extract.Outcome{
		Winner: 1,
		Attempts: []extract.Attempt{
			{Method: "docai", Err: "vendor timeout"},
			{Method: "textify", Text: sampleText, Confidence: 0.82, CharacterCount: len(sampleText), Accepted: true},
		},
	}
}

func exhaustedOutcome() *extract.Outcome {
	return &extract.Outcome{
		Winner: -1,
		Attempts: []extract.Attempt{
			{Method: "docai", Err: "vendor timeout"},
			{Method: "textify", Err: "503 from vendor"},
		},
	}
}

func newTestManager(store *fakeStore, st *fakeStorage, ex Extractor, n Notifier) *Manager {
	engine := consolidate.NewEngine(config.ConsolidationConfig{ReviewThreshold: 0.70, ConflictCap: 0.85})
	return NewManager(store, st, "reports", ex, engine, n, models.StrategyHighestConfidence)
}

func pendingReport() *models.Report {
	return &models.Report{
		ID:               uuid.New(),
		Bureau:           "experian",
		FilePath:         "reports/r1.pdf",
		ExtractionStatus: models.StatusPending,
	}
}

func TestManager_ProcessSuccess(t *testing.T) {
	r := pendingReport()
	store := newFakeStore(r)
	st := &fakeStorage{objects: map[string][]byte{"reports/r1.pdf": []byte("%PDF-1.4")}}
	notifier := &fakeNotifier{}

	m := newTestManager(store, st, &fakeExtractor{outcome: successOutcome()}, notifier)
	require.NoError(t, m.Process(context.Background(), r.ID))

	assert.Equal(t, models.StatusCompleted, store.reports[r.ID].ExtractionStatus)
	require.NotNil(t, store.reports[r.ID].RawText)
	assert.Equal(t, sampleText, *store.reports[r.ID].RawText)

	// Both attempts recorded, including the failed one.
	require.Len(t, store.results, 2)
	assert.Equal(t, "docai", store.results[0].ExtractionMethod)
	assert.Equal(t, 0.0, store.results[0].ConfidenceScore)
	assert.Equal(t, "vendor timeout", store.results[0].Metadata.ErrorMessage)
	assert.Equal(t, "textify", store.results[1].ExtractionMethod)
	assert.Equal(t, sampleText, store.results[1].ExtractedText)

	entities := store.entities[r.ID]
	require.NotNil(t, entities)
	require.NotNil(t, entities.Personal)
	assert.Equal(t, "John Smith", *entities.Personal.FullName)
	require.Len(t, entities.Accounts, 1)
	assert.Contains(t, entities.Accounts[0].CreditorName, "Capital One Platinum")
	assert.Equal(t, 1250.00, *entities.Accounts[0].Balance)

	meta := store.consolidations[r.ID]
	assert.Equal(t, "textify", meta.PrimarySource)
	assert.Equal(t, models.StrategyHighestConfidence, meta.ConsolidationStrategy)

	assert.Contains(t, notifier.events, models.EventConsolidationUpdated)
	assert.Contains(t, notifier.events, models.EventReportCompleted)
}

func TestManager_ExhaustedChainIsTerminal(t *testing.T) {
	r := pendingReport()
	store := newFakeStore(r)
	st := &fakeStorage{objects: map[string][]byte{"reports/r1.pdf": []byte("%PDF-1.4")}}
	notifier := &fakeNotifier{}

	m := newTestManager(store, st, &fakeExtractor{outcome: exhaustedOutcome()}, notifier)
	err := m.Process(context.Background(), r.ID)
	require.NoError(t, err, "terminal failure is not a retryable worker error")

	got := store.reports[r.ID]
	assert.Equal(t, models.StatusFailed, got.ExtractionStatus)
	require.NotNil(t, got.ProcessingErrors)
	assert.Contains(t, *got.ProcessingErrors, "docai: vendor timeout")
	assert.Contains(t, *got.ProcessingErrors, "retry later")

	// Failures are history too.
	assert.Len(t, store.results, 2)
	assert.Nil(t, store.entities[r.ID], "no entities may be fabricated on failure")
	assert.Contains(t, notifier.events, models.EventReportFailed)
	assert.NotContains(t, notifier.events, models.EventReportCompleted)
}

func TestManager_RetryKeepsFailureHistory(t *testing.T) {
	r := pendingReport()
	store := newFakeStore(r)
	st := &fakeStorage{objects: map[string][]byte{"reports/r1.pdf": []byte("%PDF-1.4")}}

	failing := &fakeExtractor{outcome: exhaustedOutcome()}
	m := newTestManager(store, st, failing, nil)
	require.NoError(t, m.Process(context.Background(), r.ID))
	assert.Equal(t, models.StatusFailed, store.reports[r.ID].ExtractionStatus)

	// The vendor recovers; a retry must append to history, not rewrite it.
	failing.outcome = successOutcome()
	require.NoError(t, m.Reprocess(context.Background(), r.ID, false))

	assert.Equal(t, models.StatusCompleted, store.reports[r.ID].ExtractionStatus)
	assert.Len(t, store.results, 4, "two failed rows from the first run plus two new ones")
	assert.Equal(t, []string{
		models.StatusProcessing, models.StatusFailed,
		models.StatusProcessing, models.StatusCompleted,
	}, store.statusLog)
}

func TestManager_ReprocessGuardsInFlightRuns(t *testing.T) {
	r := pendingReport()
	r.ExtractionStatus = models.StatusProcessing
	store := newFakeStore(r)
	st := &fakeStorage{objects: map[string][]byte{"reports/r1.pdf": []byte("%PDF-1.4")}}

	m := newTestManager(store, st, &fakeExtractor{outcome: successOutcome()}, nil)

	err := m.Reprocess(context.Background(), r.ID, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already processing")

	require.NoError(t, m.Reprocess(context.Background(), r.ID, true))
	assert.Equal(t, models.StatusCompleted, store.reports[r.ID].ExtractionStatus)
}

func TestManager_CompletedNeedsForce(t *testing.T) {
	r := pendingReport()
	r.ExtractionStatus = models.StatusCompleted
	store := newFakeStore(r)
	st := &fakeStorage{objects: map[string][]byte{"reports/r1.pdf": []byte("%PDF-1.4")}}

	m := newTestManager(store, st, &fakeExtractor{outcome: successOutcome()}, nil)
	err := m.Reprocess(context.Background(), r.ID, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires force")
}

func TestManager_ForcedReprocessPurgesStaleEntities(t *testing.T) {
	r := pendingReport()
	r.ExtractionStatus = models.StatusCompleted
	store := newFakeStore(r)
	store.entities[r.ID] = &extract.Entities{
		Personal: &models.PersonalInformation{FullName: func() *string { s := "Stale Name"; return &s }()},
	}
	st := &fakeStorage{objects: map[string][]byte{"reports/r1.pdf": []byte("%PDF-1.4")}}

	// The rerun fails, yet nothing from the prior run may survive.
	m := newTestManager(store, st, &fakeExtractor{outcome: exhaustedOutcome()}, nil)
	require.NoError(t, m.Reprocess(context.Background(), r.ID, true))

	assert.Equal(t, models.StatusFailed, store.reports[r.ID].ExtractionStatus)
	assert.Nil(t, store.entities[r.ID])
}

func TestManager_DownloadFailureIsRetryable(t *testing.T) {
	r := pendingReport()
	store := newFakeStore(r)
	st := &fakeStorage{err: fmt.Errorf("storage unreachable")}

	m := newTestManager(store, st, &fakeExtractor{outcome: successOutcome()}, nil)
	err := m.Process(context.Background(), r.ID)
	require.Error(t, err, "infrastructure failures bubble up so the queue retries")
	assert.Equal(t, models.StatusFailed, store.reports[r.ID].ExtractionStatus)
}

func TestManager_ConsolidateIgnoresFailedResults(t *testing.T) {
	r := pendingReport()
	store := newFakeStore(r)
	store.results = []models.ExtractionResult{
		{ReportID: r.ID, ExtractionMethod: "docai", Metadata: models.ExtractionMetadata{ErrorMessage: "timeout"}},
		{ReportID: r.ID, ExtractionMethod: "textify", ExtractedText: sampleText, ConfidenceScore: 0.82},
	}

	m := newTestManager(store, &fakeStorage{}, nil, nil)
	res, err := m.Consolidate(context.Background(), r.ID, models.StrategyMajorityVote)
	require.NoError(t, err)

	assert.Equal(t, "textify", res.Metadata.PrimarySource)
	assert.Equal(t, models.StrategyMajorityVote, res.Metadata.ConsolidationStrategy)
	require.NotNil(t, store.entities[r.ID])
}

func TestManager_ConsolidateWithNoUsableResults(t *testing.T) {
	r := pendingReport()
	store := newFakeStore(r)
	store.results = []models.ExtractionResult{
		{ReportID: r.ID, ExtractionMethod: "docai", Metadata: models.ExtractionMetadata{ErrorMessage: "timeout"}},
	}

	m := newTestManager(store, &fakeStorage{}, nil, nil)
	_, err := m.Consolidate(context.Background(), r.ID, models.StrategyHighestConfidence)
	assert.Error(t, err)
}
