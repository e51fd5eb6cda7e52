// Package report owns report rows, their extraction history, derived
// entities and consolidation metadata.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creditpipe/creditpipe/internal/extract"
	"github.com/creditpipe/creditpipe/internal/models"
	"github.com/creditpipe/creditpipe/internal/storage"
)

type Service struct {
	db      *pgxpool.Pool
	storage storage.Storage
	bucket  string
}

func NewService(db *pgxpool.Pool, store storage.Storage, bucket string) *Service {
	return &Service{
		db:      db,
		storage: store,
		bucket:  bucket,
	}
}

type UploadRequest struct {
	Bureau  string
	OwnerID *uuid.UUID
	Data    io.Reader
}

func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.Report, error) {
	reportID := uuid.New()
	path := fmt.Sprintf("reports/%s/%s.pdf", time.Now().Format("20060102"), reportID)

	if err := s.storage.Upload(ctx, s.bucket, path, req.Data, "application/pdf"); err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	var r models.Report
	err := s.db.QueryRow(ctx,
		`INSERT INTO reports (id, owner_id, bureau, file_path, extraction_status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, owner_id, bureau, file_path, raw_text, extraction_status, processing_errors, created_at`,
		reportID, req.OwnerID, req.Bureau, path, models.StatusPending,
	).Scan(&r.ID, &r.OwnerID, &r.Bureau, &r.FilePath, &r.RawText, &r.ExtractionStatus, &r.ProcessingErrors, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	return &r, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var r models.Report
	err := s.db.QueryRow(ctx,
		`SELECT id, owner_id, bureau, file_path, raw_text, extraction_status, processing_errors, created_at
		 FROM reports WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.OwnerID, &r.Bureau, &r.FilePath, &r.RawText, &r.ExtractionStatus, &r.ProcessingErrors, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &r, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Report, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, bureau, file_path, raw_text, extraction_status, processing_errors, created_at
		 FROM reports ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var r models.Report
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Bureau, &r.FilePath, &r.RawText, &r.ExtractionStatus, &r.ProcessingErrors, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Delete removes the report row and the stored PDF. Extraction results,
// entities and consolidation metadata go with it via ON DELETE CASCADE.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if r.FilePath != "" {
		_ = s.storage.Delete(ctx, s.bucket, r.FilePath)
	}
	_, err = s.db.Exec(ctx, "DELETE FROM reports WHERE id = $1", id)
	return err
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string, processingErrors *string) error {
	_, err := s.db.Exec(ctx,
		"UPDATE reports SET extraction_status = $1, processing_errors = $2 WHERE id = $3",
		status, processingErrors, id)
	return err
}

func (s *Service) SetRawText(ctx context.Context, id uuid.UUID, text string) error {
	_, err := s.db.Exec(ctx, "UPDATE reports SET raw_text = $1 WHERE id = $2", text, id)
	return err
}

// InsertResult appends one immutable extraction attempt row. Failed
// attempts are inserted the same way as winners.
func (s *Service) InsertResult(ctx context.Context, res *models.ExtractionResult) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO extraction_results
		 (report_id, extraction_method, extracted_text, confidence_score, character_count,
		  word_count, has_structured_data, processing_time_ms, extraction_metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		res.ReportID, res.ExtractionMethod, res.ExtractedText, res.ConfidenceScore,
		res.CharacterCount, res.WordCount, res.HasStructuredData, res.ProcessingTimeMs, res.Metadata,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert extraction result: %w", err)
	}
	return nil
}

func (s *Service) ListResults(ctx context.Context, reportID uuid.UUID) ([]models.ExtractionResult, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, report_id, extraction_method, extracted_text, confidence_score, character_count,
		        word_count, has_structured_data, processing_time_ms, extraction_metadata, created_at
		 FROM extraction_results WHERE report_id = $1 ORDER BY created_at ASC`,
		reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list extraction results: %w", err)
	}
	defer rows.Close()

	var results []models.ExtractionResult
	for rows.Next() {
		var r models.ExtractionResult
		if err := rows.Scan(&r.ID, &r.ReportID, &r.ExtractionMethod, &r.ExtractedText, &r.ConfidenceScore,
			&r.CharacterCount, &r.WordCount, &r.HasStructuredData, &r.ProcessingTimeMs, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan extraction result: %w", err)
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *Service) GetConsolidation(ctx context.Context, reportID uuid.UUID) (*models.ConsolidationMetadata, error) {
	var m models.ConsolidationMetadata
	err := s.db.QueryRow(ctx,
		`SELECT report_id, primary_source, confidence_level, consolidation_strategy,
		        conflict_count, requires_human_review, updated_at
		 FROM consolidation_metadata WHERE report_id = $1`,
		reportID,
	).Scan(&m.ReportID, &m.PrimarySource, &m.ConfidenceLevel, &m.ConsolidationStrategy,
		&m.ConflictCount, &m.RequiresHumanReview, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get consolidation metadata: %w", err)
	}
	return &m, nil
}

func (s *Service) UpsertConsolidation(ctx context.Context, m *models.ConsolidationMetadata) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO consolidation_metadata
		 (report_id, primary_source, confidence_level, consolidation_strategy, conflict_count, requires_human_review, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (report_id) DO UPDATE SET
		   primary_source = EXCLUDED.primary_source,
		   confidence_level = EXCLUDED.confidence_level,
		   consolidation_strategy = EXCLUDED.consolidation_strategy,
		   conflict_count = EXCLUDED.conflict_count,
		   requires_human_review = EXCLUDED.requires_human_review,
		   updated_at = now()
		 RETURNING updated_at`,
		m.ReportID, m.PrimarySource, m.ConfidenceLevel, m.ConsolidationStrategy,
		m.ConflictCount, m.RequiresHumanReview,
	).Scan(&m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert consolidation metadata: %w", err)
	}
	return nil
}

var entityTables = []string{
	"personal_information",
	"credit_accounts",
	"credit_inquiries",
	"negative_items",
	"collections",
}

// ReplaceEntities swaps a report's derived entities in one transaction:
// delete everything, insert the new set. Readers never see the two
// generations mixed.
func (s *Service) ReplaceEntities(ctx context.Context, reportID uuid.UUID, e *extract.Entities) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin entity replace: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range entityTables {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE report_id = $1", reportID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if p := e.Personal; p != nil {
		_, err := tx.Exec(ctx,
			`INSERT INTO personal_information (report_id, full_name, date_of_birth, ssn_last4, address, phone)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			reportID, p.FullName, p.DateOfBirth, p.SSNLast4, p.Address, p.Phone)
		if err != nil {
			return fmt.Errorf("insert personal information: %w", err)
		}
	}

	for _, a := range e.Accounts {
		_, err := tx.Exec(ctx,
			`INSERT INTO credit_accounts
			 (report_id, creditor_name, account_number, account_type, current_balance, credit_limit, status, opened_date, reported_date)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			reportID, a.CreditorName, a.AccountNumber, a.AccountType, a.Balance, a.CreditLimit, a.Status, a.OpenedDate, a.ReportedDate)
		if err != nil {
			return fmt.Errorf("insert credit account: %w", err)
		}
	}

	for _, inq := range e.Inquiries {
		_, err := tx.Exec(ctx,
			`INSERT INTO credit_inquiries (report_id, inquirer_name, inquiry_date, inquiry_type)
			 VALUES ($1, $2, $3, $4)`,
			reportID, inq.InquirerName, inq.InquiryDate, inq.InquiryType)
		if err != nil {
			return fmt.Errorf("insert credit inquiry: %w", err)
		}
	}

	for _, n := range e.NegativeItems {
		_, err := tx.Exec(ctx,
			`INSERT INTO negative_items (report_id, item_type, creditor_name, description, amount, severity, dispute_eligible)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			reportID, n.ItemType, n.CreditorName, n.Description, n.Amount, n.Severity, n.DisputeEligible)
		if err != nil {
			return fmt.Errorf("insert negative item: %w", err)
		}
	}

	for _, c := range e.Collections {
		_, err := tx.Exec(ctx,
			`INSERT INTO collections (report_id, agency_name, original_creditor, amount, status, dispute_eligible)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			reportID, c.AgencyName, c.OriginalCreditor, c.Amount, c.Status, c.DisputeEligible)
		if err != nil {
			return fmt.Errorf("insert collection: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// DeleteEntities clears a report's derived entities without writing a
// replacement, used when a reprocess run fails before parsing.
func (s *Service) DeleteEntities(ctx context.Context, reportID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin entity delete: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range entityTables {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE report_id = $1", reportID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit(ctx)
}

// GetEntities reads back the stored entity set for a report.
func (s *Service) GetEntities(ctx context.Context, reportID uuid.UUID) (*extract.Entities, error) {
	e := &extract.Entities{}

	var p models.PersonalInformation
	err := s.db.QueryRow(ctx,
		`SELECT id, report_id, full_name, date_of_birth, ssn_last4, address, phone, created_at
		 FROM personal_information WHERE report_id = $1`,
		reportID,
	).Scan(&p.ID, &p.ReportID, &p.FullName, &p.DateOfBirth, &p.SSNLast4, &p.Address, &p.Phone, &p.CreatedAt)
	if err == nil {
		e.Personal = &p
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, report_id, creditor_name, account_number, account_type, current_balance, credit_limit, status, opened_date, reported_date, created_at
		 FROM credit_accounts WHERE report_id = $1 ORDER BY creditor_name`,
		reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list credit accounts: %w", err)
	}
	for rows.Next() {
		var a models.CreditAccount
		if err := rows.Scan(&a.ID, &a.ReportID, &a.CreditorName, &a.AccountNumber, &a.AccountType,
			&a.Balance, &a.CreditLimit, &a.Status, &a.OpenedDate, &a.ReportedDate, &a.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan credit account: %w", err)
		}
		e.Accounts = append(e.Accounts, a)
	}
	rows.Close()

	rows, err = s.db.Query(ctx,
		`SELECT id, report_id, inquirer_name, inquiry_date, inquiry_type, created_at
		 FROM credit_inquiries WHERE report_id = $1 ORDER BY inquiry_date, inquirer_name`,
		reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list credit inquiries: %w", err)
	}
	for rows.Next() {
		var inq models.CreditInquiry
		if err := rows.Scan(&inq.ID, &inq.ReportID, &inq.InquirerName, &inq.InquiryDate, &inq.InquiryType, &inq.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan credit inquiry: %w", err)
		}
		e.Inquiries = append(e.Inquiries, inq)
	}
	rows.Close()

	rows, err = s.db.Query(ctx,
		`SELECT id, report_id, item_type, creditor_name, description, amount, severity, dispute_eligible, created_at
		 FROM negative_items WHERE report_id = $1 ORDER BY severity DESC, description`,
		reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list negative items: %w", err)
	}
	for rows.Next() {
		var n models.NegativeItem
		if err := rows.Scan(&n.ID, &n.ReportID, &n.ItemType, &n.CreditorName, &n.Description, &n.Amount,
			&n.Severity, &n.DisputeEligible, &n.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan negative item: %w", err)
		}
		e.NegativeItems = append(e.NegativeItems, n)
	}
	rows.Close()

	rows, err = s.db.Query(ctx,
		`SELECT id, report_id, agency_name, original_creditor, amount, status, dispute_eligible, created_at
		 FROM collections WHERE report_id = $1 ORDER BY agency_name`,
		reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	for rows.Next() {
		var c models.Collection
		if err := rows.Scan(&c.ID, &c.ReportID, &c.AgencyName, &c.OriginalCreditor, &c.Amount, &c.Status,
			&c.DisputeEligible, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		e.Collections = append(e.Collections, c)
	}
	rows.Close()

	return e, nil
}
