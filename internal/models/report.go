package models

import (
	"time"

	"github.com/google/uuid"
)

// Report is one uploaded credit report PDF under analysis.
type Report struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	OwnerID          *uuid.UUID `json:"owner_id,omitempty" db:"owner_id"`
	Bureau           string     `json:"bureau" db:"bureau"`
	FilePath         string     `json:"file_path,omitempty" db:"file_path"`
	RawText          *string    `json:"raw_text,omitempty" db:"raw_text"`
	ExtractionStatus string     `json:"extraction_status" db:"extraction_status"`
	ProcessingErrors *string    `json:"processing_errors,omitempty" db:"processing_errors"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ExtractionResult is one backend's attempt at extracting a report.
// Rows are immutable once written; retries add new rows.
type ExtractionResult struct {
	ID                uuid.UUID          `json:"id" db:"id"`
	ReportID          uuid.UUID          `json:"report_id" db:"report_id"`
	ExtractionMethod  string             `json:"extraction_method" db:"extraction_method"`
	ExtractedText     string             `json:"extracted_text,omitempty" db:"extracted_text"`
	ConfidenceScore   float64            `json:"confidence_score" db:"confidence_score"`
	CharacterCount    int                `json:"character_count" db:"character_count"`
	WordCount         int                `json:"word_count" db:"word_count"`
	HasStructuredData bool               `json:"has_structured_data" db:"has_structured_data"`
	ProcessingTimeMs  int64              `json:"processing_time_ms" db:"processing_time_ms"`
	Metadata          ExtractionMetadata `json:"extraction_metadata" db:"extraction_metadata"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
}

// ExtractionMetadata carries attempt provenance, at minimum the failure
// reason for attempts that produced no usable text.
type ExtractionMetadata struct {
	ErrorMessage string `json:"error_message,omitempty"`
	Rejected     bool   `json:"rejected,omitempty"`
	RejectReason string `json:"reject_reason,omitempty"`
}

// ConsolidationMetadata is the reconciliation outcome for a report,
// replaced wholesale on every recompute.
type ConsolidationMetadata struct {
	ReportID              uuid.UUID `json:"report_id" db:"report_id"`
	PrimarySource         string    `json:"primary_source" db:"primary_source"`
	ConfidenceLevel       float64   `json:"confidence_level" db:"confidence_level"`
	ConsolidationStrategy string    `json:"consolidation_strategy" db:"consolidation_strategy"`
	ConflictCount         int       `json:"conflict_count" db:"conflict_count"`
	RequiresHumanReview   bool      `json:"requires_human_review" db:"requires_human_review"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

const (
	StrategyHighestConfidence = "highest_confidence"
	StrategyMajorityVote      = "majority_vote"
	StrategyManualReview      = "manual_review"
)

// ValidStrategy reports whether s names a known consolidation strategy.
func ValidStrategy(s string) bool {
	switch s {
	case StrategyHighestConfidence, StrategyMajorityVote, StrategyManualReview:
		return true
	}
	return false
}
