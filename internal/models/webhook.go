package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Webhook is a subscriber to report lifecycle events.
type Webhook struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	URL       string          `json:"url" db:"url"`
	Events    json.RawMessage `json:"events" db:"events"`
	Secret    string          `json:"-" db:"secret"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

const (
	EventReportCompleted      = "report.completed"
	EventReportFailed         = "report.failed"
	EventConsolidationUpdated = "consolidation.updated"
)
