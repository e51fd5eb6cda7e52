package models

import (
	"time"

	"github.com/google/uuid"
)

// Structured entities derived from one extraction pass. Each is owned by
// exactly one report and replaced wholesale whenever extraction or
// reconsolidation reruns. Unmatched fields stay nil, never placeholders.

type PersonalInformation struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ReportID    uuid.UUID `json:"report_id" db:"report_id"`
	FullName    *string   `json:"full_name,omitempty" db:"full_name"`
	DateOfBirth *string   `json:"date_of_birth,omitempty" db:"date_of_birth"`
	SSNLast4    *string   `json:"ssn_last4,omitempty" db:"ssn_last4"`
	Address     *string   `json:"address,omitempty" db:"address"`
	Phone       *string   `json:"phone,omitempty" db:"phone"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type CreditAccount struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ReportID      uuid.UUID `json:"report_id" db:"report_id"`
	CreditorName  string    `json:"creditor_name" db:"creditor_name"`
	AccountNumber *string   `json:"account_number,omitempty" db:"account_number"`
	AccountType   string    `json:"account_type" db:"account_type"`
	Balance       *float64  `json:"current_balance,omitempty" db:"current_balance"`
	CreditLimit   *float64  `json:"credit_limit,omitempty" db:"credit_limit"`
	Status        *string   `json:"status,omitempty" db:"status"`
	OpenedDate    *string   `json:"opened_date,omitempty" db:"opened_date"`
	ReportedDate  *string   `json:"reported_date,omitempty" db:"reported_date"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type CreditInquiry struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ReportID     uuid.UUID `json:"report_id" db:"report_id"`
	InquirerName string    `json:"inquirer_name" db:"inquirer_name"`
	InquiryDate  string    `json:"inquiry_date" db:"inquiry_date"`
	InquiryType  string    `json:"inquiry_type" db:"inquiry_type"` // hard, soft
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type NegativeItem struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ReportID        uuid.UUID `json:"report_id" db:"report_id"`
	ItemType        string    `json:"item_type" db:"item_type"`
	CreditorName    *string   `json:"creditor_name,omitempty" db:"creditor_name"`
	Description     string    `json:"description" db:"description"`
	Amount          *float64  `json:"amount,omitempty" db:"amount"`
	Severity        int       `json:"severity" db:"severity"`
	DisputeEligible bool      `json:"dispute_eligible" db:"dispute_eligible"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type Collection struct {
	ID               uuid.UUID `json:"id" db:"id"`
	ReportID         uuid.UUID `json:"report_id" db:"report_id"`
	AgencyName       string    `json:"agency_name" db:"agency_name"`
	OriginalCreditor *string   `json:"original_creditor,omitempty" db:"original_creditor"`
	Amount           *float64  `json:"amount,omitempty" db:"amount"`
	Status           *string   `json:"status,omitempty" db:"status"`
	DisputeEligible  bool      `json:"dispute_eligible" db:"dispute_eligible"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
