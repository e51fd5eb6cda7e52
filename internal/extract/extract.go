// Package extract turns raw credit report text into typed candidate
// entities and drives the multi-backend extraction fallback chain.
package extract

import "github.com/creditpipe/creditpipe/internal/models"

// Entities is the set of candidate records parsed from one text blob.
// Every slice may be empty; Personal is nil when no identity field was
// readable at all.
type Entities struct {
	Personal      *models.PersonalInformation `json:"personal_information,omitempty"`
	Accounts      []models.CreditAccount      `json:"accounts"`
	Inquiries     []models.CreditInquiry      `json:"inquiries"`
	NegativeItems []models.NegativeItem       `json:"negative_items"`
	Collections   []models.Collection         `json:"collections"`
}

// Parse runs every section extractor over the text. Parsing is tolerant:
// a value that cannot be read is omitted, never defaulted, and a garbled
// section never fails the whole pass. Same text in, same entities out.
func Parse(text string) *Entities {
	return &Entities{
		Personal:      extractPersonal(text),
		Accounts:      extractAccounts(text),
		Inquiries:     extractInquiries(text),
		NegativeItems: extractNegativeItems(text),
		Collections:   extractCollections(text),
	}
}
