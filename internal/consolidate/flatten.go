// Package consolidate reconciles entities parsed from multiple extraction
// results of the same report into a single agreed view.
package consolidate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/creditpipe/creditpipe/internal/extract"
)

var keyClean = regexp.MustCompile(`[^a-z0-9]+`)

// normKey lowercases an identifier and collapses punctuation so the same
// creditor spelled with different spacing lands on one flat key.
func normKey(s string) string {
	return strings.Trim(keyClean.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Flatten projects entities onto dotted field keys with canonical string
// values, which is the shape field-level comparison works on. Absent
// fields produce no key at all; a stored zero produces "0.00". The two
// must never collapse into each other.
func Flatten(e *extract.Entities) map[string]string {
	flat := make(map[string]string)
	if e == nil {
		return flat
	}

	if p := e.Personal; p != nil {
		put := func(field string, v *string) {
			if v != nil && *v != "" {
				flat["personal."+field] = *v
			}
		}
		put("full_name", p.FullName)
		put("date_of_birth", p.DateOfBirth)
		put("ssn_last4", p.SSNLast4)
		put("address", p.Address)
		put("phone", p.Phone)
	}

	for _, a := range e.Accounts {
		prefix := "account." + normKey(a.CreditorName) + "."
		flat[prefix+"creditor_name"] = a.CreditorName
		flat[prefix+"account_type"] = a.AccountType
		if a.AccountNumber != nil {
			flat[prefix+"account_number"] = *a.AccountNumber
		}
		if a.Balance != nil {
			flat[prefix+"balance"] = money(*a.Balance)
		}
		if a.CreditLimit != nil {
			flat[prefix+"credit_limit"] = money(*a.CreditLimit)
		}
		if a.Status != nil {
			flat[prefix+"status"] = *a.Status
		}
		if a.OpenedDate != nil {
			flat[prefix+"opened_date"] = *a.OpenedDate
		}
		if a.ReportedDate != nil {
			flat[prefix+"reported_date"] = *a.ReportedDate
		}
	}

	for _, inq := range e.Inquiries {
		key := "inquiry." + normKey(inq.InquirerName) + "." + normKey(inq.InquiryDate)
		flat[key+".type"] = inq.InquiryType
	}

	for _, n := range e.NegativeItems {
		prefix := "negative." + n.ItemType + "." + normKey(n.Description) + "."
		flat[prefix+"severity"] = strconv.Itoa(n.Severity)
		if n.CreditorName != nil {
			flat[prefix+"creditor_name"] = *n.CreditorName
		}
		if n.Amount != nil {
			flat[prefix+"amount"] = money(*n.Amount)
		}
	}

	for _, c := range e.Collections {
		prefix := "collection." + normKey(c.AgencyName) + "."
		flat[prefix+"agency_name"] = c.AgencyName
		if c.OriginalCreditor != nil {
			flat[prefix+"original_creditor"] = *c.OriginalCreditor
		}
		if c.Amount != nil {
			flat[prefix+"amount"] = money(*c.Amount)
		}
		if c.Status != nil {
			flat[prefix+"status"] = *c.Status
		}
	}

	return flat
}
