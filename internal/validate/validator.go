package validate

import "strings"

// Result classifies one extracted text blob.
type Result struct {
	Accepted bool
	Reason   string
}

const minTextLength = 100

// Raw PDF object syntax in the output means the backend returned the file
// structure instead of rendered text.
var pdfMarkers = []string{
	"endobj",
	"endstream",
	"startxref",
	"/FlateDecode",
	"/Type /Page",
	"xref",
}

var domainTerms = []string{
	"credit",
	"balance",
	"payment",
	"account",
	"ssn",
	"social security",
	"experian",
	"equifax",
	"transunion",
	"inquiry",
	"inquiries",
	"creditor",
	"date of birth",
	"tradeline",
	"collection",
	"charge-off",
	"credit limit",
	"credit score",
}

const minTermMatches = 5

// CreditReport decides whether text is plausibly the rendered content of a
// credit report. Pure function; the orchestrator gates every backend result
// through it before accepting.
func CreditReport(text string) Result {
	if len(text) < minTextLength {
		return Result{Reason: "text too short to be a credit report"}
	}

	for _, marker := range pdfMarkers {
		if strings.Contains(text, marker) {
			return Result{Reason: "output contains raw PDF syntax (" + marker + ")"}
		}
	}

	lower := strings.ToLower(text)
	matches := 0
	for _, term := range domainTerms {
		if strings.Contains(lower, term) {
			matches++
			if matches >= minTermMatches {
				return Result{Accepted: true}
			}
		}
	}

	return Result{Reason: "too few credit report terms found"}
}
