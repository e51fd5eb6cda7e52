package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	reAmount = regexp.MustCompile(`\$\s?\d{1,3}(,\d{3})*(\.\d{2})?\b|\b\d+\.\d{2}\b`)
	reSSN    = regexp.MustCompile(`\b(\d{3}|[Xx*]{3})-(\d{2}|[Xx*]{2})-\d{4}\b`)
	reBureau = regexp.MustCompile(`(?i)\b(experian|equifax|transunion)\b`)
)

// heuristicConfidence estimates extraction quality from decoded text
// characteristics for backends that report none. Each credit-report
// artifact class found bumps the score off a low base.
func heuristicConfidence(text string) float64 {
	score := 0.2
	if reDate.MatchString(text) {
		score += 0.15
	}
	if reAmount.MatchString(text) {
		score += 0.15
	}
	if reSSN.MatchString(text) {
		score += 0.15
	}
	if reBureau.MatchString(text) {
		score += 0.15
	}
	if strings.Contains(strings.ToLower(text), "account") {
		score += 0.1
	}
	if len(text) > 500 {
		score += 0.1
	}
	if score > 0.95 {
		score = 0.95
	}
	return score
}
