package extract

import (
	"regexp"
	"strings"

	"github.com/creditpipe/creditpipe/internal/models"
)

// negativeClass ranks a derogatory marker by how hard it hits a score.
// Severity runs 1-10; the order below also decides which class claims a
// line that mentions several markers.
type negativeClass struct {
	itemType string
	severity int
	re       *regexp.Regexp
}

var negativeClasses = []negativeClass{
	{"bankruptcy", 10, regexp.MustCompile(`(?i)\bbankruptcy\b|\bchapter\s+(7|11|13)\b`)},
	{"tax_lien", 8, regexp.MustCompile(`(?i)\btax\s+lien\b`)},
	{"judgment", 8, regexp.MustCompile(`(?i)\bjudgment\b|\bjudgement\b`)},
	{"charge_off", 7, regexp.MustCompile(`(?i)\bcharge[d]?[- ]?off\b`)},
	{"collection", 6, regexp.MustCompile(`(?i)\bcollection\b|\bplaced for collection\b`)},
	{"late_payment", 3, regexp.MustCompile(`(?i)\b(\d+)\s*days?\s+(?:past due|late)\b|\blate payment\b|\bdelinquen(t|cy)\b`)},
}

var (
	lineAmount       = regexp.MustCompile(`\$([\d,]+(?:\.\d{2})?)`)
	lineCreditor     = regexp.MustCompile(`(?i)(?:creditor|account)\s*:\s*([A-Z][A-Za-z0-9 .&'-]{2,40})`)
	collectionAgency = regexp.MustCompile(`(?im)^\s*(?:collection\s+agency|agency)\s*:\s*([A-Z][A-Za-z0-9 .&'-]{2,50}?)\s*$|([A-Z][A-Za-z0-9 .&'-]{2,40}(?:Recovery|Collections|Receivables|Portfolio|Asset Management))`)
	originalCreditor = regexp.MustCompile(`(?i)original\s+creditor\s*:\s*([A-Z][A-Za-z0-9 .&'-]{2,40})`)
	collectionAmount = regexp.MustCompile(`(?i)(?:amount|balance)\s*:?\s*\$([\d,]+(?:\.\d{2})?)`)
	collectionStatus = regexp.MustCompile(`(?i)status\s*:\s*([A-Za-z ]{2,30})`)
)

func extractNegativeItems(text string) []models.NegativeItem {
	var items []models.NegativeItem
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		for _, class := range negativeClasses {
			if !class.re.MatchString(trimmed) {
				continue
			}
			key := class.itemType + "|" + strings.ToLower(trimmed)
			if seen[key] {
				break
			}
			seen[key] = true

			item := models.NegativeItem{
				ItemType:        class.itemType,
				Description:     trimmed,
				Severity:        class.severity,
				DisputeEligible: true,
			}
			if m := lineCreditor.FindStringSubmatch(trimmed); m != nil {
				item.CreditorName = strptr(strings.TrimSpace(m[1]))
			}
			if m := lineAmount.FindStringSubmatch(trimmed); m != nil {
				if v, ok := parseAmount(m[1]); ok {
					item.Amount = f64ptr(v)
				}
			}
			items = append(items, item)
			break
		}
	}
	return items
}

func extractCollections(text string) []models.Collection {
	var collections []models.Collection
	seen := make(map[string]bool)
	for _, block := range blankLines.Split(text, -1) {
		if !strings.Contains(strings.ToLower(block), "collection") {
			continue
		}
		m := collectionAgency.FindStringSubmatch(block)
		if m == nil {
			continue
		}
		agency := strings.TrimSpace(m[1])
		if agency == "" {
			agency = strings.TrimSpace(m[2])
		}
		if agency == "" {
			continue
		}
		key := strings.ToLower(agency)
		if seen[key] {
			continue
		}
		seen[key] = true

		col := models.Collection{
			AgencyName:      agency,
			DisputeEligible: true,
		}
		if oc := originalCreditor.FindStringSubmatch(block); oc != nil {
			col.OriginalCreditor = strptr(strings.TrimSpace(oc[1]))
		}
		if am := collectionAmount.FindStringSubmatch(block); am != nil {
			if v, ok := parseAmount(am[1]); ok {
				col.Amount = f64ptr(v)
			}
		}
		if st := collectionStatus.FindStringSubmatch(block); st != nil {
			col.Status = strptr(strings.TrimSpace(st[1]))
		}
		collections = append(collections, col)
	}
	return collections
}
