package extract

import (
	"regexp"
	"strings"

	"github.com/creditpipe/creditpipe/internal/models"
)

const (
	inquiryHard = "hard"
	inquirySoft = "soft"
)

type inquiryPattern struct {
	re    *regexp.Regexp
	build func(m []string) *models.CreditInquiry
}

var inquiryPatterns = []inquiryPattern{
	// "Inquiry: Chase Bank 01/15/2024 Hard" / "Chase Bank on 01/15/2024 soft"
	{
		re: regexp.MustCompile(`(?im)^\s*(?:(?:credit\s+)?inquir(?:y|ies)\s*:\s*)?([A-Z][A-Za-z0-9 .&'-]{2,40}?)\s+(?:inquiry\s+)?(?:on\s+)?(\d{1,2}/\d{1,2}/\d{2,4})\s+(hard|soft)\b`),
		build: func(m []string) *models.CreditInquiry {
			return &models.CreditInquiry{
				InquirerName: strings.TrimSpace(m[1]),
				InquiryDate:  m[2],
				InquiryType:  strings.ToLower(m[3]),
			}
		},
	},
	// "01/15/2024 Chase Bank Hard"
	{
		re: regexp.MustCompile(`(?im)^\s*(\d{1,2}/\d{1,2}/\d{2,4})\s+([A-Z][A-Za-z0-9 .&'-]{2,40}?)\s+(hard|soft)\b`),
		build: func(m []string) *models.CreditInquiry {
			return &models.CreditInquiry{
				InquirerName: strings.TrimSpace(m[2]),
				InquiryDate:  m[1],
				InquiryType:  strings.ToLower(m[3]),
			}
		},
	},
	// "Inquiry: Chase Bank 01/15/2024" with no type stated. Bureaus list
	// untyped entries in the hard section, so hard is the safer reading.
	{
		re: regexp.MustCompile(`(?im)^\s*(?:(?:credit\s+)?inquir(?:y|ies)\s*:\s*)?([A-Z][A-Za-z0-9 .&'-]{2,40}?)\s+(?:on\s+)?(\d{1,2}/\d{1,2}/\d{2,4})\s*$`),
		build: func(m []string) *models.CreditInquiry {
			return &models.CreditInquiry{
				InquirerName: strings.TrimSpace(m[1]),
				InquiryDate:  m[2],
				InquiryType:  inquiryHard,
			}
		},
	},
}

func extractInquiries(text string) []models.CreditInquiry {
	var inquiries []models.CreditInquiry
	seen := make(map[string]bool)
	for _, p := range inquiryPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			inq := p.build(m)
			key := strings.ToLower(inq.InquirerName) + "|" + inq.InquiryDate
			if seen[key] {
				continue
			}
			seen[key] = true
			inquiries = append(inquiries, *inq)
		}
	}
	return inquiries
}
