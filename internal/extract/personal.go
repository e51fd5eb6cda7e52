package extract

import (
	"regexp"
	"strings"

	"github.com/creditpipe/creditpipe/internal/models"
)

// personalField pairs a setter with the labels and anchored patterns that
// can populate it. Sources are tried in order and the first hit wins; a
// field no source can fill stays nil rather than defaulting.
type personalField struct {
	synonyms []string
	patterns []*regexp.Regexp
	assign   func(p *models.PersonalInformation, v string)
}

var personalFields = []personalField{
	{
		synonyms: []string{"name", "full name", "consumer name", "consumer"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)^\s*(?:consumer\s+)?name\s*:\s*([A-Za-z][A-Za-z .,'-]+?)\s*$`),
		},
		assign: func(p *models.PersonalInformation, v string) { p.FullName = strptr(v) },
	},
	{
		synonyms: []string{"date of birth", "dob", "birth date", "birthdate"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)^\s*(?:date of birth|dob)\s*:\s*(\d{1,2}/\d{1,2}/\d{2,4})\s*$`),
		},
		assign: func(p *models.PersonalInformation, v string) { p.DateOfBirth = strptr(v) },
	},
	{
		synonyms: []string{"ssn", "social security number", "social security"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)^\s*(?:ssn|social security(?: number)?)\s*:\s*([0-9Xx*-]{4,})\s*$`),
		},
		assign: func(p *models.PersonalInformation, v string) {
			if last4 := ssnLast4(v); last4 != "" {
				p.SSNLast4 = strptr(last4)
			}
		},
	},
	{
		synonyms: []string{"address", "current address", "mailing address", "residence"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)^\s*(?:current |mailing )?address\s*:\s*(\S.*?)\s*$`),
		},
		assign: func(p *models.PersonalInformation, v string) { p.Address = strptr(v) },
	},
	{
		synonyms: []string{"phone", "phone number", "telephone"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?im)^\s*(?:phone|telephone)(?: number)?\s*:\s*([\d() .-]{7,20})\s*$`),
		},
		assign: func(p *models.PersonalInformation, v string) { p.Phone = strptr(strings.TrimSpace(v)) },
	},
}

var ssnTail = regexp.MustCompile(`(\d{4})\s*$`)

// ssnLast4 keeps only the trailing four digits. Full SSNs are never
// stored, whatever the source document exposes.
func ssnLast4(v string) string {
	m := ssnTail.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return ""
	}
	return m[1]
}

func extractPersonal(text string) *models.PersonalInformation {
	kv := kvPairs(text)
	p := &models.PersonalInformation{}
	found := false
	for _, f := range personalFields {
		var val string
		for _, syn := range f.synonyms {
			if v := kv[syn]; v != "" {
				val = v
				break
			}
		}
		if val == "" {
			for _, re := range f.patterns {
				if m := re.FindStringSubmatch(text); m != nil {
					val = strings.TrimSpace(m[1])
					break
				}
			}
		}
		if val != "" {
			f.assign(p, val)
			found = true
		}
	}
	if !found {
		return nil
	}
	return p
}
