package extract

import (
	"regexp"
	"strings"

	"github.com/creditpipe/creditpipe/internal/models"
)

// creditorKeywords gates inline creditor captures. Free-text capture groups
// are greedy, so a candidate that names no plausible lender is discarded
// instead of becoming a phantom account.
var creditorKeywords = []string{
	"bank", "card", "credit union", "capital", "chase", "citi", "discover",
	"american express", "amex", "express", "financial", "one", "loan",
	"auto", "mortgage", "platinum", "services", "lending", "funding",
	"wells", "usaa", "synchrony", "navy federal", "barclays", "pnc",
}

func looksLikeCreditor(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range creditorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// accountPattern couples a line shape with the builder that turns its
// captures into an account, so adding a shape never touches shared code.
type accountPattern struct {
	re    *regexp.Regexp
	build func(m []string) *models.CreditAccount
}

var accountPatterns = []accountPattern{
	// "Capital One - Account #: 1234" / "Chase Bank Acct No 4321"
	{
		re: regexp.MustCompile(`(?im)^\s*([A-Z][A-Za-z0-9 .&'-]{2,50}?)\s*[-–]?\s*(?:account|acct)\.?\s*(?:#|number|no\.?)?\s*[:\s]\s*([0-9Xx*]{4,20})\s*$`),
		build: func(m []string) *models.CreditAccount {
			creditor := strings.TrimSpace(m[1])
			if !looksLikeCreditor(creditor) {
				return nil
			}
			return &models.CreditAccount{
				CreditorName:  creditor,
				AccountNumber: strptr(strings.TrimSpace(m[2])),
			}
		},
	},
	// "Current Balance: $1,250.00 Capital One Platinum"
	{
		re: regexp.MustCompile(`(?i)(?:current\s+)?balance\s*:?\s*\$?([\d,]+(?:\.\d{1,2})?)\s+([A-Z][A-Za-z0-9 .&'-]{2,50})`),
		build: func(m []string) *models.CreditAccount {
			creditor := strings.TrimSpace(m[2])
			if !looksLikeCreditor(creditor) {
				return nil
			}
			acct := &models.CreditAccount{CreditorName: creditor}
			if v, ok := parseAmount(m[1]); ok {
				acct.Balance = f64ptr(v)
			}
			return acct
		},
	},
	// "Capital One Balance: $1,250.00"
	{
		re: regexp.MustCompile(`(?im)^\s*([A-Z][A-Za-z0-9 .&'-]{2,50}?)\s+(?:current\s+)?balance\s*:?\s*\$?([\d,]+(?:\.\d{1,2})?)\s*$`),
		build: func(m []string) *models.CreditAccount {
			creditor := strings.TrimSpace(m[1])
			if !looksLikeCreditor(creditor) {
				return nil
			}
			acct := &models.CreditAccount{CreditorName: creditor}
			if v, ok := parseAmount(m[2]); ok {
				acct.Balance = f64ptr(v)
			}
			return acct
		},
	},
}

var accountFieldMappings = []fieldMapping{
	{canonical: "creditor_name", synonyms: []string{"creditor", "creditor name", "company", "lender", "account name"}},
	{canonical: "account_number", synonyms: []string{"account number", "account #", "account no", "acct", "acct #"}},
	{canonical: "balance", synonyms: []string{"current balance", "balance", "balance owed", "amount owed"}},
	{canonical: "credit_limit", synonyms: []string{"credit limit", "limit", "high credit", "high balance"}},
	{canonical: "status", synonyms: []string{"status", "account status", "payment status"}},
	{canonical: "opened_date", synonyms: []string{"date opened", "opened", "open date"}},
	{canonical: "reported_date", synonyms: []string{"date reported", "reported", "last reported"}},
}

var blankLines = regexp.MustCompile(`\n\s*\n`)

func inferAccountType(creditor string) string {
	lower := strings.ToLower(creditor)
	switch {
	case strings.Contains(lower, "auto"):
		return "Auto Loan"
	case strings.Contains(lower, "mortgage"), strings.Contains(lower, "home"):
		return "Mortgage"
	case strings.Contains(lower, "student"):
		return "Student Loan"
	case strings.Contains(lower, "personal"):
		return "Personal Loan"
	default:
		return "Revolving Credit"
	}
}

func extractAccounts(text string) []models.CreditAccount {
	var accounts []models.CreditAccount
	seen := make(map[string]int)

	add := func(acct *models.CreditAccount) {
		if acct == nil || acct.CreditorName == "" {
			return
		}
		key := strings.ToLower(acct.CreditorName)
		if acct.AccountNumber != nil {
			key += "|" + *acct.AccountNumber
		}
		if i, dup := seen[key]; dup {
			mergeAccount(&accounts[i], acct)
			return
		}
		if acct.AccountType == "" {
			acct.AccountType = inferAccountType(acct.CreditorName)
		}
		seen[key] = len(accounts)
		accounts = append(accounts, *acct)
	}

	// Labeled blocks first, line shapes second, so richer records claim
	// the dedupe slot before sparser inline matches.
	for _, block := range blankLines.Split(text, -1) {
		add(accountFromBlock(block))
	}
	for _, p := range accountPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			add(p.build(m))
		}
	}
	return accounts
}

func accountFromBlock(block string) *models.CreditAccount {
	mapped := mapFields(kvPairs(block), accountFieldMappings)
	creditor := mapped["creditor_name"]
	if creditor == "" {
		return nil
	}
	acct := &models.CreditAccount{CreditorName: creditor}
	if v := mapped["account_number"]; v != "" {
		acct.AccountNumber = strptr(v)
	}
	if v, ok := parseAmount(mapped["balance"]); ok {
		acct.Balance = f64ptr(v)
	}
	if v, ok := parseAmount(mapped["credit_limit"]); ok {
		acct.CreditLimit = f64ptr(v)
	}
	if v := mapped["status"]; v != "" {
		acct.Status = strptr(v)
	}
	if v := mapped["opened_date"]; v != "" {
		acct.OpenedDate = strptr(v)
	}
	if v := mapped["reported_date"]; v != "" {
		acct.ReportedDate = strptr(v)
	}
	return acct
}

// mergeAccount fills gaps in an already-seen account; existing values are
// never overwritten because earlier sources ranked higher.
func mergeAccount(dst *models.CreditAccount, src *models.CreditAccount) {
	if dst.AccountNumber == nil {
		dst.AccountNumber = src.AccountNumber
	}
	if dst.Balance == nil {
		dst.Balance = src.Balance
	}
	if dst.CreditLimit == nil {
		dst.CreditLimit = src.CreditLimit
	}
	if dst.Status == nil {
		dst.Status = src.Status
	}
	if dst.OpenedDate == nil {
		dst.OpenedDate = src.OpenedDate
	}
	if dst.ReportedDate == nil {
		dst.ReportedDate = src.ReportedDate
	}
}
