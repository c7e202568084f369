package parse

import (
	"regexp"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

// The category taxonomy the keyword mapper resolves into. Kept as plain
// names: the category resolver matches them case-insensitively against
// the persisted categories and creates missing ones.
const (
	categorySalary      = "Salary"
	categoryMobileMoney = "Mobile Money"
	categoryAirtime     = "Airtime & Data"
	categoryWithdrawal  = "Cash Withdrawal"
	categoryBills       = "Bills & Utilities"
	categoryFood        = "Food & Dining"
	categoryTransport   = "Transport"
	categoryShopping    = "Shopping"
	categoryHealthcare  = "Healthcare"
	categoryOtherIncome = "Other Income"
	categoryOther       = "Other"
)

// categoryKeywords maps body keywords to taxonomy names, most specific
// first. The first matching entry wins.
var categoryKeywords = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)\b(?:salary|payroll|wages)\b`), categorySalary},
	{regexp.MustCompile(`(?i)\b(?:airtime|data bundle|bundles)\b`), categoryAirtime},
	{regexp.MustCompile(`(?i)\bwithdraw(?:n|al)?\b`), categoryWithdrawal},
	{regexp.MustCompile(`(?i)\b(?:bill|electricity|kplc|water|dstv|gotv|wifi|rent|token)\b`), categoryBills},
	{regexp.MustCompile(`(?i)\b(?:restaurant|cafe|hotel|food|butchery|grocer)\b`), categoryFood},
	{regexp.MustCompile(`(?i)\b(?:matatu|fare|uber|bolt|little|fuel|petrol|parking)\b`), categoryTransport},
	{regexp.MustCompile(`(?i)\b(?:supermarket|shop|store|mall|boutique)\b`), categoryShopping},
	{regexp.MustCompile(`(?i)\b(?:hospital|clinic|pharmacy|chemist|medical)\b`), categoryHealthcare},
	{regexp.MustCompile(`(?i)\b(?:paybill|till|pochi|m-pesa|mpesa|airtel money|t-kash)\b`), categoryMobileMoney},
}

// categoryHint maps the body onto the taxonomy, falling back to a
// direction-aware default.
func categoryHint(body string, dir domain.Direction) string {
	for _, entry := range categoryKeywords {
		if entry.re.MatchString(body) {
			return entry.name
		}
	}
	if dir == domain.DirectionCredit {
		return categoryOtherIncome
	}
	return categoryOther
}
