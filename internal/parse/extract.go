package parse

import (
	"regexp"
	"strings"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

var (
	creditKeywordRe = regexp.MustCompile(`(?i)\b(?:received|credited|deposited|refunded|reversed to you|paid in)\b`)
	debitKeywordRe  = regexp.MustCompile(`(?i)\b(?:sent to|paid to|made to|payment of|you bought|purchased|withdraw(?:n|al)?|debited|transferred to|you gave)\b`)

	labelledRefRe = regexp.MustCompile(`(?i)\b(?:ref(?:erence)?(?:\s+no\.?)?|transaction id|code|receipt(?:\s+no\.?)?)(?:\s*[:.]\s*|\s+)#?([A-Za-z0-9][A-Za-z0-9-]{2,})\b`)
	leadingRefRe  = regexp.MustCompile(`(?i)^\s*([A-Z0-9]{6,12})\s+confirmed\b`)

	prepositionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bfrom\s+([A-Za-z][A-Za-z0-9 &'-]*)`),
		regexp.MustCompile(`(?i)\bby\s+([A-Za-z][A-Za-z0-9 &'-]*)`),
		regexp.MustCompile(`(?i)\bto\s+([A-Za-z][A-Za-z0-9 &'-]*)`),
	}

	bankNameRe = regexp.MustCompile(`\b([A-Z][A-Za-z&]+(?:\s+[A-Z][A-Za-z&]+)?\s+Bank)\b`)
	bankWordRe = regexp.MustCompile(`(?i)\bbank\b`)
)

// knownBrands are e-money service names whose presence is a recognized
// financial-service signature. Order matters: longer names first so
// "KCB M-PESA" is not swallowed by "M-PESA".
var knownBrands = []string{
	"KCB M-PESA",
	"Airtel Money",
	"M-Shwari",
	"M-PESA",
	"MPESA",
	"T-Kash",
	"Equitel",
	"Fuliza",
}

// nameStopWords terminate a preposition-captured counterparty. Captures
// run greedily across spaces, so trailing tokens like "Ref ABC123" or
// "on 12/09" must be cut off word-wise.
var nameStopWords = map[string]bool{
	"on": true, "ref": true, "reference": true, "via": true, "at": true,
	"for": true, "new": true, "account": true, "confirmed": true,
	"transaction": true, "code": true, "receipt": true, "your": true,
	"balance": true,
}

// extractDirection resolves the transaction direction from the two keyword
// sets. An exclusive match wins outright. When both sets match, the
// keyword appearing earliest in the text wins, with credit breaking ties;
// this is a documented heuristic, not a guarantee.
func extractDirection(body string) (domain.Direction, bool) {
	ci := matchIndex(creditKeywordRe, body)
	di := matchIndex(debitKeywordRe, body)
	switch {
	case ci < 0 && di < 0:
		return "", false
	case di < 0:
		return domain.DirectionCredit, true
	case ci < 0:
		return domain.DirectionDebit, true
	case ci <= di:
		return domain.DirectionCredit, true
	default:
		return domain.DirectionDebit, true
	}
}

func matchIndex(re *regexp.Regexp, body string) int {
	loc := re.FindStringIndex(body)
	if loc == nil {
		return -1
	}
	return loc[0]
}

// extractReference pulls a provider-issued transaction code. Labelled
// patterns win; the fallback treats a leading alphanumeric token
// immediately followed by "Confirmed" as the code, which is how several
// e-money providers open their receipts.
func extractReference(body string) string {
	if m := labelledRefRe.FindStringSubmatch(body); m != nil {
		return strings.ToUpper(m[1])
	}
	if m := leadingRefRe.FindStringSubmatch(body); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// extractCounterparty captures the other party of the transaction.
// Preposition-based capture runs in direction-aware order (from/by before
// to for credits, the reverse for debits), then falls back to a recognized
// e-money brand or a "<Name> Bank" pattern.
func extractCounterparty(body string, dir domain.Direction) string {
	order := prepositionRes
	if dir == domain.DirectionDebit {
		order = []*regexp.Regexp{prepositionRes[2], prepositionRes[0], prepositionRes[1]}
	}
	for _, re := range order {
		if m := re.FindStringSubmatch(body); m != nil {
			if name := trimName(m[1]); name != "" {
				return name
			}
		}
	}
	if brand := matchBrand(body); brand != "" {
		return brand
	}
	if m := bankNameRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

// trimName cuts a greedy preposition capture at the first stop word and
// rejects leftovers that are not a plausible name.
func trimName(raw string) string {
	words := strings.Fields(raw)
	var kept []string
	for _, w := range words {
		if nameStopWords[strings.ToLower(w)] {
			break
		}
		kept = append(kept, w)
	}
	name := strings.Join(kept, " ")
	name = strings.Trim(name, "'- ")
	if name == "" || !strings.ContainsFunc(name, isLetter) {
		return ""
	}
	return name
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func matchBrand(body string) string {
	lower := strings.ToLower(body)
	for _, brand := range knownBrands {
		if strings.Contains(lower, strings.ToLower(brand)) {
			return brand
		}
	}
	return ""
}

// hasFinancialSignature reports whether the message carries a recognizable
// financial-service signature: a known e-money brand, a bank keyword, or a
// counterparty matching one of those.
func hasFinancialSignature(body, counterparty string) bool {
	if matchBrand(body) != "" || bankWordRe.MatchString(body) {
		return true
	}
	if counterparty == "" {
		return false
	}
	return matchBrand(counterparty) != "" || bankWordRe.MatchString(counterparty)
}

// GuessPaymentMethod derives a best-effort payment method label from the
// message text for the persisted record. It is a guess, never validated.
func GuessPaymentMethod(body string) string {
	if brand := matchBrand(body); brand != "" {
		return brand
	}
	if bankWordRe.MatchString(body) {
		return "Bank"
	}
	return "Other"
}
