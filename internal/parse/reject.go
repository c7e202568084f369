package parse

import (
	"regexp"
	"strings"
)

// rejectRule is one named rejection predicate. Rules are evaluated in
// order and the first match wins; a match means the message produces no
// transaction.
type rejectRule struct {
	name    string
	matches func(body string) bool
}

var (
	failureRe = regexp.MustCompile(`(?i)\b(?:failed|insufficient funds|not successful|unsuccessful|could not be completed)\b`)

	// Product messages that credit free airtime/data or confirm opt-outs
	// look transactional but move no customer money.
	productNoticeRe = regexp.MustCompile(`(?i)(?:free (?:airtime|data|bundles)|bonus (?:airtime|data)|airtime reward|you have (?:been awarded|earned)|opted out|opt[- ]out confirmed|to stop receiving)`)

	promoRe = regexp.MustCompile(`(?i)(?:congratulations|winner|you (?:could |can )?win|promotion|special offer|% ?off|discount|t&c'?s? apply|dial \*[0-9]+)`)

	confirmedRe = regexp.MustCompile(`(?i)\bconfirmed\b`)

	bracketSegmentRe = regexp.MustCompile(`\[[^\[\]]+\]`)
	costSummaryRe    = regexp.MustCompile(`(?i)(?:total\s+)?(?:transaction\s+)?costs?\s*[:,]?\s*(?:KES|Kshs?)`)

	reminderRe = regexp.MustCompile(`(?i)(?:will expire|expires? on|expiry date|renew(?:al)?|reminder|is due on|due for renewal)`)
)

// buildRejectRules assembles the ordered rejection pipeline. The order is
// load-bearing: failure notices must win over everything, and the promo
// rule's strong-signal escape hatch depends on amount extraction.
func buildRejectRules(p *Parser) []rejectRule {
	return []rejectRule{
		{
			name:    "failure-notice",
			matches: failureRe.MatchString,
		},
		{
			name:    "product-notice",
			matches: productNoticeRe.MatchString,
		},
		{
			// Promotional phrasing alone is not disqualifying: a message
			// carrying a parsable amount plus an explicit direction keyword
			// or a "Confirmed" marker is still treated as transactional.
			name: "promotional",
			matches: func(body string) bool {
				if !promoRe.MatchString(body) {
					return false
				}
				if !p.hasAmount(body) {
					return true
				}
				if _, ok := extractDirection(body); ok {
					return false
				}
				return !confirmedRe.MatchString(body)
			},
		},
		{
			name:    "mini-statement",
			matches: isMiniStatement,
		},
		{
			name:    "informational-reminder",
			matches: reminderRe.MatchString,
		},
	}
}

// isMiniStatement detects messages bundling multiple transactions: two or
// more bracket-delimited segments plus a trailing transaction-cost summary
// line. These are not single, independently actionable records.
func isMiniStatement(body string) bool {
	if len(bracketSegmentRe.FindAllString(body, 3)) < 2 {
		return false
	}
	lines := strings.Split(body, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		return costSummaryRe.MatchString(line)
	}
	return false
}
