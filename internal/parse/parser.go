// Package parse turns raw provider message text into structured candidate
// transactions. Classification is a narrow, auditable rule set: rejection
// rules short-circuit in a fixed order, special-case extractors run before
// generic extraction, and every rule is independently testable.
package parse

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

// Parser classifies message bodies and extracts transactions. A Parser is
// immutable after construction and safe for concurrent use.
type Parser struct {
	amountRe    *regexp.Regexp
	feeRes      []*regexp.Regexp
	rejectRules []rejectRule
}

// DefaultCurrencyTokens are the currency spellings recognized in message
// bodies. Providers are inconsistent: "KES 1,250.00", "Ksh15", "Kshs. 200".
var DefaultCurrencyTokens = []string{"KES", "Kshs", "Ksh", "KSh"}

// New builds a parser recognizing the given currency tokens. An empty list
// falls back to DefaultCurrencyTokens.
func New(currencyTokens ...string) *Parser {
	if len(currencyTokens) == 0 {
		currencyTokens = DefaultCurrencyTokens
	}
	quoted := make([]string, len(currencyTokens))
	for i, tok := range currencyTokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	cur := `(?:` + strings.Join(quoted, "|") + `)`
	amt := `([0-9]{1,3}(?:,[0-9]{3})+(?:\.[0-9]{1,2})?|[0-9]+(?:\.[0-9]{1,2})?)`

	p := &Parser{
		amountRe: regexp.MustCompile(`(?i)` + cur + `\.?\s*` + amt),
		// Ordered short-term-credit fee extractors. Only the access fee of
		// a Fuliza message may ever become a transaction; if none of these
		// match, the whole message is discarded.
		feeRes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)access\s+fee\s+(?:of\s+|charged\s+)?` + cur + `\.?\s*` + amt),
			regexp.MustCompile(`(?i)` + cur + `\.?\s*` + amt + `\s+access\s+fee`),
			regexp.MustCompile(`(?i)fuliza(?:\s+m-pesa)?\s+(?:access\s+)?fee\s+(?:of\s+|charged\s+)?` + cur + `\.?\s*` + amt),
			regexp.MustCompile(`(?i)interest\s+(?:of\s+|charged\s+)?` + cur + `\.?\s*` + amt),
		},
	}
	p.rejectRules = buildRejectRules(p)
	return p
}

// Parse extracts a transaction from the body, or returns nil when the
// message is non-transactional. Parsing is deterministic: the same body
// always produces the same result. capturedAt stamps the transaction's
// occurrence time; a zero capturedAt falls back to fallbackNow.
func (p *Parser) Parse(body string, capturedAt, fallbackNow time.Time) *domain.ParsedTransaction {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}

	occurredAt := capturedAt
	if occurredAt.IsZero() {
		occurredAt = fallbackNow
	}

	for _, rule := range p.rejectRules {
		if rule.matches(body) {
			return nil
		}
	}

	if tx := p.parseAirtimeRecharge(body, occurredAt); tx != nil {
		return tx
	}
	if tx, handled := p.parseShortTermCredit(body, occurredAt); handled {
		return tx
	}

	return p.parseGeneric(body, occurredAt)
}

// parseGeneric runs the standard extraction path and applies the
// acceptance rule: a positive amount, an unambiguous direction, and
// either a reference code or a recognizable financial-service signature.
func (p *Parser) parseGeneric(body string, occurredAt time.Time) *domain.ParsedTransaction {
	amount, ok := p.extractAmount(body)
	if !ok || !amount.IsPositive() {
		return nil
	}

	dir, ok := extractDirection(body)
	if !ok {
		return nil
	}

	ref := extractReference(body)
	counterparty := extractCounterparty(body, dir)

	if ref == "" && !hasFinancialSignature(body, counterparty) {
		// No transaction code and nothing tying the text to a known
		// financial service: likely promotional noise that slipped past
		// the rejection rules.
		return nil
	}

	return &domain.ParsedTransaction{
		Amount:       amount,
		Direction:    dir,
		Counterparty: counterparty,
		Reference:    ref,
		CategoryHint: categoryHint(body, dir),
		RawText:      body,
		OccurredAt:   occurredAt,
	}
}

// extractAmount finds the first currency-token amount in the body.
func (p *Parser) extractAmount(body string) (decimal.Decimal, bool) {
	m := p.amountRe.FindStringSubmatch(body)
	if m == nil {
		return decimal.Decimal{}, false
	}
	return parseAmount(m[1])
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// hasAmount reports whether any parsable amount is present, without
// caring about its value. Used by the promotional-message rule to detect
// a strong transactional signal.
func (p *Parser) hasAmount(body string) bool {
	_, ok := p.extractAmount(body)
	return ok
}
