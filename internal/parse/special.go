package parse

import (
	"regexp"
	"time"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

// Counterparty labels assigned by the special-case extractors.
const (
	airtimeCounterparty = "Airtime Recharge"
	fulizaCounterparty  = "Fuliza Fee"
)

var (
	airtimeRe = regexp.MustCompile(`(?i)(?:you (?:have )?bought\s+(?:\S+\s+)*?airtime|airtime (?:purchase|recharge)|recharge (?:of|was)?\s*successful)`)
	fulizaRe  = regexp.MustCompile(`(?i)\bfuliza\b`)
)

// parseAirtimeRecharge classifies airtime/recharge success messages as a
// debit with a fixed counterparty label. Returns nil when the message is
// not an airtime purchase, so generic parsing proceeds.
func (p *Parser) parseAirtimeRecharge(body string, occurredAt time.Time) *domain.ParsedTransaction {
	if !airtimeRe.MatchString(body) {
		return nil
	}
	amount, ok := p.extractAmount(body)
	if !ok || !amount.IsPositive() {
		return nil
	}
	return &domain.ParsedTransaction{
		Amount:       amount,
		Direction:    domain.DirectionDebit,
		Counterparty: airtimeCounterparty,
		Reference:    extractReference(body),
		CategoryHint: categoryAirtime,
		RawText:      body,
		OccurredAt:   occurredAt,
	}
}

// parseShortTermCredit handles Fuliza (overdraft-style) messages. Only the
// access fee is ever turned into a transaction; the borrowed principal must
// never appear in output. The ordered fee extractors are tried in turn and
// if none match the entire message is discarded, even though it clearly
// references money movement.
//
// handled is true whenever the message mentions the product, so the caller
// never falls through to generic parsing (which would pick up the principal).
func (p *Parser) parseShortTermCredit(body string, occurredAt time.Time) (tx *domain.ParsedTransaction, handled bool) {
	if !fulizaRe.MatchString(body) {
		return nil, false
	}
	for _, re := range p.feeRes {
		m := re.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		amount, ok := parseAmount(m[1])
		if !ok || !amount.IsPositive() {
			continue
		}
		return &domain.ParsedTransaction{
			Amount:       amount,
			Direction:    domain.DirectionDebit,
			Counterparty: fulizaCounterparty,
			Reference:    extractReference(body),
			CategoryHint: categoryMobileMoney,
			RawText:      body,
			OccurredAt:   occurredAt,
		}, true
	}
	return nil, true
}
