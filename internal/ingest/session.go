// Package ingest wires the parsing, deduplication, category, and
// persistence pieces into the per-message pipeline. All process-wide
// mutable state (dedup guard, category cache, watermarks) hangs off an
// explicit Session constructed by the composition root, with an
// injectable clock, so TTL behavior is testable and multiple sessions
// could coexist.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sheu-1/flow-sub001/internal/category"
	"github.com/sheu-1/flow-sub001/internal/dedup"
	"github.com/sheu-1/flow-sub001/internal/domain"
	"github.com/sheu-1/flow-sub001/internal/dupcheck"
	"github.com/sheu-1/flow-sub001/internal/identity"
	"github.com/sheu-1/flow-sub001/internal/parse"
	"github.com/sheu-1/flow-sub001/internal/watermark"
)

// Gateway is the insert half of the persistence gateway. The store is not
// assumed to enforce uniqueness; all duplicate prevention happens before
// Insert is called.
type Gateway interface {
	Insert(ctx context.Context, tx *domain.PersistedTransaction) (string, error)
}

// Archiver keeps an audit copy of raw captures. Optional; failures are
// logged and ignored.
type Archiver interface {
	Archive(ctx context.Context, userID, identityHash string, msg domain.RawMessage) error
}

// Session is the ingestion orchestrator for one user account.
type Session struct {
	userID     string
	guard      *dedup.Guard
	parser     *parse.Parser
	categories *category.Resolver
	dupes      *dupcheck.Detector
	gateway    Gateway
	marks      *watermark.Store
	archiver   Archiver
	log        zerolog.Logger
	now        func() time.Time
}

// Params collects the session's collaborators. Archiver and Now are
// optional.
type Params struct {
	UserID     string
	Guard      *dedup.Guard
	Parser     *parse.Parser
	Categories *category.Resolver
	Duplicates *dupcheck.Detector
	Gateway    Gateway
	Watermarks *watermark.Store
	Archiver   Archiver
	Log        zerolog.Logger
	Now        func() time.Time
}

// NewSession constructs the orchestrator.
func NewSession(p Params) *Session {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		userID:     p.UserID,
		guard:      p.Guard,
		parser:     p.Parser,
		categories: p.Categories,
		dupes:      p.Duplicates,
		gateway:    p.Gateway,
		marks:      p.Watermarks,
		archiver:   p.Archiver,
		log:        p.Log,
		now:        now,
	}
}

// Process runs one raw message through the pipeline and returns its
// terminal outcome. The error is non-nil only for OutcomeFailed; every
// other outcome, including duplicates and rejections, is a normal result.
// Failures are isolated per message: the caller keeps feeding the rest of
// its batch regardless of what Process returns.
func (s *Session) Process(ctx context.Context, adapterName string, msg domain.RawMessage) (domain.Outcome, error) {
	id := identity.Compute(s.userID, msg)
	log := s.log.With().
		Str("adapter", adapterName).
		Str("identity", shortID(id)).
		Logger()

	if !s.guard.Begin(id) {
		log.Debug().Msg("duplicate in flight or recently completed, dropping")
		return domain.OutcomeDropped, nil
	}

	outcome, err := s.run(ctx, log, id, adapterName, msg)
	if outcome == domain.OutcomeFailed {
		// Release instead of Finish so the next scan can retry without
		// waiting out the guard TTL.
		s.guard.Release(id)
	} else {
		s.guard.Finish(id)
	}
	return outcome, err
}

func (s *Session) run(ctx context.Context, log zerolog.Logger, id, adapterName string, msg domain.RawMessage) (domain.Outcome, error) {
	tx := s.parser.Parse(msg.Body, msg.CapturedAt, s.now())
	if tx == nil {
		// Rejected messages still advance the watermark when they carry a
		// usable timestamp, so scans stop re-reading them.
		s.advance(log, msg.CapturedAt)
		log.Debug().Msg("parser rejected message")
		return domain.OutcomeRejected, nil
	}

	if !tx.Amount.IsPositive() || !tx.Direction.Valid() {
		s.advance(log, msg.CapturedAt)
		log.Warn().Str("amount", tx.Amount.String()).Str("direction", string(tx.Direction)).
			Msg("parsed transaction failed validation")
		return domain.OutcomeRejected, nil
	}

	assignment := s.categories.Resolve(ctx, s.userID, tx.CategoryHint, tx.Direction)

	dup, err := s.dupes.IsDuplicate(ctx, s.userID, tx)
	if err != nil {
		// Inserting without a duplicate verdict risks a double record, so
		// the message fails and the watermark is withheld for a retry.
		log.Error().Err(err).Msg("remote duplicate lookup failed")
		return domain.OutcomeFailed, fmt.Errorf("Process: duplicate lookup: %w", err)
	}
	if dup {
		s.advance(log, tx.OccurredAt)
		log.Info().Str("reference", tx.Reference).Msg("duplicate already persisted, skipping")
		return domain.OutcomeSkippedDuplicate, nil
	}

	record := s.buildRecord(tx, assignment, adapterName, id)
	insertedID, err := s.gateway.Insert(ctx, record)
	if err != nil {
		log.Error().Err(err).Msg("insert failed, watermark withheld")
		return domain.OutcomeFailed, fmt.Errorf("Process: insert: %w", err)
	}

	s.advance(log, tx.OccurredAt)
	s.archive(ctx, log, id, msg)

	log.Info().
		Str("transaction_id", insertedID).
		Str("amount", tx.Amount.String()).
		Str("direction", string(tx.Direction)).
		Str("outcome", string(domain.OutcomeInserted)).
		Msg("transaction persisted")
	return domain.OutcomeInserted, nil
}

func (s *Session) buildRecord(tx *domain.ParsedTransaction, assignment category.Assignment, adapterName, id string) *domain.PersistedTransaction {
	return &domain.PersistedTransaction{
		UserID:        s.userID,
		Amount:        tx.Amount,
		Direction:     tx.Direction,
		Counterparty:  tx.Counterparty,
		Reference:     tx.Reference,
		Description:   tx.Describe(),
		RawText:       tx.RawText,
		CategoryID:    assignment.ID,
		CategoryLabel: assignment.Label,
		PaymentMethod: parse.GuessPaymentMethod(tx.RawText),
		Tags:          []string{"ingested"},
		Metadata: map[string]string{
			"source_adapter": adapterName,
			"identity":       id,
			"reference":      tx.Reference,
		},
		OccurredAt: tx.OccurredAt,
		InsertedAt: s.now(),
	}
}

// advance moves the watermark forward; a persistence error here is logged
// but does not change the message's outcome.
func (s *Session) advance(log zerolog.Logger, ts time.Time) {
	if ts.IsZero() {
		return
	}
	if err := s.marks.Advance(s.userID, ts); err != nil {
		log.Warn().Err(err).Msg("watermark advance failed")
	}
}

func (s *Session) archive(ctx context.Context, log zerolog.Logger, id string, msg domain.RawMessage) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, s.userID, id, msg); err != nil {
		log.Warn().Err(err).Msg("raw capture archive failed")
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
