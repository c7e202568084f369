package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sheu-1/flow-sub001/internal/category"
	"github.com/sheu-1/flow-sub001/internal/dedup"
	"github.com/sheu-1/flow-sub001/internal/domain"
	"github.com/sheu-1/flow-sub001/internal/dupcheck"
	"github.com/sheu-1/flow-sub001/internal/parse"
	"github.com/sheu-1/flow-sub001/internal/watermark"
)

type fixture struct {
	session *Session
	marks   *watermark.Store

	inserted  []*domain.PersistedTransaction
	insertErr error

	dupRecords []domain.PersistedTransaction
	dupErr     error
}

func (f *fixture) Insert(ctx context.Context, tx *domain.PersistedTransaction) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.inserted = append(f.inserted, tx)
	return "tx-1", nil
}

func (f *fixture) FindByReference(ctx context.Context, userID, ref string) ([]domain.PersistedTransaction, error) {
	return f.dupRecords, f.dupErr
}

func (f *fixture) FindByAmountWindow(ctx context.Context, userID string, amount decimal.Decimal, from, to time.Time) ([]domain.PersistedTransaction, error) {
	return nil, f.dupErr
}

func (f *fixture) ListCategories(ctx context.Context, userID string) ([]domain.CategoryAssignment, error) {
	return []domain.CategoryAssignment{
		{ID: "cat-mm", Name: "Mobile Money", Direction: domain.DirectionCredit},
	}, nil
}

func (f *fixture) CreateCategory(ctx context.Context, userID string, c domain.CategoryAssignment) (string, error) {
	return "cat-new", nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	f.marks = openMarks(t)
	f.session = NewSession(Params{
		UserID:     "user-1",
		Guard:      dedup.NewGuard(5*time.Minute, nil),
		Parser:     parse.New(),
		Categories: category.NewResolver(f, time.Minute, nil, zerolog.Nop()),
		Duplicates: dupcheck.NewDetector(f, 5*time.Minute),
		Gateway:    f,
		Watermarks: f.marks,
		Log:        zerolog.Nop(),
	})
	return f
}

func openMarks(t *testing.T) *watermark.Store {
	t.Helper()
	marks, err := watermark.Open(filepath.Join(t.TempDir(), "watermarks.json"))
	if err != nil {
		t.Fatalf("watermark.Open: %v", err)
	}
	return marks
}

var capturedAt = time.Date(2025, 9, 12, 10, 0, 0, 0, time.UTC)

func creditMessage() domain.RawMessage {
	return domain.RawMessage{
		Body:       "M-PESA: You have received KES 1,250.00 from John Doe Ref ABC123",
		Originator: "MPESA",
		CapturedAt: capturedAt,
	}
}

func TestProcess_Inserted(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.session.Process(context.Background(), "listener", creditMessage())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != domain.OutcomeInserted {
		t.Fatalf("outcome = %q, want inserted", outcome)
	}
	if len(f.inserted) != 1 {
		t.Fatalf("inserted %d records, want 1", len(f.inserted))
	}

	rec := f.inserted[0]
	if rec.UserID != "user-1" {
		t.Errorf("UserID = %q", rec.UserID)
	}
	if !rec.Amount.Equal(decimal.NewFromInt(1250)) {
		t.Errorf("Amount = %s, want 1250", rec.Amount)
	}
	if rec.Description != "Received from John Doe" {
		t.Errorf("Description = %q", rec.Description)
	}
	if rec.CategoryID != "cat-mm" || rec.CategoryLabel != "Mobile Money" {
		t.Errorf("category = (%q, %q), want cat-mm/Mobile Money", rec.CategoryID, rec.CategoryLabel)
	}
	if rec.PaymentMethod != "M-PESA" {
		t.Errorf("PaymentMethod = %q", rec.PaymentMethod)
	}
	if rec.Metadata["source_adapter"] != "listener" || rec.Metadata["reference"] != "ABC123" {
		t.Errorf("Metadata = %v", rec.Metadata)
	}

	if got := f.marks.Get("user-1"); !got.Equal(capturedAt) {
		t.Errorf("watermark = %v, want %v", got, capturedAt)
	}
}

func TestProcess_SameMessageTwiceInsertsOnce(t *testing.T) {
	f := newFixture(t)
	msg := creditMessage()

	first, err := f.session.Process(context.Background(), "listener", msg)
	if err != nil || first != domain.OutcomeInserted {
		t.Fatalf("first Process = (%q, %v), want inserted", first, err)
	}

	second, err := f.session.Process(context.Background(), "poller", msg)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if second != domain.OutcomeDropped {
		t.Errorf("second outcome = %q, want dropped", second)
	}
	if len(f.inserted) != 1 {
		t.Errorf("inserted %d records, want exactly 1", len(f.inserted))
	}
}

func TestProcess_RejectedAdvancesWatermark(t *testing.T) {
	f := newFixture(t)
	msg := domain.RawMessage{
		Body:       "Your payment of KES 500.00 to KPLC failed due to insufficient funds.",
		CapturedAt: capturedAt,
	}

	outcome, err := f.session.Process(context.Background(), "listener", msg)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != domain.OutcomeRejected {
		t.Errorf("outcome = %q, want rejected", outcome)
	}
	if len(f.inserted) != 0 {
		t.Errorf("inserted %d records, want 0", len(f.inserted))
	}
	if got := f.marks.Get("user-1"); !got.Equal(capturedAt) {
		t.Errorf("watermark = %v, want %v (rejections still advance)", got, capturedAt)
	}
}

func TestProcess_RemoteDuplicateSkips(t *testing.T) {
	f := newFixture(t)
	f.dupRecords = []domain.PersistedTransaction{
		{Reference: "ABC123", Amount: decimal.NewFromInt(1250), Direction: domain.DirectionCredit},
	}

	outcome, err := f.session.Process(context.Background(), "listener", creditMessage())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != domain.OutcomeSkippedDuplicate {
		t.Errorf("outcome = %q, want skipped_duplicate", outcome)
	}
	if len(f.inserted) != 0 {
		t.Errorf("inserted %d records, want 0", len(f.inserted))
	}
	if got := f.marks.Get("user-1"); !got.Equal(capturedAt) {
		t.Errorf("watermark = %v, want %v (skips still advance)", got, capturedAt)
	}
}

func TestProcess_DuplicateLookupFailureWithholdsWatermark(t *testing.T) {
	f := newFixture(t)
	f.dupErr = errors.New("store unreachable")

	outcome, err := f.session.Process(context.Background(), "listener", creditMessage())
	if err == nil {
		t.Fatal("Process should report the lookup failure")
	}
	if outcome != domain.OutcomeFailed {
		t.Errorf("outcome = %q, want failed", outcome)
	}
	if len(f.inserted) != 0 {
		t.Errorf("inserted %d records, want 0 (no verdict, no insert)", len(f.inserted))
	}
	if !f.marks.Get("user-1").IsZero() {
		t.Error("watermark must be withheld so a later scan retries")
	}

	// The guard released the identity: once the store recovers, the same
	// message goes through.
	f.dupErr = nil
	outcome, err = f.session.Process(context.Background(), "poller", creditMessage())
	if err != nil || outcome != domain.OutcomeInserted {
		t.Errorf("retry Process = (%q, %v), want inserted", outcome, err)
	}
}

func TestProcess_InsertFailureAllowsRetry(t *testing.T) {
	f := newFixture(t)
	f.insertErr = errors.New("stream closed")

	outcome, err := f.session.Process(context.Background(), "listener", creditMessage())
	if err == nil {
		t.Fatal("Process should report the insert failure")
	}
	if outcome != domain.OutcomeFailed {
		t.Errorf("outcome = %q, want failed", outcome)
	}
	if !f.marks.Get("user-1").IsZero() {
		t.Error("watermark must be withheld after a failed insert")
	}

	f.insertErr = nil
	outcome, err = f.session.Process(context.Background(), "listener", creditMessage())
	if err != nil || outcome != domain.OutcomeInserted {
		t.Errorf("retry Process = (%q, %v), want inserted", outcome, err)
	}
	if len(f.inserted) != 1 {
		t.Errorf("inserted %d records, want 1", len(f.inserted))
	}
}

func TestProcess_ArchiveFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.session.archiver = failingArchiver{}

	outcome, err := f.session.Process(context.Background(), "listener", creditMessage())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if outcome != domain.OutcomeInserted {
		t.Errorf("outcome = %q, want inserted despite archive failure", outcome)
	}
}

type failingArchiver struct{}

func (failingArchiver) Archive(ctx context.Context, userID, identityHash string, msg domain.RawMessage) error {
	return errors.New("bucket unavailable")
}
