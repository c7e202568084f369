package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Background is the coarse catch-up adapter the OS scheduler triggers
// while the app is not active. It performs the same watermark-bounded
// scan as the poller but refuses to run more often than minInterval.
type Background struct {
	userID      string
	inbox       Inbox
	sink        Sink
	marks       Watermarks
	minInterval time.Duration
	batch       int
	log         zerolog.Logger
	now         func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

// NewBackground creates the scheduler-triggered adapter. now is
// injectable for tests; pass nil for time.Now.
func NewBackground(userID string, inbox Inbox, sink Sink, marks Watermarks, minInterval time.Duration, batch int, log zerolog.Logger, now func() time.Time) *Background {
	if now == nil {
		now = time.Now
	}
	return &Background{
		userID:      userID,
		inbox:       inbox,
		sink:        sink,
		marks:       marks,
		minInterval: minInterval,
		batch:       batch,
		log:         log,
		now:         now,
	}
}

// Name implements Adapter.
func (b *Background) Name() string { return "background" }

// Run approximates the OS scheduler when the daemon hosts the adapter
// itself: it fires RunOnce every minInterval until the context ends.
func (b *Background) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.minInterval)
	defer ticker.Stop()

	b.log.Info().Dur("min_interval", b.minInterval).Msg("background adapter started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				b.log.Warn().Err(err).Msg("background scan failed")
			}
		}
	}
}

// RunOnce performs one scan, unless the previous one ran less than
// minInterval ago, in which case it is a silent no-op.
func (b *Background) RunOnce(ctx context.Context) error {
	b.mu.Lock()
	if !b.lastRun.IsZero() && b.now().Sub(b.lastRun) < b.minInterval {
		b.mu.Unlock()
		return nil
	}
	b.lastRun = b.now()
	b.mu.Unlock()

	since := b.marks.Get(b.userID)
	return scanRecent(ctx, b.inbox, b.batch, since, b.sink, b.Name(), b.log)
}
