package source

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Poller rescans the most recent inbox messages on a fixed interval and
// submits those newer than the watermark. It is the fallback channel when
// a live feed is unavailable, and runs alongside one without coordination;
// the dedup guard collapses the overlap.
type Poller struct {
	userID   string
	inbox    Inbox
	sink     Sink
	marks    Watermarks
	interval time.Duration
	batch    int
	log      zerolog.Logger
}

// NewPoller creates the fixed-interval adapter.
func NewPoller(userID string, inbox Inbox, sink Sink, marks Watermarks, interval time.Duration, batch int, log zerolog.Logger) *Poller {
	return &Poller{
		userID:   userID,
		inbox:    inbox,
		sink:     sink,
		marks:    marks,
		interval: interval,
		batch:    batch,
		log:      log,
	}
}

// Name implements Adapter.
func (p *Poller) Name() string { return "poller" }

// Run ticks until the context is canceled. A scan failing with a
// source-level error leaves the adapter a no-op for that tick; it keeps
// ticking so it recovers as soon as the capability returns.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info().Dur("interval", p.interval).Msg("poller started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.log.Warn().Err(err).Msg("poll scan failed")
			}
		}
	}
}

// Scan runs one watermark-bounded pass over the recent inbox messages.
func (p *Poller) Scan(ctx context.Context) error {
	since := p.marks.Get(p.userID)
	return scanRecent(ctx, p.inbox, p.batch, since, p.sink, p.Name(), p.log)
}
