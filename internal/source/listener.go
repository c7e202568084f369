package source

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

// Listener subscribes to the live message feed and hands each arrival to
// the sink as it happens. Delivery order holds within this channel only;
// there is no ordering across adapters.
type Listener struct {
	userID string
	inbox  Inbox
	sink   Sink
	marks  Watermarks
	log    zerolog.Logger
}

// NewListener creates the live-feed adapter.
func NewListener(userID string, inbox Inbox, sink Sink, marks Watermarks, log zerolog.Logger) *Listener {
	return &Listener{userID: userID, inbox: inbox, sink: sink, marks: marks, log: log}
}

// Name implements Adapter.
func (l *Listener) Name() string { return "listener" }

// Run subscribes and forwards messages until the context is canceled.
// Stopping releases the underlying subscription; messages already handed
// to the sink run to completion.
func (l *Listener) Run(ctx context.Context) error {
	feed, cancel, err := l.inbox.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("Listener.Run: subscribe: %w", err)
	}
	defer cancel()

	l.log.Info().Msg("listener started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-feed:
			if !ok {
				return ErrSourceUnavailable
			}
			if l.stale(msg) {
				continue
			}
			if err := l.sink.Submit(ctx, l.Name(), msg); err != nil {
				l.log.Warn().Err(err).Msg("submit failed")
			}
		}
	}
}

// stale drops live messages strictly behind the watermark, which happens
// when a catch-up scan processed them before the subscription delivered.
// Equal timestamps pass: a distinct message can share the watermark's
// timestamp, and the dedup guard absorbs true re-deliveries.
func (l *Listener) stale(msg domain.RawMessage) bool {
	if msg.CapturedAt.IsZero() {
		return false
	}
	wm := l.marks.Get(l.userID)
	return !wm.IsZero() && msg.CapturedAt.Before(wm)
}
