// Package source models the overlapping delivery channels that surface
// raw messages on a device. Every channel is one Adapter behind the same
// interface; the orchestrator treats them uniformly and never assumes a
// message arrives through only one of them.
package source

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

// Adapter-level failure modes. An adapter hitting one of these becomes a
// no-op until the underlying permission or setting changes; it never
// affects the other adapters.
var (
	ErrSourceUnavailable = errors.New("message source unavailable")
	ErrPermissionDenied  = errors.New("message source permission denied")
)

// Inbox is the device message capability: a live-push subscription for
// new messages plus an on-demand query for the most recent N inbox
// messages. It is a capability this system consumes, not a protocol it
// defines.
type Inbox interface {
	// Subscribe returns a channel of new messages as they arrive, in
	// arrival order for this channel only, plus a cancel func releasing
	// the underlying subscription.
	Subscribe(ctx context.Context) (<-chan domain.RawMessage, func(), error)

	// Recent returns up to n of the most recent inbox messages.
	Recent(ctx context.Context, n int) ([]domain.RawMessage, error)
}

// Sink accepts raw messages from adapters, one at a time. Implemented by
// the orchestrator's queue front so submission never blocks on a slow
// insert.
type Sink interface {
	Submit(ctx context.Context, adapter string, msg domain.RawMessage) error
}

// Watermarks exposes the per-user scan lower bound to adapters.
type Watermarks interface {
	Get(userID string) time.Time
}

// Adapter is one delivery channel. Run blocks until the context is
// canceled (or, for one-shot adapters, until the single pass completes).
type Adapter interface {
	Name() string
	Run(ctx context.Context) error
}

// scanRecent reads up to limit recent messages, keeps those at or after
// since, and submits them in ascending timestamp order so the watermark
// advances without gaps within the batch. Messages without a timestamp
// are kept and submitted first; the dedup guard makes re-submission safe.
func scanRecent(ctx context.Context, inbox Inbox, limit int, since time.Time, sink Sink, adapter string, log zerolog.Logger) error {
	msgs, err := inbox.Recent(ctx, limit)
	if err != nil {
		return err
	}

	kept := msgs[:0]
	for _, msg := range msgs {
		if msg.CapturedAt.IsZero() || since.IsZero() || !msg.CapturedAt.Before(since) {
			kept = append(kept, msg)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CapturedAt.Before(kept[j].CapturedAt)
	})

	for _, msg := range kept {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sink.Submit(ctx, adapter, msg); err != nil {
			// One message's failure never aborts the rest of the batch.
			log.Warn().Err(err).Str("adapter", adapter).Msg("submit failed")
		}
	}
	return nil
}
