// Package archive keeps an audit copy of raw message captures in GCS,
// mirroring how parsed rows keep a pointer back to their source material.
// Archival is strictly best-effort: a failure is logged and never blocks
// or fails the ingestion pipeline.
package archive

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

// Uploader writes raw captures under
// gs://<bucket>/captures/<user>/<yyyy>/<mm>/<dd>/<identity>.txt.
// It assumes Application Default Credentials are configured.
type Uploader struct {
	bucket string
}

// NewUploader creates an uploader targeting the given bucket.
func NewUploader(bucket string) *Uploader {
	return &Uploader{bucket: bucket}
}

// Archive stores one raw message body keyed by its identity hash. The
// identity key makes the write idempotent: re-archiving a duplicate
// observation just overwrites the same object.
func (u *Uploader) Archive(ctx context.Context, userID, identityHash string, msg domain.RawMessage) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("Archive: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	at := msg.CapturedAt
	if at.IsZero() {
		at = time.Now()
	}
	object := fmt.Sprintf("captures/%s/%s/%s.txt", userID, at.UTC().Format("2006/01/02"), identityHash)

	w := client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if msg.Originator != "" {
		w.Metadata = map[string]string{"originator": msg.Originator}
	}

	if _, err := w.Write([]byte(msg.Body)); err != nil {
		_ = w.Close()
		return fmt.Errorf("Archive: writing object %q: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Archive: finalize upload %q: %w", object, err)
	}
	return nil
}
