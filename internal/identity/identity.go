// Package identity derives the stable deduplication key for a raw message.
//
// Two raw messages with equal identity are treated as the same logical
// event; the hash is the dedup key, not a globally unique id, and
// collision probability is accepted as negligible for this domain.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

// Compute returns the hex-encoded SHA-256 identity of a raw message for
// the given user. The hash covers the user id, the capture timestamp
// (empty when unknown), the originator (empty when unknown), and the
// normalized body, separated by NUL so field boundaries cannot shift.
func Compute(userID string, msg domain.RawMessage) string {
	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	if !msg.CapturedAt.IsZero() {
		h.Write([]byte(msg.CapturedAt.UTC().Format(time.RFC3339Nano)))
	}
	h.Write([]byte{0})
	h.Write([]byte(msg.Originator))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeBody(msg.Body)))
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeBody lowercases the body and collapses all whitespace runs to
// single spaces, so re-delivered copies that differ only in formatting
// hash to the same identity.
func NormalizeBody(body string) string {
	return strings.Join(strings.Fields(strings.ToLower(body)), " ")
}
