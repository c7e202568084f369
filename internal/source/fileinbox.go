package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

// FileInbox binds the Inbox capability to a JSONL file, one RawMessage
// per line. It stands in for the device mailbox in the daemon and in
// tests: Recent reads the file tail, Subscribe tails appended lines.
type FileInbox struct {
	path string
	poll time.Duration
}

// NewFileInbox creates an inbox over the JSONL file at path.
func NewFileInbox(path string) *FileInbox {
	return &FileInbox{path: path, poll: time.Second}
}

// Recent implements Inbox. It returns up to n of the newest messages in
// file order (oldest of the window first).
func (f *FileInbox) Recent(ctx context.Context, n int) ([]domain.RawMessage, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, f.capabilityError("Recent", err)
	}
	defer file.Close()

	var msgs []domain.RawMessage
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		msg, ok := decodeLine(scanner.Bytes())
		if !ok {
			continue
		}
		msgs = append(msgs, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("FileInbox.Recent: scanning %q: %w", f.path, err)
	}

	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}

// Subscribe implements Inbox. It tails the file by polling for appended
// lines; only lines written after the subscription starts are delivered.
func (f *FileInbox) Subscribe(ctx context.Context) (<-chan domain.RawMessage, func(), error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, nil, f.capabilityError("Subscribe", err)
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("FileInbox.Subscribe: seeking %q: %w", f.path, err)
	}
	file.Close()

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan domain.RawMessage, 16)

	go func() {
		defer close(out)
		ticker := time.NewTicker(f.poll)
		defer ticker.Stop()

		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
				offset = f.drainFrom(subCtx, offset, out)
			}
		}
	}()

	return out, cancel, nil
}

// drainFrom reads lines appended past offset and pushes them to out,
// returning the new offset. Read errors leave the offset unchanged so the
// next tick retries.
func (f *FileInbox) drainFrom(ctx context.Context, offset int64, out chan<- domain.RawMessage) int64 {
	file, err := os.Open(f.path)
	if err != nil {
		return offset
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset
	}

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			// A partial trailing line stays unread until its newline lands.
			return offset
		}
		offset += int64(len(line))
		if msg, ok := decodeLine(line); ok {
			select {
			case out <- msg:
			case <-ctx.Done():
				return offset
			}
		}
	}
}

func decodeLine(line []byte) (domain.RawMessage, bool) {
	var msg domain.RawMessage
	if err := json.Unmarshal(line, &msg); err != nil || msg.Body == "" {
		return domain.RawMessage{}, false
	}
	return msg, true
}

func (f *FileInbox) capabilityError(op string, err error) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("FileInbox.%s: %q: %w", op, f.path, ErrSourceUnavailable)
	case os.IsPermission(err):
		return fmt.Errorf("FileInbox.%s: %q: %w", op, f.path, ErrPermissionDenied)
	default:
		return fmt.Errorf("FileInbox.%s: %q: %w", op, f.path, err)
	}
}
