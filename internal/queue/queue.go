// Package queue is the durable on-disk retry queue. Batches that could
// not be delivered are appended as JSON lines and replayed in order on
// later cycles.
package queue

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/skimmer/pkg/fsatomic"
	"github.com/ajitpratap0/skimmer/pkg/models"
	"github.com/ajitpratap0/skimmer/pkg/skimerrors"
)

// ErrFull is returned by Append when the queue file has reached its
// size cap. The caller drops the batch without advancing its watermark,
// so the rows are fetched again once the sink recovers.
var ErrFull = skimerrors.New(skimerrors.ErrorTypeCapacity, "retry queue is full")

// Queue appends to and rewrites a JSONL file. Not safe for concurrent
// use; the single orchestrator goroutine owns it.
type Queue struct {
	path     string
	maxBytes int64
	logger   *zap.Logger
}

// New creates a queue over the file at path. maxMB <= 0 means unbounded.
func New(path string, maxMB int, logger *zap.Logger) *Queue {
	return &Queue{
		path:     path,
		maxBytes: int64(maxMB) * 1024 * 1024,
		logger:   logger.With(zap.String("component", "queue")),
	}
}

// Append adds one batch to the end of the queue. Returns ErrFull when
// the write would push the file past the size cap.
func (q *Queue) Append(item models.QueueItem) error {
	line, err := json.Marshal(item)
	if err != nil {
		return skimerrors.Wrap(err, skimerrors.ErrorTypeInternal, "failed to encode queue item")
	}
	line = append(line, '\n')

	if q.maxBytes > 0 && q.Size()+int64(len(line)) > q.maxBytes {
		return ErrFull
	}

	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return skimerrors.Wrap(err, skimerrors.ErrorTypeInternal, "failed to create queue directory")
	}
	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return skimerrors.Wrap(err, skimerrors.ErrorTypeInternal, "failed to open queue file")
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return skimerrors.Wrap(err, skimerrors.ErrorTypeInternal, "failed to append to queue file")
	}
	return f.Sync()
}

// Load reads all queued batches in order. Lines that fail to decode are
// dropped individually with a warning; a missing file is an empty queue.
func (q *Queue) Load() []models.QueueItem {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if !os.IsNotExist(err) {
			q.logger.Warn("queue file unreadable, treating as empty",
				zap.String("path", q.path), zap.Error(err))
		}
		return nil
	}

	var items []models.QueueItem
	dropped := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var item models.QueueItem
		if err := json.Unmarshal(line, &item); err != nil {
			dropped++
			continue
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		q.logger.Warn("queue file truncated mid-read", zap.String("path", q.path), zap.Error(err))
	}
	if dropped > 0 {
		q.logger.Warn("dropped undecodable queue lines",
			zap.String("path", q.path), zap.Int("dropped", dropped))
	}
	return items
}

// Rewrite atomically replaces the queue contents with items. An empty
// slice removes the file entirely.
func (q *Queue) Rewrite(items []models.QueueItem) error {
	if len(items) == 0 {
		if err := os.Remove(q.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return skimerrors.Wrap(err, skimerrors.ErrorTypeInternal, "failed to remove drained queue file")
		}
		return nil
	}

	var buf bytes.Buffer
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return skimerrors.Wrap(err, skimerrors.ErrorTypeInternal, "failed to encode queue item")
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	if err := fsatomic.WriteFile(q.path, buf.Bytes(), 0o644); err != nil {
		return skimerrors.Wrap(err, skimerrors.ErrorTypeInternal, "failed to rewrite queue file").
			WithDetail("path", q.path)
	}
	return nil
}

// Size returns the queue file size in bytes, 0 when absent.
func (q *Queue) Size() int64 {
	info, err := os.Stat(q.path)
	if err != nil {
		return 0
	}
	return info.Size()
}
