package queue

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/skimmer/pkg/models"
)

func item(source string, ids ...int64) models.QueueItem {
	rows := make([]models.Record, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.Record{
			SourceID: "c:a:" + source + ":" + strconv.FormatInt(id, 10),
			Source:   source,
			Payload:  models.Row{"id": id},
		})
	}
	return models.QueueItem{Source: source, Rows: rows}
}

func TestQueueAppendLoadOrder(t *testing.T) {
	q := New(filepath.Join(t.TempDir(), "queue.jsonl"), 10, zap.NewNop())

	require.NoError(t, q.Append(item("events", 1)))
	require.NoError(t, q.Append(item("events", 2)))
	require.NoError(t, q.Append(item("audit", 3)))

	items := q.Load()
	require.Len(t, items, 3)
	assert.Equal(t, "events", items[0].Source)
	assert.Equal(t, "events", items[1].Source)
	assert.Equal(t, "audit", items[2].Source)
}

func TestQueueLoadMissingFile(t *testing.T) {
	q := New(filepath.Join(t.TempDir(), "queue.jsonl"), 10, zap.NewNop())
	assert.Empty(t, q.Load())
}

func TestQueueSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.jsonl")
	q := New(path, 10, zap.NewNop())

	require.NoError(t, q.Append(item("events", 1)))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{garbage\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, q.Append(item("events", 2)))

	items := q.Load()
	require.Len(t, items, 2)
	assert.Equal(t, "events", items[0].Source)
	assert.Equal(t, "events", items[1].Source)
}

func TestQueueFull(t *testing.T) {
	q := New(filepath.Join(t.TempDir(), "queue.jsonl"), 1, zap.NewNop())

	big := models.QueueItem{Source: "events", Rows: []models.Record{{
		Source:  "events",
		Payload: models.Row{"blob": strings.Repeat("x", 1024*1024)},
	}}}
	err := q.Append(big)
	assert.ErrorIs(t, err, ErrFull)
	assert.Empty(t, q.Load())
}

func TestQueueUnboundedWhenCapZero(t *testing.T) {
	q := New(filepath.Join(t.TempDir(), "queue.jsonl"), 0, zap.NewNop())
	require.NoError(t, q.Append(item("events", 1)))
	assert.Len(t, q.Load(), 1)
}

func TestQueueRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.jsonl")
	q := New(path, 10, zap.NewNop())

	require.NoError(t, q.Append(item("events", 1)))
	require.NoError(t, q.Append(item("events", 2)))
	require.NoError(t, q.Append(item("events", 3)))

	items := q.Load()
	require.NoError(t, q.Rewrite(items[1:]))

	remaining := q.Load()
	require.Len(t, remaining, 2)

	require.NoError(t, q.Rewrite(nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Zero(t, q.Size())
}
