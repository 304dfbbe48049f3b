package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/skimmer/pkg/models"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s := Load(path, zap.NewNop())
	_, ok := s.Get("events")
	assert.False(t, ok)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Update("events", models.Watermark{LastID: 42})
	s.Update("audit", models.Watermark{LastTS: &ts, LastTie: 7})
	require.NoError(t, s.Save())

	reloaded := Load(path, zap.NewNop())
	wm, ok := reloaded.Get("events")
	require.True(t, ok)
	assert.Equal(t, int64(42), wm.LastID)

	wm, ok = reloaded.Get("audit")
	require.True(t, ok)
	require.NotNil(t, wm.LastTS)
	assert.True(t, wm.LastTS.Equal(ts))
	assert.Equal(t, int64(7), wm.LastTie)
}

func TestStoreMissingFile(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "nope", "state.json"), zap.NewNop())
	_, ok := s.Get("events")
	assert.False(t, ok)
}

func TestStoreCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := Load(path, zap.NewNop())
	_, ok := s.Get("events")
	assert.False(t, ok)

	// A save after corruption replaces the bad file.
	s.Update("events", models.Watermark{LastID: 1})
	require.NoError(t, s.Save())

	reloaded := Load(path, zap.NewNop())
	wm, ok := reloaded.Get("events")
	require.True(t, ok)
	assert.Equal(t, int64(1), wm.LastID)
}

func TestStoreUpdateOverwrites(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "state.json"), zap.NewNop())
	s.Update("events", models.Watermark{LastID: 1})
	s.Update("events", models.Watermark{LastID: 9})
	wm, _ := s.Get("events")
	assert.Equal(t, int64(9), wm.LastID)
}
