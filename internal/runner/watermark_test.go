package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/skimmer/pkg/config"
	"github.com/ajitpratap0/skimmer/pkg/models"
)

func TestWatermarkFromBatchIDMode(t *testing.T) {
	inc := config.IncrementalSpec{Mode: config.ModeID, IDColumn: "id"}

	wm, err := watermarkFromBatch(inc, []models.Row{
		{"id": int64(3)},
		{"id": int64(9)},
		{"id": int64(5)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), wm.LastID)
	assert.Nil(t, wm.LastTS)
}

func TestWatermarkFromBatchIDModeJSONNumbers(t *testing.T) {
	// Queued payloads come back from JSON with float64 ids.
	inc := config.IncrementalSpec{Mode: config.ModeID, IDColumn: "id"}

	wm, err := watermarkFromBatch(inc, []models.Row{
		{"id": float64(41)},
		{"id": float64(42)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), wm.LastID)
}

func TestWatermarkFromBatchTSMode(t *testing.T) {
	inc := config.IncrementalSpec{Mode: config.ModeTS, TSColumn: "updated_at", TieBreaker: "id"}
	t1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	wm, err := watermarkFromBatch(inc, []models.Row{
		{"updated_at": t2, "id": int64(4)},
		{"updated_at": t1, "id": int64(9)},
		{"updated_at": t2, "id": int64(6)},
	})
	require.NoError(t, err)
	require.NotNil(t, wm.LastTS)
	assert.True(t, wm.LastTS.Equal(t2))
	// The tie breaker of the lexicographically greatest row wins, not
	// the global maximum.
	assert.Equal(t, int64(6), wm.LastTie)
	assert.Equal(t, int64(6), wm.LastID)
}

func TestWatermarkFromBatchTSModeStrings(t *testing.T) {
	inc := config.IncrementalSpec{Mode: config.ModeTS, TSColumn: "updated_at", TieBreaker: "id"}

	wm, err := watermarkFromBatch(inc, []models.Row{
		{"updated_at": "2024-03-01T12:00:00Z", "id": float64(7)},
		{"updated_at": "2024-03-01T12:05:00Z", "id": "8"},
	})
	require.NoError(t, err)
	require.NotNil(t, wm.LastTS)
	assert.Equal(t, int64(8), wm.LastTie)
}

func TestWatermarkFromBatchEmpty(t *testing.T) {
	inc := config.IncrementalSpec{Mode: config.ModeID, IDColumn: "id"}
	wm, err := watermarkFromBatch(inc, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Watermark{}, wm)
}

func TestWatermarkFromBatchMalformed(t *testing.T) {
	inc := config.IncrementalSpec{Mode: config.ModeID, IDColumn: "id"}
	_, err := watermarkFromBatch(inc, []models.Row{{"name": "no id here"}})
	assert.Error(t, err)

	inc = config.IncrementalSpec{Mode: config.ModeTS, TSColumn: "updated_at", TieBreaker: "id"}
	_, err = watermarkFromBatch(inc, []models.Row{{"updated_at": "not a time", "id": int64(1)}})
	assert.Error(t, err)
}
