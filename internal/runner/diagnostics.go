package runner

import (
	"sync"

	"github.com/ajitpratap0/skimmer/internal/deliver"
	"github.com/ajitpratap0/skimmer/internal/extract"
	"github.com/ajitpratap0/skimmer/pkg/models"
)

// sampleRows is how many rows of the latest batch are retained per source.
const sampleRows = 5

// QueryDebug is the last query issued for a source, with parameters both
// separate and interpolated for easy copy-paste into a SQL console.
type QueryDebug struct {
	Query           string        `json:"query"`
	Params          []interface{} `json:"params"`
	QueryWithParams string        `json:"query_with_params"`
}

// SendDebug summarizes the last delivery attempt.
type SendDebug struct {
	Count           int    `json:"count"`
	Status          int    `json:"status"`
	ResponsePreview string `json:"response_preview"`
	Error           string `json:"error,omitempty"`
}

// Diagnostics retains, per source, the last query, a small sample of the
// last batch, and the last delivery outcome. Written by the orchestrator
// goroutine, read by the status surface.
type Diagnostics struct {
	mu       sync.RWMutex
	queries  map[string]QueryDebug
	samples  map[string][]models.Row
	lastSend SendDebug
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{
		queries: make(map[string]QueryDebug),
		samples: make(map[string][]models.Row),
	}
}

func (d *Diagnostics) recordQuery(source string, q extract.Query) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries[source] = QueryDebug{
		Query:           q.SQL,
		Params:          q.Args,
		QueryWithParams: q.Preview,
	}
}

func (d *Diagnostics) recordSample(source string, rows []models.Row) {
	n := len(rows)
	if n > sampleRows {
		n = sampleRows
	}
	sample := make([]models.Row, n)
	copy(sample, rows[:n])

	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples[source] = sample
}

func (d *Diagnostics) recordSend(count int, res deliver.Result) {
	send := SendDebug{
		Count:           count,
		Status:          res.Status,
		ResponsePreview: res.BodyPreview,
	}
	if res.Err != nil {
		send.Error = res.Err.Error()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSend = send
}

// LastQuery returns the most recent query issued for source.
func (d *Diagnostics) LastQuery(source string) (QueryDebug, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	q, ok := d.queries[source]
	return q, ok
}

// LastSample returns up to five rows of the most recent batch for source.
func (d *Diagnostics) LastSample(source string) []models.Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.samples[source]
}

// LastSend returns the most recent delivery outcome across all sources.
func (d *Diagnostics) LastSend() SendDebug {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSend
}
