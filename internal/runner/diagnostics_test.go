package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/skimmer/internal/deliver"
	"github.com/ajitpratap0/skimmer/pkg/models"
)

func TestDiagnosticsTrackCycle(t *testing.T) {
	cfg := testConfig(t, eventsSource())
	runner := &memRunner{table: idRows(6, 7, 8), limit: cfg.Runtime.BatchSize}
	sender := &scriptSender{}
	o, st, _ := newTestOrchestrator(cfg, runner, sender)
	st.Update("events", models.Watermark{LastID: 5})

	o.cycle(context.Background())

	q, ok := o.diag.LastQuery("events")
	require.True(t, ok)
	assert.Contains(t, q.Query, `"public"."events"`)
	assert.Contains(t, q.QueryWithParams, "> 5")
	assert.Equal(t, []interface{}{int64(5)}, q.Params)

	sample := o.diag.LastSample("events")
	require.Len(t, sample, 2)
	assert.Equal(t, int64(6), sample[0]["id"])

	send := o.diag.LastSend()
	assert.Equal(t, 2, send.Count)
	assert.Equal(t, 200, send.Status)
	assert.Empty(t, send.Error)
}

func TestDiagnosticsKeepLastQueryOnBuildFailure(t *testing.T) {
	cfg := testConfig(t, eventsSource())
	runner := &memRunner{table: idRows(6), limit: cfg.Runtime.BatchSize}
	o, _, _ := newTestOrchestrator(cfg, runner, &scriptSender{})

	o.cycle(context.Background())
	q, ok := o.diag.LastQuery("events")
	require.True(t, ok)
	require.NotEmpty(t, q.Query)

	// A bad identifier aborts query building before any SQL exists; the
	// last good entry must survive the failed cycle.
	cfg.Sources[0].Table = `events"; drop table events`
	o.cycle(context.Background())

	kept, ok := o.diag.LastQuery("events")
	require.True(t, ok)
	assert.Equal(t, q, kept)
}

func TestDiagnosticsSampleCapped(t *testing.T) {
	d := NewDiagnostics()
	d.recordSample("events", idRows(1, 2, 3, 4, 5, 6, 7))
	assert.Len(t, d.LastSample("events"), sampleRows)
}

func TestDiagnosticsRecordSendError(t *testing.T) {
	d := NewDiagnostics()
	d.recordSend(3, deliver.Result{Status: 502, BodyPreview: "bad gateway", Err: assertable("sink returned status 502")})

	send := d.LastSend()
	assert.Equal(t, 3, send.Count)
	assert.Equal(t, 502, send.Status)
	assert.Equal(t, "bad gateway", send.ResponsePreview)
	assert.Contains(t, send.Error, "502")
}
