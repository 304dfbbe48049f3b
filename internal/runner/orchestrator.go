// Package runner hosts the orchestration loop: drain the retry queue,
// extract one bounded batch per source, deliver, and advance watermarks.
// One goroutine owns everything; there is deliberately no concurrency
// across sources so load on the database stays bounded and watermark
// updates need no locking.
package runner

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/skimmer/internal/deliver"
	"github.com/ajitpratap0/skimmer/internal/extract"
	"github.com/ajitpratap0/skimmer/internal/queue"
	"github.com/ajitpratap0/skimmer/internal/state"
	"github.com/ajitpratap0/skimmer/pkg/config"
	"github.com/ajitpratap0/skimmer/pkg/metrics"
	"github.com/ajitpratap0/skimmer/pkg/models"
)

// Orchestrator runs the extraction loop until its context is canceled.
type Orchestrator struct {
	cfg       *config.Config
	extractor *extract.Extractor
	sender    deliver.Sender
	store     *state.Store
	queue     *queue.Queue
	diag      *Diagnostics
	logger    *zap.Logger

	clock           func() time.Time
	nextReprocessAt time.Time
}

// NewOrchestrator wires the loop's collaborators together.
func NewOrchestrator(
	cfg *config.Config,
	extractor *extract.Extractor,
	sender deliver.Sender,
	store *state.Store,
	q *queue.Queue,
	diag *Diagnostics,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		extractor: extractor,
		sender:    sender,
		store:     store,
		queue:     q,
		diag:      diag,
		logger:    logger.With(zap.String("component", "orchestrator")),
		clock:     time.Now,
	}
}

// Run executes cycles until ctx is canceled. Cancellation is observed
// between cycles and during sleeps, never mid-cycle.
func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.Info("agent started", zap.Int("sources", len(o.cfg.Sources)))
	o.nextReprocessAt = o.clock()

	for {
		if ctx.Err() != nil {
			o.logger.Info("agent stopped")
			return
		}
		o.cycle(ctx)
		if !sleepCtx(ctx, o.cfg.Runtime.SleepInterval()) {
			o.logger.Info("agent stopped")
			return
		}
	}
}

// cycle is one pass of the state machine. A panic anywhere inside is
// logged and swallowed; the loop must outlive any single cycle's error.
func (o *Orchestrator) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("unexpected error in main loop",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	start := o.clock()
	defer func() {
		metrics.CycleDuration.Observe(o.clock().Sub(start).Seconds())
	}()

	if !o.drainQueue(ctx) {
		// Leave extraction for a later cycle; new batches would only
		// pile up behind the one the sink just refused.
		sleepCtx(ctx, o.cfg.Runtime.Backoff())
		return
	}

	now := o.clock()
	reprocessDue := o.cfg.Runtime.ReprocessEvery() > 0 && !now.Before(o.nextReprocessAt)

	for i := range o.cfg.Sources {
		src := &o.cfg.Sources[i]
		if err := o.processSource(ctx, src, now, reprocessDue); err != nil {
			o.logger.Error("cycle aborted",
				zap.String("source", src.Name),
				zap.Error(err))
			return
		}
	}

	if reprocessDue {
		o.nextReprocessAt = o.clock().Add(o.cfg.Runtime.ReprocessEvery())
	}
	metrics.QueueDepth.Set(float64(o.queue.Size()))
}

// drainQueue replays pending batches in order. Returns true when the
// queue ends up empty. A delivery failure halts the drain and keeps the
// failed item plus everything after it; invalid items are dropped
// individually and never block the rest.
func (o *Orchestrator) drainQueue(ctx context.Context) bool {
	pending := o.queue.Load()
	if len(pending) == 0 {
		return true
	}
	o.logger.Info("retrying queued batches", zap.Int("pending", len(pending)))

	var remaining []models.QueueItem
	for i, item := range pending {
		src := o.cfg.SourceByName(item.Source)
		if src == nil || len(item.Rows) == 0 {
			o.logger.Warn("skipping invalid queued item", zap.String("source", item.Source))
			continue
		}
		wm, err := watermarkFromBatch(src.Incremental, payloadsOf(item.Rows))
		if err != nil {
			o.logger.Warn("skipping queued item with malformed rows",
				zap.String("source", item.Source), zap.Error(err))
			continue
		}

		res := o.sender.Send(ctx, item.Rows)
		o.diag.recordSend(len(item.Rows), res)
		if !res.OK {
			metrics.BatchesFailed.WithLabelValues(item.Source, "queued").Inc()
			remaining = append(remaining, pending[i:]...)
			break
		}

		metrics.BatchesDelivered.WithLabelValues(item.Source, "queued").Inc()
		o.persistWatermark(src.Name, wm)
		o.logger.Info("queued batch sent",
			zap.String("source", item.Source),
			zap.Int("records", len(item.Rows)))
	}

	if err := o.queue.Rewrite(remaining); err != nil {
		o.logger.Error("failed to rewrite retry queue", zap.Error(err))
	}
	metrics.QueueDepth.Set(float64(o.queue.Size()))
	return len(remaining) == 0
}

// processSource runs one extract-and-deliver step. A returned error
// means extraction failed and the rest of the cycle should be skipped;
// delivery failures are absorbed into the retry queue instead.
func (o *Orchestrator) processSource(ctx context.Context, src *config.Source, now time.Time, reprocessDue bool) error {
	wm, _ := o.store.Get(src.Name)
	cur := effectiveCursor(src, wm, o.cfg.Runtime, now, reprocessDue)

	rows, query, err := o.extractor.Fetch(ctx, src, cur, o.cfg.Runtime.BatchSize)
	if query.SQL != "" {
		o.diag.recordQuery(src.Name, query)
	}
	if err != nil {
		return err
	}
	o.diag.recordSample(src.Name, rows)

	if len(rows) == 0 {
		o.logger.Info("no new rows", zap.String("source", src.Name))
		return nil
	}
	metrics.RowsExtracted.WithLabelValues(src.Name).Add(float64(len(rows)))
	o.logger.Info("fetched rows",
		zap.String("source", src.Name),
		zap.Int("count", len(rows)))

	records := deliver.BuildRecords(o.cfg.Identity, src, rows)
	res := o.sender.Send(ctx, records)
	o.diag.recordSend(len(records), res)

	if res.OK {
		metrics.BatchesDelivered.WithLabelValues(src.Name, "fresh").Inc()
		// The watermark reflects the raw batch, never the rewound
		// cursor, so lookback cannot walk progress backwards.
		if batchWM, werr := watermarkFromBatch(src.Incremental, rows); werr != nil {
			o.logger.Error("failed to compute watermark", zap.String("source", src.Name), zap.Error(werr))
		} else {
			o.persistWatermark(src.Name, batchWM)
		}
		o.logger.Info("batch sent", zap.String("source", src.Name))
		return nil
	}

	metrics.BatchesFailed.WithLabelValues(src.Name, "fresh").Inc()
	switch err := o.queue.Append(models.QueueItem{Source: src.Name, Rows: records}); {
	case err == nil:
		metrics.BatchesQueued.WithLabelValues(src.Name).Inc()
		o.logger.Warn("batch queued for retry",
			zap.String("source", src.Name),
			zap.Int("records", len(records)))
	case errors.Is(err, queue.ErrFull):
		metrics.BatchesDropped.WithLabelValues(src.Name).Inc()
		o.logger.Error("retry queue full, dropping batch",
			zap.String("source", src.Name),
			zap.Int("records", len(records)))
	default:
		o.logger.Error("failed to queue batch",
			zap.String("source", src.Name),
			zap.Error(err))
	}
	return nil
}

func (o *Orchestrator) persistWatermark(source string, wm models.Watermark) {
	o.store.Update(source, wm)
	if err := o.store.Save(); err != nil {
		o.logger.Error("failed to persist state",
			zap.String("source", source),
			zap.Error(err))
	}
}

func payloadsOf(records []models.Record) []models.Row {
	payloads := make([]models.Row, len(records))
	for i, rec := range records {
		payloads[i] = rec.Payload
	}
	return payloads
}

// sleepCtx waits for d or cancellation, whichever comes first. Returns
// false when the context was canceled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
