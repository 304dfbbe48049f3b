package runner

import (
	"time"

	"github.com/ajitpratap0/skimmer/internal/extract"
	"github.com/ajitpratap0/skimmer/pkg/config"
	"github.com/ajitpratap0/skimmer/pkg/models"
)

// tsFloor is the timestamp cursor used before any row has ever been
// delivered for a ts-mode source.
var tsFloor = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// effectiveCursor turns the persisted watermark into the cursor one
// extraction cycle actually queries from. For ts-mode sources it applies,
// in order: the configured start_from floor, the unconditional lookback
// rewind, and the reprocessing-window rewind when due. None of these
// rewinds are persisted; the next saved watermark comes from real rows.
func effectiveCursor(src *config.Source, wm models.Watermark, rt config.RuntimeConfig, now time.Time, reprocessDue bool) extract.Cursor {
	cur := extract.Cursor{LastID: wm.LastID}
	if src.Incremental.Mode != config.ModeTS {
		return cur
	}

	ts := tsFloor
	if wm.LastTS != nil {
		ts = *wm.LastTS
	}
	tie := wm.LastTie
	if tie == 0 {
		tie = wm.LastID
	}

	if startFrom, err := src.Incremental.StartFromTime(); err == nil && !startFrom.IsZero() && startFrom.After(ts) {
		ts = startFrom
	}

	if lookback := rt.Lookback(); lookback > 0 {
		ts = ts.Add(-lookback)
	}

	if reprocessDue && rt.ReprocessWindow() > 0 {
		if reprocessFrom := now.Add(-rt.ReprocessWindow()); reprocessFrom.Before(ts) {
			ts = reprocessFrom
		}
	}

	cur.LastTS = ts
	cur.LastTie = tie
	return cur
}
