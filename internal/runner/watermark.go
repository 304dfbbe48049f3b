package runner

import (
	"strconv"
	"time"

	"github.com/ajitpratap0/skimmer/pkg/config"
	"github.com/ajitpratap0/skimmer/pkg/models"
	"github.com/ajitpratap0/skimmer/pkg/skimerrors"
)

// watermarkFromBatch computes the highest watermark present in a batch.
// The batch may hold raw database rows (native int64 and time.Time) or
// payloads replayed from the queue (JSON numbers and ISO 8601 strings),
// so values are coerced rather than type-asserted.
func watermarkFromBatch(inc config.IncrementalSpec, payloads []models.Row) (models.Watermark, error) {
	if len(payloads) == 0 {
		return models.Watermark{}, nil
	}

	if inc.Mode == config.ModeID {
		var maxID int64
		for _, payload := range payloads {
			id, ok := coerceInt64(payload[inc.IDColumn])
			if !ok {
				return models.Watermark{}, skimerrors.Newf(skimerrors.ErrorTypeData,
					"row has no usable %s value", inc.IDColumn)
			}
			if id > maxID {
				maxID = id
			}
		}
		return models.Watermark{LastID: maxID}, nil
	}

	var bestTS time.Time
	var bestTie int64
	have := false
	for _, payload := range payloads {
		ts, ok := coerceTime(payload[inc.TSColumn])
		if !ok {
			return models.Watermark{}, skimerrors.Newf(skimerrors.ErrorTypeData,
				"row has no usable %s value", inc.TSColumn)
		}
		tie, ok := coerceInt64(payload[inc.TieBreaker])
		if !ok {
			return models.Watermark{}, skimerrors.Newf(skimerrors.ErrorTypeData,
				"row has no usable %s value", inc.TieBreaker)
		}
		if !have || ts.After(bestTS) || (ts.Equal(bestTS) && tie > bestTie) {
			bestTS = ts
			bestTie = tie
			have = true
		}
	}
	return models.Watermark{LastID: bestTie, LastTS: &bestTS, LastTie: bestTie}, nil
}

func coerceInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func coerceTime(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string:
		ts, err := config.ParseTimestamp(v)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	default:
		return time.Time{}, false
	}
}
