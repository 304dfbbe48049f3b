// Package models provides the data model shared by the extraction,
// queueing, and delivery layers: raw rows, normalized sink records,
// retry-queue items, and per-source watermarks.
package models

import (
	"fmt"
	"time"
)

// Row is a raw extracted row, keyed by column name. Values are the
// driver's native Go types until normalized for delivery.
type Row map[string]interface{}

// Record is a normalized, delivery-ready row. SourceID is the sink's
// deduplication key and must be stable for the same underlying row
// across restarts.
type Record struct {
	SourceID string `json:"source_id"`
	ClientID string `json:"client_id"`
	AgentID  string `json:"agent_id"`
	Source   string `json:"source"`
	Payload  Row    `json:"payload"`
}

// QueueItem is one undelivered batch held in the durable retry queue.
type QueueItem struct {
	Source string   `json:"source"`
	Rows   []Record `json:"rows"`
}

// Watermark is the per-source progress cursor. It is monotonically
// non-decreasing across successful deliveries; lookback and reprocessing
// rewinds widen a single extraction without moving the persisted value
// backward.
type Watermark struct {
	LastID  int64      `json:"last_id"`
	LastTS  *time.Time `json:"last_ts,omitempty"`
	LastTie int64      `json:"last_tie,omitempty"`
}

// NormalizeValue renders temporal values as ISO-8601 text and leaves
// everything else untouched. Applied to every payload value before a
// record crosses the wire or lands in the queue file.
func NormalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.Format(time.RFC3339Nano)
	default:
		return value
	}
}

// NormalizeRow returns a copy of row with all values normalized.
func NormalizeRow(row Row) Row {
	out := make(Row, len(row))
	for key, val := range row {
		out[key] = NormalizeValue(val)
	}
	return out
}

// SourceID builds the deterministic composite id for one row identity.
func SourceID(clientID, agentID, source string, identity interface{}) string {
	return fmt.Sprintf("%s:%s:%s:%v", clientID, agentID, source, identity)
}
