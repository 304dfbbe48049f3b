// Package deliver forwards extracted batches to the HTTP sink and
// reports enough about each attempt for diagnostics and retry routing.
package deliver

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/skimmer/pkg/config"
	"github.com/ajitpratap0/skimmer/pkg/models"
)

// Result describes one delivery attempt. Status is 0 when the request
// never completed; BodyPreview holds at most the first 500 bytes of the
// response body.
type Result struct {
	OK          bool
	Status      int
	BodyPreview string
	Err         error
}

// Sender is the delivery capability the orchestrator depends on.
type Sender interface {
	Send(ctx context.Context, records []models.Record) Result
}

// BuildRecords wraps raw rows in sink envelopes: a stable source_id per
// row, identity metadata, and the payload with temporal values
// normalized to ISO 8601 strings.
func BuildRecords(identity config.IdentityConfig, src *config.Source, rows []models.Row) []models.Record {
	records := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		payload := models.NormalizeRow(row)
		records = append(records, models.Record{
			SourceID: models.SourceID(identity.ClientID, identity.AgentID, src.Name, rowIdentity(src.Incremental, payload)),
			ClientID: identity.ClientID,
			AgentID:  identity.AgentID,
			Source:   src.Name,
			Payload:  payload,
		})
	}
	return records
}

// rowIdentity derives the per-row identity from the normalized payload:
// the id value in id mode, "ts:tie" in ts mode.
func rowIdentity(inc config.IncrementalSpec, payload models.Row) interface{} {
	if inc.Mode == config.ModeTS {
		return fmt.Sprintf("%v:%v", payload[inc.TSColumn], payload[inc.TieBreaker])
	}
	return payload[inc.IDColumn]
}
