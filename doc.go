// Package skimmer is an incremental database-to-HTTP extraction agent.
// It pulls new rows from a relational source using per-source watermark
// cursors and forwards them to an HTTP sink, with a durable on-disk retry
// queue guaranteeing at-least-once delivery.
//
// The agent runs a single orchestration loop: drain the retry queue,
// then for each configured source build a bounded, ordered incremental
// query, deliver the batch, and advance the watermark only after the
// sink has accepted the rows. Sources track progress either by a
// monotonically increasing id column or by a (timestamp, tie-breaker)
// pair; timestamp sources additionally support a start_from floor, a
// per-cycle lookback rewind for late-committed rows, and a periodic
// reprocessing window.
//
// # Quick Start
//
// Validate a configuration and run the agent:
//
//	skimmer check -c config.yaml
//	skimmer run -c config.yaml --metrics-addr :9090
//
// A minimal configuration:
//
//	sql:
//	  host: db.internal
//	  database: app
//	  user: reader
//	  password: ${SKIMMER_DB_PASSWORD}
//	sources:
//	  - name: events
//	    table: public.events
//	sink:
//	  api_url: https://sink.example/api/ingest
//	  token: ${SKIMMER_SINK_TOKEN}
//	identity:
//	  client_id: acme
//	  agent_id: agent-1
//
// # Key Packages
//
//	internal/extract - incremental query construction and execution
//	internal/deliver - HTTP sink delivery
//	internal/queue   - durable JSONL retry queue
//	internal/state   - per-source watermark persistence
//	internal/runner  - orchestration loop and supervisor
//	pkg/config       - configuration loading and validation
package skimmer
