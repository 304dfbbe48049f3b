package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/skimmer/internal/extract"
	"github.com/ajitpratap0/skimmer/internal/queue"
	"github.com/ajitpratap0/skimmer/internal/state"
	"github.com/ajitpratap0/skimmer/pkg/config"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`sql:
  host: localhost
  database: app
sources:
  - name: events
    table: public.events
sink:
  api_url: https://sink.example/api/ingest
  token: secret
identity:
  client_id: acme
  agent_id: agent-1
paths:
  state: %s/state.json
  queue: %s/queue.jsonl
  log: %s/agent.log
`, dir, dir, dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fakeBuild(ctx context.Context, cfg *config.Config, diag *Diagnostics) (*Orchestrator, func(), error) {
	log := zap.NewNop()
	o := NewOrchestrator(
		cfg,
		extract.NewExtractor(&memRunner{limit: cfg.Runtime.BatchSize}, log),
		&scriptSender{},
		state.Load(cfg.Paths.State, log),
		queue.New(cfg.Paths.Queue, cfg.Runtime.QueueMaxMB, log),
		diag,
		log,
	)
	return o, func() {}, nil
}

func TestSupervisorLifecycle(t *testing.T) {
	path := writeTestConfig(t)
	s := NewSupervisor(zap.NewNop())
	s.build = fakeBuild

	started, err := s.Start(path)
	require.NoError(t, err)
	assert.True(t, started)

	st := s.Status()
	assert.True(t, st.Running)
	assert.Equal(t, path, st.ConfigPath)
	assert.Empty(t, st.LastError)

	// A second start while running is a no-op, not an error.
	started, err = s.Start(path)
	require.NoError(t, err)
	assert.False(t, started)

	assert.True(t, s.Stop())
	assert.False(t, s.Status().Running)

	// Stopping an idle supervisor reports nothing was running.
	assert.False(t, s.Stop())
}

func TestSupervisorRestartAfterStop(t *testing.T) {
	path := writeTestConfig(t)
	s := NewSupervisor(zap.NewNop())
	s.build = fakeBuild

	started, err := s.Start(path)
	require.NoError(t, err)
	require.True(t, started)
	require.True(t, s.Stop())

	started, err = s.Start(path)
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, s.Stop())
}

func TestSupervisorStartBadConfig(t *testing.T) {
	s := NewSupervisor(zap.NewNop())
	s.build = fakeBuild

	started, err := s.Start(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.False(t, started)
	assert.Error(t, err)
	assert.False(t, s.Status().Running)
}
