package runner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/skimmer/internal/deliver"
	"github.com/ajitpratap0/skimmer/internal/extract"
	"github.com/ajitpratap0/skimmer/internal/queue"
	"github.com/ajitpratap0/skimmer/internal/state"
	"github.com/ajitpratap0/skimmer/pkg/config"
	"github.com/ajitpratap0/skimmer/pkg/logger"
)

// stopTimeout bounds how long Stop waits for the in-flight cycle.
const stopTimeout = 5 * time.Second

// Status is what the control surface reports about the agent.
type Status struct {
	Running    bool   `json:"running"`
	LastError  string `json:"last_error,omitempty"`
	ConfigPath string `json:"config_path"`
}

// Supervisor runs at most one orchestrator at a time and exposes
// start/stop/status to the control surface.
type Supervisor struct {
	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	lastError  string
	configPath string
	diag       *Diagnostics
	logger     *zap.Logger

	// build is swapped out in tests.
	build func(ctx context.Context, cfg *config.Config, diag *Diagnostics) (*Orchestrator, func(), error)
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(log *zap.Logger) *Supervisor {
	s := &Supervisor{
		diag:   NewDiagnostics(),
		logger: log,
	}
	s.build = s.buildAgent
	return s
}

// Diagnostics exposes the per-source debug store shared with the
// running orchestrator.
func (s *Supervisor) Diagnostics() *Diagnostics {
	return s.diag
}

// Start loads the config at configPath and launches the orchestrator.
// Returns (false, nil) when one is already running; any setup failure
// is returned as a fatal error without starting the loop.
func (s *Supervisor) Start(configPath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		s.logger.Info("start ignored, agent already running")
		return false, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	orch, cleanup, err := s.build(ctx, cfg, s.diag)
	if err != nil {
		cancel()
		return false, err
	}

	s.lastError = ""
	s.configPath = configPath
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		defer cleanup()
		defer func() {
			if r := recover(); r != nil {
				s.mu.Lock()
				s.lastError = "agent crashed"
				s.mu.Unlock()
				s.logger.Error("agent crashed", zap.Any("panic", r))
			}
		}()
		orch.Run(ctx)
	}(s.done)

	return true, nil
}

// Stop cancels the running orchestrator and waits up to stopTimeout for
// the in-flight cycle to finish. Returns false when nothing was running.
func (s *Supervisor) Stop() bool {
	s.mu.Lock()
	if !s.runningLocked() {
		s.mu.Unlock()
		return false
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.logger.Warn("agent did not stop within timeout, giving up the wait")
	}
	return true
}

// Status reports whether the agent is running, the last fatal error,
// and which config file it was started with.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:    s.runningLocked(),
		LastError:  s.lastError,
		ConfigPath: s.configPath,
	}
}

func (s *Supervisor) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// buildAgent wires the real collaborators for a config.
func (s *Supervisor) buildAgent(ctx context.Context, cfg *config.Config, diag *Diagnostics) (*Orchestrator, func(), error) {
	if err := logger.InitWithFile(cfg.Runtime.LogLevel, cfg.Paths.Log); err != nil {
		return nil, nil, err
	}
	log := logger.Get()
	s.logger = log

	runner, err := extract.NewPgxRunner(ctx, &cfg.SQL, log)
	if err != nil {
		return nil, nil, err
	}

	orch := NewOrchestrator(
		cfg,
		extract.NewExtractor(runner, log),
		deliver.NewHTTPSender(cfg.Sink, log),
		state.Load(cfg.Paths.State, log),
		queue.New(cfg.Paths.Queue, cfg.Runtime.QueueMaxMB, log),
		diag,
		log,
	)
	return orch, runner.Close, nil
}
