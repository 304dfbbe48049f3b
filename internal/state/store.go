// Package state persists per-source watermarks across restarts.
package state

import (
	"os"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/skimmer/pkg/fsatomic"
	"github.com/ajitpratap0/skimmer/pkg/models"
	"github.com/ajitpratap0/skimmer/pkg/skimerrors"
)

type stateFile struct {
	Sources map[string]models.Watermark `json:"sources"`
}

// Store holds the in-memory watermark map and writes it back to disk
// atomically. Not safe for concurrent use; the single orchestrator
// goroutine owns it.
type Store struct {
	path       string
	watermarks map[string]models.Watermark
	logger     *zap.Logger
}

// Load reads the state file at path. A missing file starts fresh; a
// corrupt file is logged loudly and also starts fresh, never aborts.
func Load(path string, logger *zap.Logger) *Store {
	s := &Store{
		path:       path,
		watermarks: make(map[string]models.Watermark),
		logger:     logger.With(zap.String("component", "state")),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("state file unreadable, starting from scratch",
				zap.String("path", path), zap.Error(err))
		}
		return s
	}

	var parsed stateFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		s.logger.Warn("state file corrupt, starting from scratch; all sources will re-extract from their floors",
			zap.String("path", path), zap.Error(err))
		return s
	}
	if parsed.Sources != nil {
		s.watermarks = parsed.Sources
	}

	s.logger.Info("loaded state", zap.String("path", path), zap.Int("sources", len(s.watermarks)))
	return s
}

// Get returns the watermark for source, and whether one exists.
func (s *Store) Get(source string) (models.Watermark, bool) {
	wm, ok := s.watermarks[source]
	return wm, ok
}

// Update replaces the watermark for source in memory only. Save must be
// called after the batch is safely delivered or queued.
func (s *Store) Update(source string, wm models.Watermark) {
	s.watermarks[source] = wm
}

// Save writes the full watermark map to disk atomically.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(stateFile{Sources: s.watermarks}, "", "  ")
	if err != nil {
		return skimerrors.Wrap(err, skimerrors.ErrorTypeInternal, "failed to encode state")
	}
	if err := fsatomic.WriteFile(s.path, data, 0o644); err != nil {
		return skimerrors.Wrap(err, skimerrors.ErrorTypeInternal, "failed to write state file").
			WithDetail("path", s.path)
	}
	return nil
}
