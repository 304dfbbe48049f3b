// Package config provides the configuration system for the extraction
// agent. A single Config structure describes the SQL source connection,
// the logical sources to extract, the HTTP sink, runtime tunables, state
// file paths, and the agent identity used to build record ids.
//
// Configuration errors are fatal at load time: a config that fails
// Validate never reaches the orchestrator.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration for one agent run. Immutable once
// loaded.
type Config struct {
	SQL      SQLConfig      `yaml:"sql" json:"sql"`
	Sources  []Source       `yaml:"sources" json:"sources"`
	Sink     SinkConfig     `yaml:"sink" json:"sink"`
	Runtime  RuntimeConfig  `yaml:"runtime" json:"runtime"`
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Identity IdentityConfig `yaml:"identity" json:"identity"`
}

// SQLConfig holds source database connection parameters.
type SQLConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Database string `yaml:"database" json:"database"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	SSLMode  string `yaml:"sslmode" json:"sslmode"`
	// Timeout is the connection timeout in seconds.
	Timeout int `yaml:"timeout" json:"timeout"`
}

// DSN assembles a pgx-compatible connection URL.
func (s SQLConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", s.Host, s.Port),
		Path:   "/" + s.Database,
	}
	if s.User != "" {
		u.User = url.UserPassword(s.User, s.Password)
	}
	q := url.Values{}
	if s.SSLMode != "" {
		q.Set("sslmode", s.SSLMode)
	}
	if s.Timeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", s.Timeout))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// IncrementalMode selects how a source tracks progress.
type IncrementalMode string

const (
	// ModeID tracks progress by a monotonically increasing id column.
	ModeID IncrementalMode = "id"
	// ModeTS tracks progress by a (timestamp, tie-breaker) pair.
	ModeTS IncrementalMode = "ts"
)

// IncrementalSpec describes how new rows are selected for a source. In
// ts mode rows must be strictly orderable by (ts_column, tie_breaker);
// ties in ts_column are broken by tie_breaker, which must be comparable
// as an integer.
type IncrementalSpec struct {
	Mode       IncrementalMode `yaml:"mode" json:"mode"`
	IDColumn   string          `yaml:"id_column" json:"id_column"`
	TSColumn   string          `yaml:"ts_column" json:"ts_column"`
	TieBreaker string          `yaml:"tie_breaker" json:"tie_breaker"`
	// StartFrom is an optional floor timestamp (RFC 3339 or
	// "2006-01-02 15:04:05") for ts-mode sources.
	StartFrom string `yaml:"start_from" json:"start_from"`
}

// StartFromTime parses the configured floor. Returns the zero time when
// unset.
func (i IncrementalSpec) StartFromTime() (time.Time, error) {
	if i.StartFrom == "" {
		return time.Time{}, nil
	}
	return ParseTimestamp(i.StartFrom)
}

// SourceKind distinguishes table scans from user-supplied queries.
type SourceKind string

const (
	// KindTable scans a named table.
	KindTable SourceKind = "table"
	// KindQuery wraps a user-supplied query as a subquery.
	KindQuery SourceKind = "query"
)

// Source is one logical extraction source. Immutable once loaded.
type Source struct {
	Name        string          `yaml:"name" json:"name"`
	Kind        SourceKind      `yaml:"kind" json:"kind"`
	Table       string          `yaml:"table" json:"table"`
	Query       string          `yaml:"query" json:"query"`
	Select      []string        `yaml:"select" json:"select"`
	Filter      string          `yaml:"filter" json:"filter"`
	Incremental IncrementalSpec `yaml:"incremental" json:"incremental"`
}

// SinkConfig holds the HTTP sink endpoint parameters.
type SinkConfig struct {
	APIURL    string  `yaml:"api_url" json:"api_url"`
	Token     string  `yaml:"token" json:"token"`
	VerifySSL bool    `yaml:"verify_ssl" json:"verify_ssl"`
	// Timeout is the request timeout in seconds. Fractions allowed.
	Timeout float64 `yaml:"timeout" json:"timeout"`
}

// RequestTimeout returns the sink request timeout as a duration.
func (s SinkConfig) RequestTimeout() time.Duration {
	return time.Duration(s.Timeout * float64(time.Second))
}

// RuntimeConfig holds the loop tunables. All intervals are expressed the
// way operators write them in the config file: interval and retry_backoff
// in seconds, the rest in minutes.
type RuntimeConfig struct {
	Interval     int `yaml:"interval" json:"interval"`
	BatchSize    int `yaml:"batch_size" json:"batch_size"`
	RetryBackoff int `yaml:"retry_backoff" json:"retry_backoff"`
	// QueueMaxMB caps the on-disk retry queue; 0 means unbounded.
	QueueMaxMB int `yaml:"queue_max_mb" json:"queue_max_mb"`
	// LookbackMinutes rewinds the ts cursor every cycle to tolerate
	// late-committed rows near the boundary.
	LookbackMinutes int `yaml:"lookback_minutes" json:"lookback_minutes"`
	// ReprocessEveryMinutes schedules a periodic wider rewind. Only
	// meaningful for ts-mode sources; id-mode sources ignore it.
	ReprocessEveryMinutes  int `yaml:"reprocess_every_minutes" json:"reprocess_every_minutes"`
	ReprocessWindowMinutes int `yaml:"reprocess_window_minutes" json:"reprocess_window_minutes"`
	LogLevel               string `yaml:"log_level" json:"log_level"`
}

// SleepInterval returns the steady-state sleep between cycles.
func (r RuntimeConfig) SleepInterval() time.Duration {
	return time.Duration(r.Interval) * time.Second
}

// Backoff returns the wait applied after a queue-drain failure, before
// the steady interval (the two compound).
func (r RuntimeConfig) Backoff() time.Duration {
	return time.Duration(r.RetryBackoff) * time.Second
}

// Lookback returns the per-cycle ts-cursor rewind.
func (r RuntimeConfig) Lookback() time.Duration {
	return time.Duration(r.LookbackMinutes) * time.Minute
}

// ReprocessEvery returns the reprocessing schedule period.
func (r RuntimeConfig) ReprocessEvery() time.Duration {
	return time.Duration(r.ReprocessEveryMinutes) * time.Minute
}

// ReprocessWindow returns the reprocessing rewind width.
func (r RuntimeConfig) ReprocessWindow() time.Duration {
	return time.Duration(r.ReprocessWindowMinutes) * time.Minute
}

// PathsConfig holds the on-disk locations of agent state.
type PathsConfig struct {
	State string `yaml:"state" json:"state"`
	Queue string `yaml:"queue" json:"queue"`
	Log   string `yaml:"log" json:"log"`
}

// IdentityConfig identifies this agent to the sink; both fields are part
// of every record's source_id.
type IdentityConfig struct {
	ClientID string `yaml:"client_id" json:"client_id"`
	AgentID  string `yaml:"agent_id" json:"agent_id"`
}

// SourceByName returns the source with the given name, or nil.
func (c *Config) SourceByName(name string) *Source {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i]
		}
	}
	return nil
}

// Validate checks the configuration for correctness. All validation
// failures here are fatal: the agent refuses to start.
func (c *Config) Validate() error {
	if err := c.SQL.validate(); err != nil {
		return err
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("sources must be a non-empty list")
	}
	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		if err := c.Sources[i].validate(); err != nil {
			return err
		}
		if seen[c.Sources[i].Name] {
			return fmt.Errorf("duplicate source name: %s", c.Sources[i].Name)
		}
		seen[c.Sources[i].Name] = true
	}
	if err := c.Sink.validate(); err != nil {
		return err
	}
	if err := c.Runtime.validate(); err != nil {
		return err
	}
	if c.Identity.ClientID == "" {
		return fmt.Errorf("identity.client_id is required")
	}
	if c.Identity.AgentID == "" {
		return fmt.Errorf("identity.agent_id is required")
	}
	return nil
}

func (s SQLConfig) validate() error {
	if s.Host == "" {
		return fmt.Errorf("sql.host is required")
	}
	if s.Database == "" {
		return fmt.Errorf("sql.database is required")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("sql.timeout must be > 0")
	}
	return nil
}

func (s *Source) validate() error {
	if s.Name == "" {
		return fmt.Errorf("sources[].name is required")
	}
	switch s.Kind {
	case KindTable:
		if s.Table == "" {
			return fmt.Errorf("source %s: table required for kind=table", s.Name)
		}
	case KindQuery:
		if s.Query == "" {
			return fmt.Errorf("source %s: query required for kind=query", s.Name)
		}
	default:
		return fmt.Errorf("source %s: kind must be 'table' or 'query'", s.Name)
	}
	inc := &s.Incremental
	switch inc.Mode {
	case ModeID:
	case ModeTS:
		if inc.TSColumn == "" {
			return fmt.Errorf("source %s: incremental.ts_column required when mode=ts", s.Name)
		}
	default:
		return fmt.Errorf("source %s: incremental.mode must be 'id' or 'ts'", s.Name)
	}
	if _, err := inc.StartFromTime(); err != nil {
		return fmt.Errorf("source %s: invalid incremental.start_from: %w", s.Name, err)
	}
	return nil
}

func (s SinkConfig) validate() error {
	if s.APIURL == "" {
		return fmt.Errorf("sink.api_url is required")
	}
	if s.Token == "" {
		return fmt.Errorf("sink.token is required")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("sink.timeout must be > 0")
	}
	return nil
}

func (r RuntimeConfig) validate() error {
	if r.Interval <= 0 {
		return fmt.Errorf("runtime.interval must be > 0")
	}
	if r.BatchSize <= 0 {
		return fmt.Errorf("runtime.batch_size must be > 0")
	}
	if r.RetryBackoff <= 0 {
		return fmt.Errorf("runtime.retry_backoff must be > 0")
	}
	if r.QueueMaxMB < 0 {
		return fmt.Errorf("runtime.queue_max_mb must be >= 0")
	}
	if r.LookbackMinutes < 0 {
		return fmt.Errorf("runtime.lookback_minutes must be >= 0")
	}
	if r.ReprocessEveryMinutes < 0 {
		return fmt.Errorf("runtime.reprocess_every_minutes must be >= 0")
	}
	if r.ReprocessWindowMinutes < 0 {
		return fmt.Errorf("runtime.reprocess_window_minutes must be >= 0")
	}
	return nil
}

// ParseTimestamp accepts the timestamp formats operators use in config
// files and that the sink round-trips in payloads.
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp: %q", value)
}
