package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file, substitutes ${VAR} environment
// references, applies defaults, and validates the result.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is operator-controlled
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a validated Config from raw YAML bytes. Defaults are
// seeded before unmarshaling so that an explicit zero survives: a
// configured queue_max_mb of 0 means unbounded, while an absent key
// falls back to 200.
func Parse(data []byte) (*Config, error) {
	content := substituteEnvVars(string(data))

	cfg := defaultConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDerivedDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		SQL: SQLConfig{
			Port:    5432,
			SSLMode: "prefer",
			Timeout: 5,
		},
		Sink: SinkConfig{
			VerifySSL: true,
			Timeout:   10,
		},
		Runtime: RuntimeConfig{
			Interval:   5,
			BatchSize:  100,
			QueueMaxMB: 200,
			LogLevel:   "info",
		},
		Paths: PathsConfig{
			State: "state.json",
			Queue: "queue.jsonl",
		},
	}
}

// applyDerivedDefaults fills fields whose default depends on another
// parsed value.
func (c *Config) applyDerivedDefaults() {
	for i := range c.Sources {
		src := &c.Sources[i]
		if src.Kind == "" {
			src.Kind = KindTable
		}
		inc := &src.Incremental
		if inc.Mode == "" {
			inc.Mode = ModeID
		}
		if inc.IDColumn == "" {
			inc.IDColumn = "id"
		}
		if inc.TieBreaker == "" {
			inc.TieBreaker = inc.IDColumn
		}
	}
	if c.Runtime.RetryBackoff == 0 {
		c.Runtime.RetryBackoff = c.Runtime.Interval
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
