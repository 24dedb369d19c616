// Package model holds the configuration and the data types exchanged
// between the scheduler, the runner and the aggregation facade.
package model

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MaxWorkersCap is the upper bound on concurrent script executions.
	MaxWorkersCap = 10

	// DefaultTimeoutSeconds applies to scripts without an own timeout.
	DefaultTimeoutSeconds = 20

	DefaultHost = "0.0.0.0"
	DefaultPort = 9092
)

// Config is the parsed promexec.yaml. All fields are optional, zero
// values resolve to defaults via the accessor methods.
type Config struct {
	Host          string   `yaml:"host,omitempty"`
	Port          int      `yaml:"port,omitempty"`
	InstanceID    string   `yaml:"instance_id,omitempty"`
	RawMaxWorkers string   `yaml:"max_workers,omitempty"`
	RawTimeout    int      `yaml:"default_timeout,omitempty"` // seconds
	Verbose       bool     `yaml:"verbose,omitempty"`
	Scripts       []Script `yaml:"scripts,omitempty"`
}

// Script is one configured script entry.
type Script struct {
	Path           string   `yaml:"path"`
	Args           []string `yaml:"args,omitempty"`
	TimeoutSeconds int      `yaml:"timeout,omitempty"`
}

// LoadConfig decodes YAML from r, rejecting unknown keys.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// MaxWorkers resolves the configured worker count: an explicit value is
// clamped to [1, MaxWorkersCap], an unparseable value falls back to 1
// (sequential), unset defaults to min(len(scripts), cap) with a floor
// of 1.
func (c Config) MaxWorkers() int {
	if c.RawMaxWorkers == "" {
		n := len(c.Scripts)
		if n > MaxWorkersCap {
			n = MaxWorkersCap
		}
		if n < 1 {
			n = 1
		}
		return n
	}

	n, err := strconv.Atoi(c.RawMaxWorkers)
	if err != nil {
		return 1
	}
	if n < 1 {
		return 1
	}
	if n > MaxWorkersCap {
		return MaxWorkersCap
	}
	return n
}

// Timeout returns the fallback timeout for scripts without an own one.
func (c Config) Timeout() time.Duration {
	if c.RawTimeout > 0 {
		return time.Duration(c.RawTimeout) * time.Second
	}
	return DefaultTimeoutSeconds * time.Second
}

// Addr returns the host:port the HTTP server binds to.
func (c Config) Addr() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ScriptSpecs converts the configured script entries into immutable
// specs ready for scheduling. Entries without a path are skipped before
// a spec exists; relative paths resolve against baseDir, the directory
// of the loaded config file.
func (c Config) ScriptSpecs(baseDir string) []ScriptSpec {
	specs := make([]ScriptSpec, 0, len(c.Scripts))
	for i, s := range c.Scripts {
		if s.Path == "" {
			slog.Warn("skipping script entry without path", "index", i)
			continue
		}
		path := s.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		timeout := c.Timeout()
		if s.TimeoutSeconds > 0 {
			timeout = time.Duration(s.TimeoutSeconds) * time.Second
		}
		specs = append(specs, ScriptSpec{
			Position: len(specs),
			Path:     path,
			Args:     append([]string(nil), s.Args...),
			Timeout:  timeout,
		})
	}
	return specs
}
