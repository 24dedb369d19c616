package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/promexec/promexec/internal/model"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	const doc = `
host: 127.0.0.1
port: 9200
instance_id: web-01
max_workers: 4
default_timeout: 30
scripts:
  - path: /opt/metrics/node.sh
  - path: disk.sh
    args: ["--mount", "/data"]
    timeout: 5
`
	cfg, err := model.LoadConfig(strings.NewReader(doc))
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9200", cfg.Addr())
	require.Equal(t, "web-01", cfg.InstanceID)
	require.Equal(t, 4, cfg.MaxWorkers())
	require.Equal(t, 30*time.Second, cfg.Timeout())

	specs := cfg.ScriptSpecs("/etc/promexec")
	require.Len(t, specs, 2)

	require.Equal(t, 0, specs[0].Position)
	require.Equal(t, "/opt/metrics/node.sh", specs[0].Path)
	require.Empty(t, specs[0].Args)
	require.Equal(t, 30*time.Second, specs[0].Timeout)

	require.Equal(t, 1, specs[1].Position)
	require.Equal(t, "/etc/promexec/disk.sh", specs[1].Path)
	require.Equal(t, []string{"--mount", "/data"}, specs[1].Args)
	require.Equal(t, 5*time.Second, specs[1].Timeout)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := model.LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9092", cfg.Addr())
	require.Equal(t, model.DefaultTimeoutSeconds*time.Second, cfg.Timeout())
	require.Equal(t, 1, cfg.MaxWorkers())
	require.Empty(t, cfg.ScriptSpecs("."))
}

func TestLoadConfigUnknownKey(t *testing.T) {
	t.Parallel()

	_, err := model.LoadConfig(strings.NewReader("scrpits: []\n"))
	require.Error(t, err)
}

func TestMaxWorkers(t *testing.T) {
	t.Parallel()

	scripts := func(n int) []model.Script {
		ret := make([]model.Script, n)
		for i := range ret {
			ret[i] = model.Script{Path: "x.sh"}
		}
		return ret
	}

	var testCases = []struct {
		scenario string
		given    model.Config
		then     int
	}{
		{"explicit", model.Config{RawMaxWorkers: "4"}, 4},
		{"clamped to cap", model.Config{RawMaxWorkers: "50"}, 10},
		{"clamped to one", model.Config{RawMaxWorkers: "0"}, 1},
		{"negative", model.Config{RawMaxWorkers: "-3"}, 1},
		{"unparseable falls back to sequential", model.Config{RawMaxWorkers: "abc"}, 1},
		{"unset uses script count", model.Config{Scripts: scripts(3)}, 3},
		{"unset capped by limit", model.Config{Scripts: scripts(24)}, 10},
		{"unset no scripts", model.Config{}, 1},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.then, tt.given.MaxWorkers())
		})
	}
}

func TestScriptSpecsSkipsEmptyPath(t *testing.T) {
	t.Parallel()

	cfg := model.Config{Scripts: []model.Script{
		{Path: "a.sh"},
		{Path: ""},
		{Path: "b.sh"},
	}}

	specs := cfg.ScriptSpecs("/etc/promexec")
	require.Len(t, specs, 2)
	require.Equal(t, "/etc/promexec/a.sh", specs[0].Path)
	require.Equal(t, 0, specs[0].Position)
	require.Equal(t, "/etc/promexec/b.sh", specs[1].Path)
	require.Equal(t, 1, specs[1].Position)
}

func TestLoadConfigMaxWorkersAsInt(t *testing.T) {
	t.Parallel()

	// YAML integers decode into the raw string field as well
	cfg, err := model.LoadConfig(strings.NewReader("max_workers: 6\n"))
	require.NoError(t, err)
	require.Equal(t, 6, cfg.MaxWorkers())
}
