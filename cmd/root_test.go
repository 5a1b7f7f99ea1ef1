package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/credit-scorer/internal/config"
	"github.com/sells-group/credit-scorer/internal/scoring"
)

// useConfig installs a valid configuration for the duration of the test.
func useConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	c := &config.Config{
		Scoring: scoring.DefaultConfig(),
		Model:   config.ModelConfig{TimeoutMs: 250},
		Store: config.StoreConfig{
			Driver:        "sqlite",
			DatabaseURL:   filepath.Join(t.TempDir(), "test.db"),
			RetryAttempts: 1,
		},
		Cache:  config.CacheConfig{Driver: "memory", TTLMinutes: 5},
		Server: config.ServerConfig{Port: 8000},
		Batch:  config.BatchConfig{MaxConcurrent: 4},
		Monitoring: config.MonitoringConfig{
			LookbackWindowHours:   24,
			MinSample:             1,
			DegradedRateThreshold: 0.5,
			HighRiskRateThreshold: 0.5,
		},
	}
	if mutate != nil {
		mutate(c)
	}
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "score", "applications", "model", "config"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "credit-scorer", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestScoreCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "format", "save", "concurrency", "name", "age", "income", "employment-status", "late-payments"} {
		assert.NotNil(t, scoreCmd.Flags().Lookup(name), "score should have --%s flag", name)
	}
	assert.Equal(t, "table", scoreCmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, "i", scoreCmd.Flags().Lookup("input").Shorthand)
}

func TestApplicationsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range applicationsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "applications should have subcommand %q", name)
	}

	flag := applicationsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestModelAndConfigCommands(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"model", "inspect"})
	require.NoError(t, err)
	assert.Equal(t, "inspect", cmd.Name())

	cmd, _, err = rootCmd.Find([]string{"config", "check"})
	require.NoError(t, err)
	assert.Equal(t, "check", cmd.Name())
}
