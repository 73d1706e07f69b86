package outcome

import (
	"flag"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-outcome/flags"
	"github.com/ethereum-optimism/infra/op-outcome/host"
)

func newCLIContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("op-outcome", flag.ContinueOnError)
	for _, f := range flags.Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestNewConfig(t *testing.T) {
	logger := log.NewLogger(log.DiscardHandler())
	dir := t.TempDir()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := NewConfig(newCLIContext(t, "--input", filepath.Join(dir, "events.json")), logger)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "events.json"), cfg.Input)
		assert.Equal(t, host.DialectGoTest, cfg.Dialect)
		assert.Empty(t, cfg.DataSources)
		assert.Empty(t, cfg.SourceDir)
		assert.True(t, filepath.IsAbs(cfg.OutputDir))
		assert.Equal(t, "outcomes", filepath.Base(cfg.OutputDir))
		assert.NotEmpty(t, cfg.RunID, "a run id is generated")
		assert.False(t, cfg.Metrics.Enabled)
	})

	t.Run("all options", func(t *testing.T) {
		cfg, err := NewConfig(newCLIContext(t,
			"--input", "-",
			"--dialect", "lifecycle",
			"--data-sources", filepath.Join(dir, "datasources.toml"),
			"--source-dir", dir,
			"--output-dir", filepath.Join(dir, "out"),
			"--run-id", "nightly-42",
			"--postgres-uri", "postgres://localhost/outcomes",
		), logger)
		require.NoError(t, err)
		assert.Equal(t, StdinInput, cfg.Input)
		assert.Equal(t, host.DialectLifecycle, cfg.Dialect)
		assert.Equal(t, filepath.Join(dir, "datasources.toml"), cfg.DataSources)
		assert.Equal(t, dir, cfg.SourceDir)
		assert.Equal(t, filepath.Join(dir, "out"), cfg.OutputDir)
		assert.Equal(t, "nightly-42", cfg.RunID)
		assert.Equal(t, "postgres://localhost/outcomes", cfg.PostgresURI)
	})

	t.Run("missing input", func(t *testing.T) {
		_, err := NewConfig(newCLIContext(t), logger)
		require.Error(t, err)
	})

	t.Run("invalid dialect", func(t *testing.T) {
		_, err := NewConfig(newCLIContext(t, "--input", "-", "--dialect", "junit"), logger)
		require.Error(t, err)
	})
}
