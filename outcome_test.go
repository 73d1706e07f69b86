package outcome

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-outcome/exitcodes"
	"github.com/ethereum-optimism/infra/op-outcome/host"
	"github.com/ethereum-optimism/infra/op-outcome/reporting"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

func writeFile(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestConfig(t *testing.T, input string) *Config {
	dir := t.TempDir()
	return &Config{
		Input:     writeFile(t, dir, "events.jsonl", input),
		Dialect:   host.DialectLifecycle,
		OutputDir: filepath.Join(dir, "out"),
		RunID:     "run-test",
		Log:       log.NewLogger(log.DiscardHandler()),
	}
}

func newProcessor(t *testing.T, cfg *Config) (*Processor, chan error) {
	t.Helper()
	shutdown := make(chan error, 1)
	p, err := New(context.Background(), cfg, "test", func(err error) { shutdown <- err })
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Stop(context.Background()) })
	return p, shutdown
}

func TestProcessor_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "login.csv", "user,expected\nalice,welcome\nbob,welcome\nmallory,denied\n")
	manifest := writeFile(t, dir, "datasources.yaml", strings.Join([]string{
		"tables:",
		"  - method: AuthTest.login_test",
		"    file: login.csv",
		"disabled:",
		"  - AuthTest.legacy_login",
	}, "\n"))

	cfg := newTestConfig(t, loginLifecycleLog())
	cfg.DataSources = manifest
	p, _ := newProcessor(t, cfg)

	err := p.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.Contains(t, err.Error(), "1 of 2 scenarios unsuccessful")
	assert.False(t, p.Stopped())

	doc, err := reporting.ReadDocument(filepath.Join(cfg.OutputDir, reporting.OutcomesFile))
	require.NoError(t, err)
	assert.Equal(t, "run-test", doc.RunID)
	assert.Equal(t, types.ResultFailure, doc.Result)
	require.Len(t, doc.Outcomes, 2)

	status := p.Status()
	assert.True(t, status.Finished)
	assert.Len(t, status.Scenarios, 2)
	assert.Equal(t, int64(1), status.Summary.Tests.Failed)

	require.NoError(t, p.Stop(context.Background()))
	assert.True(t, p.Stopped())
}

func TestProcessor_PassingScenario(t *testing.T) {
	cfg := newTestConfig(t, strings.Join([]string{
		`{"event":"plan_started","plan":[{"unique_id":"e","type":"container"},{"unique_id":"c","parent_id":"e","type":"container","source":{"class":"Shop"}},{"unique_id":"m","parent_id":"c","display_name":"pay()","type":"test","source":{"class":"Shop","method":"pay"}}]}`,
		`{"event":"execution_started","id":"c"}`,
		`{"event":"execution_started","id":"m"}`,
		`{"event":"execution_finished","id":"m","status":"successful"}`,
		`{"event":"execution_finished","id":"c","status":"successful"}`,
		`{"event":"plan_finished"}`,
	}, "\n"))
	p, shutdown := newProcessor(t, cfg)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, <-shutdown)
	require.Len(t, p.Outcomes(), 1)
	assert.Equal(t, types.ResultSuccess, p.Outcomes()[0].Result())
}

func TestProcessor_RuntimeErrors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		cfg := newTestConfig(t, "")
		cfg.Input = filepath.Join(t.TempDir(), "missing.jsonl")
		p, _ := newProcessor(t, cfg)
		err := p.Start(context.Background())
		require.Error(t, err)
		assert.True(t, IsRuntimeError(err))
		var pathErr *os.PathError
		assert.True(t, errors.As(err, &pathErr))
	})

	t.Run("unfinished plan input", func(t *testing.T) {
		p, _ := newProcessor(t, newTestConfig(t, `{"event":"execution_started","id":"x"}`))
		err := p.Start(context.Background())
		require.Error(t, err)
		assert.True(t, IsRuntimeError(err))
	})
}

func TestNew_InvalidManifest(t *testing.T) {
	cfg := newTestConfig(t, "")
	cfg.DataSources = writeFile(t, t.TempDir(), "datasources.yaml", "tables:\n  - method: nodot\n    file: x.csv\n")
	_, err := New(context.Background(), cfg, "test", func(error) {})
	require.Error(t, err)
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "test", func(error) {})
	require.Error(t, err)
}

func TestErrors(t *testing.T) {
	inner := errors.New("boom")
	runtimeErr := NewRuntimeError(inner)
	assert.True(t, IsRuntimeError(runtimeErr))
	assert.ErrorIs(t, runtimeErr, inner)
	assert.Equal(t, "runtime error: boom", runtimeErr.Error())
	assert.False(t, IsTestFailureError(runtimeErr))

	failure := NewTestFailureError("2 failed")
	assert.True(t, IsTestFailureError(failure))
	assert.Equal(t, "test failure: 2 failed", failure.Error())
	assert.False(t, IsRuntimeError(failure))
	assert.False(t, IsRuntimeError(nil))

	assert.Equal(t, exitcodes.RuntimeErr, runtimeErr.ExitCode())
	assert.Equal(t, exitcodes.TestFailure, failure.ExitCode())
}
