package outcome

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-outcome/flags"
	"github.com/ethereum-optimism/infra/op-outcome/host"
)

// StdinInput selects standard input as the host event log
const StdinInput = "-"

// Config holds the application configuration
type Config struct {
	Input       string       // Host event log, or StdinInput
	Dialect     host.Dialect // Format of the host event log
	DataSources string       // Data source manifest, empty for none
	SourceDir   string       // Go module scanned for skipped tests, empty for none
	OutputDir   string       // Directory reports are written to
	PostgresURI string       // Outcomes are stored when set
	RunID       string
	HealthzAddr string
	Metrics     opmetrics.CLIConfig
	Log         log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	input := ctx.String(flags.Input.Name)
	if input == "" {
		return nil, errors.New("input is required")
	}
	if input != StdinInput {
		abs, err := filepath.Abs(input)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for input '%s': %w", input, err)
		}
		input = abs
	}

	dialect, err := host.ParseDialect(ctx.String(flags.Dialect.Name))
	if err != nil {
		return nil, err
	}

	dataSources, err := absOrEmpty(ctx.String(flags.DataSources.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for data sources: %w", err)
	}
	sourceDir, err := absOrEmpty(ctx.String(flags.SourceDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for source directory: %w", err)
	}

	outputDir := ctx.String(flags.OutputDir.Name)
	if outputDir == "" {
		outputDir = "outcomes"
	}
	outputDir, err = filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for output directory '%s': %w", outputDir, err)
	}

	runID := ctx.String(flags.RunID.Name)
	if runID == "" {
		runID = uuid.New().String()
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	return &Config{
		Input:       input,
		Dialect:     dialect,
		DataSources: dataSources,
		SourceDir:   sourceDir,
		OutputDir:   outputDir,
		PostgresURI: ctx.String(flags.PostgresURI.Name),
		RunID:       runID,
		HealthzAddr: ctx.String(flags.HealthzAddr.Name),
		Metrics:     metricsCfg,
		Log:         log,
	}, nil
}

func absOrEmpty(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}
