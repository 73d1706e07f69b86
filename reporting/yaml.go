package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// OutcomesFile is the name of the file written by YAMLReporter
const OutcomesFile = "outcomes.yaml"

// Document is the YAML form of a plan's outcomes
type Document struct {
	RunID     string         `yaml:"run_id,omitempty"`
	Generated time.Time      `yaml:"generated"`
	Result    types.Result   `yaml:"result"`
	Outcomes  []OutcomeEntry `yaml:"outcomes"`
}

type OutcomeEntry struct {
	Name      string              `yaml:"name"`
	Title     string              `yaml:"title"`
	TestCase  string              `yaml:"test_case,omitempty"`
	Qualifier string              `yaml:"qualifier,omitempty"`
	Result    types.Result        `yaml:"result"`
	Manual    bool                `yaml:"manual,omitempty"`
	Duration  time.Duration       `yaml:"duration"`
	Failure   *types.FailureCause `yaml:"failure,omitempty"`
	Steps     []StepEntry         `yaml:"steps,omitempty"`
	DataTable *types.DataTable    `yaml:"data_table,omitempty"`
}

type StepEntry struct {
	Description string              `yaml:"description"`
	Result      types.Result        `yaml:"result"`
	Duration    time.Duration       `yaml:"duration"`
	Failure     *types.FailureCause `yaml:"failure,omitempty"`
	Children    []StepEntry         `yaml:"children,omitempty"`
}

// YAMLReporter writes the outcomes to outcomes.yaml in the output directory
type YAMLReporter struct {
	log   log.Logger
	runID string
	now   func() time.Time
}

func NewYAMLReporter(logger log.Logger, runID string) *YAMLReporter {
	return &YAMLReporter{log: logger, runID: runID, now: time.Now}
}

func (y *YAMLReporter) GenerateReportsFor(_ context.Context, outcomes []*types.TestOutcome, outputDir string) error {
	if outputDir == "" {
		return fmt.Errorf("no output directory for %s", OutcomesFile)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	doc := NewDocument(y.runID, outcomes)
	doc.Generated = y.now().UTC()
	content, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal outcomes: %w", err)
	}

	path := filepath.Join(outputDir, OutcomesFile)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	y.log.Info("Wrote outcomes", "path", path, "scenarios", len(outcomes))
	return nil
}

// NewDocument converts outcomes into their YAML form
func NewDocument(runID string, outcomes []*types.TestOutcome) *Document {
	doc := &Document{
		RunID:    runID,
		Result:   overallResult(outcomes),
		Outcomes: make([]OutcomeEntry, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		entry := OutcomeEntry{
			Name:      o.BaseName(),
			Title:     o.TitleWithQualifier(),
			TestCase:  o.TestCase,
			Qualifier: o.Qualifier,
			Result:    o.Result(),
			Manual:    o.Manual,
			Duration:  o.Duration(),
			Failure:   o.FailureCause(),
			DataTable: o.DataTable.Clone(),
		}
		for _, step := range o.Steps {
			entry.Steps = append(entry.Steps, stepEntry(step))
		}
		doc.Outcomes = append(doc.Outcomes, entry)
	}
	return doc
}

func stepEntry(step *types.TestStep) StepEntry {
	entry := StepEntry{
		Description: step.Description,
		Result:      step.Result,
		Duration:    step.Duration(),
		Failure:     step.Failure,
	}
	for _, child := range step.Children {
		entry.Children = append(entry.Children, stepEntry(child))
	}
	return entry
}

// ReadDocument loads an outcomes.yaml file
func ReadDocument(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &doc, nil
}
