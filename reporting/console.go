package reporting

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

// ConsoleReporter prints a table of scenarios and their data rows
type ConsoleReporter struct {
	log   log.Logger
	out   io.Writer
	title string
}

func NewConsoleReporter(logger log.Logger, out io.Writer) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{
		log:   logger,
		out:   out,
		title: "Test Outcomes",
	}
}

func (c *ConsoleReporter) GenerateReportsFor(_ context.Context, outcomes []*types.TestOutcome, _ string) error {
	c.log.Info("Printing outcomes...", "scenarios", len(outcomes))
	overall := overallResult(outcomes)

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle(fmt.Sprintf("%s (%s)", c.title, formatDuration(totalDuration(outcomes))))
	t.AppendHeader(table.Row{"Type", "Scenario", "Case", "Duration", "Rows", "Result", "Failure"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "Scenario", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Rows", Align: text.AlignRight},
		{Name: "Failure", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	counts := make(map[types.Result]int)
	for _, o := range outcomes {
		result := o.Result()
		counts[result]++

		rows := "-"
		if o.IsDataDriven() {
			rows = fmt.Sprint(o.DataTable.Size())
		}
		t.AppendRow(table.Row{
			"Scenario",
			o.TitleWithQualifier(),
			o.TestCase,
			formatDuration(o.Duration()),
			rows,
			resultString(result),
			failureMessage(o.FailureCause()),
		})
		if !o.IsDataDriven() {
			continue
		}
		for i, row := range o.DataTable.Rows {
			prefix := "├──"
			if i == len(o.DataTable.Rows)-1 {
				prefix = "└──"
			}
			t.AppendRow(table.Row{
				"",
				fmt.Sprintf("%s %s", prefix, o.DataTable.DescribeRow(row)),
				"",
				"",
				"",
				resultString(row.Result),
				"",
			})
		}
		t.AppendSeparator()
	}

	switch {
	case len(outcomes) == 0:
		t.SetStyle(table.StyleLight)
	case overall.IsUnsuccessful():
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case overall == types.ResultSuccess:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d scenarios", len(outcomes)),
		"",
		formatDuration(totalDuration(outcomes)),
		"",
		resultString(overall),
		summarizeCounts(counts),
	})
	t.Render()
	return nil
}

func resultString(r types.Result) string {
	switch r {
	case types.ResultSuccess:
		return "PASS"
	case types.ResultFailure:
		return "FAIL"
	case types.ResultError:
		return "ERROR"
	case types.ResultCompromised:
		return "COMPROMISED"
	case types.ResultAborted:
		return "ABORTED"
	case types.ResultSkipped:
		return "SKIP"
	case types.ResultPending:
		return "PENDING"
	case types.ResultIgnored:
		return "IGNORED"
	default:
		return "UNKNOWN"
	}
}

func failureMessage(cause *types.FailureCause) string {
	if cause == nil {
		return ""
	}
	return cause.Message
}

// summarizeCounts renders the non-zero result counts, most severe first
func summarizeCounts(counts map[types.Result]int) string {
	var s string
	for _, r := range types.AllResults {
		if counts[r] == 0 {
			continue
		}
		if s != "" {
			s += ", "
		}
		s += fmt.Sprintf("%d %s", counts[r], r)
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}
