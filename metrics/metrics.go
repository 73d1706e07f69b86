package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

const (
	MetricsNamespace = "outcome"
)

var (
	Debug                bool = false
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	busEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "bus_events_total",
		Help:      "Count of lifecycle notifications delivered by the event bus",
	}, []string{
		"event",
	})

	hostEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "host_events_total",
		Help:      "Count of lifecycle callbacks received from the host test framework",
	}, []string{
		"dialect",
		"event",
	})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "outcomes_total",
		Help:      "Count of per-invocation test outcomes recorded",
	}, []string{
		"result",
	})

	scenariosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "scenarios_total",
		Help:      "Count of consolidated scenario outcomes reported",
	}, []string{
		"run_id",
		"result",
	})

	aggregationRowsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "aggregation_rows_merged_total",
		Help:      "Number of data table rows merged into scenario outcomes",
	})

	aggregationRowsReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "aggregation_rows_reconciled_total",
		Help:      "Number of data table rows whose result was forced to the overall test result",
	})

	aggregationDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "aggregation_duplicates_dropped_total",
		Help:      "Number of duplicate outcomes dropped before aggregation",
	})

	planDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "plan_duration_seconds",
		Help:      "Total duration of the consolidated outcomes of a plan run",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordBusEvent(event string) {
	busEventsTotal.WithLabelValues(event).Inc()
}

func RecordHostEvent(dialect string, event string) {
	hostEventsTotal.WithLabelValues(dialect, event).Inc()
}

func RecordOutcome(result types.Result) {
	if !result.IsValid() {
		log.Error("RecordOutcome - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc", "m", "outcomes_total", "result", result)
	}
	outcomesTotal.WithLabelValues(string(result)).Inc()
}

// RecordAggregation records the counters of one aggregation pass
func RecordAggregation(rowsMerged int, rowsReconciled int, duplicates int) {
	aggregationRowsMerged.Add(float64(rowsMerged))
	aggregationRowsReconciled.Add(float64(rowsReconciled))
	aggregationDuplicates.Add(float64(duplicates))
}

// RecordScenarios records the consolidated outcomes handed to the reporters
func RecordScenarios(runID string, results []types.Result, duration time.Duration) {
	for _, result := range results {
		if !result.IsValid() {
			log.Error("RecordScenarios - invalid result", "result", result)
			continue
		}
		scenariosTotal.WithLabelValues(runID, string(result)).Inc()
	}
	planDuration.WithLabelValues(runID).Set(duration.Seconds())
}
