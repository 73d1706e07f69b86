package listener

import (
	"sync"
	"sync/atomic"

	"github.com/ethereum-optimism/infra/op-outcome/host"
)

// Counts tallies executions by terminal status
type Counts struct {
	Succeeded int64 `json:"succeeded"`
	Aborted   int64 `json:"aborted"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
}

func (c Counts) Total() int64 {
	return c.Succeeded + c.Aborted + c.Failed + c.Skipped
}

// Failure describes an execution that finished with the failed status
type Failure struct {
	UniqueID    string `json:"unique_id"`
	DisplayName string `json:"display_name"`
	Message     string `json:"message"`
}

// Summary is a snapshot of the execution counters of a run
type Summary struct {
	Containers Counts    `json:"containers"`
	Tests      Counts    `json:"tests"`
	Failures   []Failure `json:"failures,omitempty"`
}

type atomicCounts struct {
	succeeded atomic.Int64
	aborted   atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

func (c *atomicCounts) inc(status host.Status) {
	switch status {
	case host.StatusSuccessful:
		c.succeeded.Add(1)
	case host.StatusAborted:
		c.aborted.Add(1)
	case host.StatusFailed:
		c.failed.Add(1)
	case host.StatusSkipped:
		c.skipped.Add(1)
	}
}

func (c *atomicCounts) load() Counts {
	return Counts{
		Succeeded: c.succeeded.Load(),
		Aborted:   c.aborted.Load(),
		Failed:    c.failed.Load(),
		Skipped:   c.skipped.Load(),
	}
}

type summaryCounters struct {
	containers atomicCounts
	tests      atomicCounts

	mu       sync.Mutex
	failures []Failure
}

// record counts an execution as a container, a test, or both
func (s *summaryCounters) record(id *host.TestIdentifier, status host.Status) {
	if id.Type.IsContainer() {
		s.containers.inc(status)
	}
	if id.Type.IsTest() {
		s.tests.inc(status)
	}
}

func (s *summaryCounters) addFailure(id *host.TestIdentifier, cause error) {
	f := Failure{UniqueID: id.UniqueID, DisplayName: id.DisplayName}
	if cause != nil {
		f.Message = cause.Error()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, f)
}

func (s *summaryCounters) snapshot() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		Containers: s.containers.load(),
		Tests:      s.tests.load(),
		Failures:   append([]Failure(nil), s.failures...),
	}
}
