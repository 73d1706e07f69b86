// Package lifecycle replays a JSON lines log of host lifecycle callbacks.
//
// Each line is one callback:
//
//	{"event":"plan_started","plan":[{"unique_id":"[class:LoginTest]","type":"container","source":{"class":"LoginTest"}}]}
//	{"event":"dynamic_test_registered","identifier":{...}}
//	{"event":"execution_started","id":"[class:LoginTest]"}
//	{"event":"execution_skipped","id":"...","reason":"disabled"}
//	{"event":"reporting_entry_published","id":"...","entry":{"key":"step.start","value":"open the page"}}
//	{"event":"execution_finished","id":"...","status":"failed","cause":{"type":"assertion","message":"..."}}
//	{"event":"plan_finished"}
//
// Every line may carry an RFC 3339 "time", which drives the replay clock.
package lifecycle

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/host"
	"github.com/ethereum-optimism/infra/op-outcome/metrics"
	"github.com/ethereum-optimism/infra/op-outcome/types"
)

const (
	EventPlanStarted       = "plan_started"
	EventPlanFinished      = "plan_finished"
	EventDynamicRegistered = "dynamic_test_registered"
	EventStarted           = "execution_started"
	EventSkipped           = "execution_skipped"
	EventFinished          = "execution_finished"
	EventReportingEntry    = "reporting_entry_published"

	maxLineSize = 4 * 1024 * 1024
)

type Source struct {
	Class          string `json:"class"`
	Method         string `json:"method,omitempty"`
	ParameterTypes string `json:"parameter_types,omitempty"`
}

type Identifier struct {
	UniqueID    string    `json:"unique_id"`
	ParentID    string    `json:"parent_id,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Type        host.Type `json:"type"`
	Source      *Source   `json:"source,omitempty"`
}

func (i Identifier) toHost() *host.TestIdentifier {
	id := &host.TestIdentifier{
		UniqueID:    i.UniqueID,
		ParentID:    i.ParentID,
		DisplayName: i.DisplayName,
		Type:        i.Type,
	}
	if id.Type == "" {
		id.Type = host.TypeTest
	}
	switch {
	case i.Source == nil:
	case i.Source.Method != "":
		id.Source = &host.MethodSource{
			ClassName:            i.Source.Class,
			MethodName:           i.Source.Method,
			MethodParameterTypes: i.Source.ParameterTypes,
		}
	case i.Source.Class != "":
		id.Source = &host.ClassSource{ClassName: i.Source.Class}
	}
	return id
}

type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is one line of a lifecycle log
type Event struct {
	Event      string              `json:"event"`
	Time       time.Time           `json:"time,omitempty"`
	Plan       []Identifier        `json:"plan,omitempty"`
	Identifier *Identifier         `json:"identifier,omitempty"`
	ID         string              `json:"id,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	Status     host.Status         `json:"status,omitempty"`
	Cause      *types.FailureCause `json:"cause,omitempty"`
	Entry      *Entry              `json:"entry,omitempty"`
}

type Config struct {
	Log   log.Logger
	Clock *host.ReplayClock
}

// Adapter is the host.Adapter of the lifecycle dialect
type Adapter struct {
	log   log.Logger
	clock *host.ReplayClock
}

var _ host.Adapter = (*Adapter)(nil)

func New(cfg Config) *Adapter {
	logger := cfg.Log
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = host.NewReplayClock()
	}
	return &Adapter{
		log:   logger.New("component", "lifecycle-adapter"),
		clock: clock,
	}
}

// Run replays the log line by line. A log that ends without plan_finished
// is finished on its behalf.
func (a *Adapter) Run(ctx context.Context, r io.Reader, listener host.ExecutionListener) error {
	var plan *host.TestPlan
	finished := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("replay interrupted: %w", err)
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return fmt.Errorf("line %d: invalid event: %w", line, err)
		}
		if finished {
			return fmt.Errorf("line %d: %s event after %s", line, ev.Event, EventPlanFinished)
		}
		a.clock.Set(ev.Time)
		metrics.RecordHostEvent(string(host.DialectLifecycle), ev.Event)

		if ev.Event == EventPlanStarted {
			if plan != nil {
				return fmt.Errorf("line %d: plan started twice", line)
			}
			ids := make([]*host.TestIdentifier, 0, len(ev.Plan))
			for _, id := range ev.Plan {
				ids = append(ids, id.toHost())
			}
			plan = host.NewTestPlan(ids...)
			listener.TestPlanExecutionStarted(plan)
			continue
		}
		if plan == nil {
			return fmt.Errorf("line %d: %s event before %s", line, ev.Event, EventPlanStarted)
		}
		if ev.Event == EventPlanFinished {
			listener.TestPlanExecutionFinished(plan)
			finished = true
			continue
		}
		if err := a.dispatch(plan, ev, listener); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read lifecycle log: %w", err)
	}

	if plan == nil {
		return errors.New("no plan_started event in input")
	}
	if !finished {
		a.log.Warn("Lifecycle log ended without plan_finished")
		listener.TestPlanExecutionFinished(plan)
	}
	return nil
}

func (a *Adapter) dispatch(plan *host.TestPlan, ev Event, listener host.ExecutionListener) error {
	if ev.Event == EventDynamicRegistered {
		if ev.Identifier == nil {
			return errors.New("dynamic_test_registered without identifier")
		}
		id := ev.Identifier.toHost()
		plan.Add(id)
		listener.DynamicTestRegistered(id)
		return nil
	}

	id, ok := plan.Get(ev.ID)
	if !ok {
		return fmt.Errorf("unknown identifier %q", ev.ID)
	}
	switch ev.Event {
	case EventStarted:
		listener.ExecutionStarted(id)
	case EventSkipped:
		listener.ExecutionSkipped(id, ev.Reason)
	case EventReportingEntry:
		if ev.Entry == nil {
			return errors.New("reporting_entry_published without entry")
		}
		listener.ReportingEntryPublished(id, host.ReportEntry{
			Timestamp: a.clock.Now(),
			Key:       ev.Entry.Key,
			Value:     ev.Entry.Value,
		})
	case EventFinished:
		return listener.ExecutionFinished(id, host.ExecutionResult{
			Status: ev.Status,
			Cause:  ev.Cause.Err(),
		})
	default:
		a.log.Warn("Ignoring unknown event", "event", ev.Event, "id", ev.ID)
	}
	return nil
}
