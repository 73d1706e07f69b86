package eventbus

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-outcome/types"
)

type journalListener struct {
	NoopListener
	name    string
	journal *[]string
	resets  int
}

func (j *journalListener) add(event string) {
	*j.journal = append(*j.journal, fmt.Sprintf("%s:%s", j.name, event))
}

func (j *journalListener) TestStarted(name string, _ string) { j.add("started " + name) }
func (j *journalListener) TestFinished()                     { j.add("finished") }
func (j *journalListener) TestFailed(err error)              { j.add("failed " + err.Error()) }
func (j *journalListener) ExampleStarted(row types.DataTableRow) {
	j.add(fmt.Sprintf("example %v", row.Values))
}
func (j *journalListener) Reset() { j.resets++ }

func newTestBus() *Bus {
	return New(log.NewLogger(log.DiscardHandler()))
}

func TestBus_DeliversInRegistrationOrder(t *testing.T) {
	var journal []string
	bus := newTestBus()
	bus.RegisterListener(&journalListener{name: "a", journal: &journal})
	bus.RegisterListener(&journalListener{name: "b", journal: &journal})

	bus.TestStarted("login%Login", "LoginTest")
	bus.ExampleStarted(types.NewDataTableRow("alice", "secret"))
	bus.TestFailed(errors.New("boom"))
	bus.TestFinished()

	assert.Equal(t, []string{
		"a:started login%Login",
		"b:started login%Login",
		"a:example [alice secret]",
		"b:example [alice secret]",
		"a:failed boom",
		"b:failed boom",
		"a:finished",
		"b:finished",
	}, journal)
}

func TestBus_ClearResetsListeners(t *testing.T) {
	var journal []string
	a := &journalListener{name: "a", journal: &journal}
	b := &journalListener{name: "b", journal: &journal}
	bus := newTestBus()
	bus.RegisterListener(a)
	bus.RegisterListener(b)

	bus.Clear()

	assert.Equal(t, 1, a.resets)
	assert.Equal(t, 1, b.resets)
	require.Len(t, bus.Listeners(), 2, "clear keeps registrations")
}

func TestBus_NoListeners(t *testing.T) {
	bus := newTestBus()
	assert.NotPanics(t, func() {
		bus.SuiteStarted("suite")
		bus.StepStarted("step")
		bus.StepFailed(errors.New("x"))
		bus.UseExamplesFrom(nil)
		bus.SuiteFinished()
	})
	assert.Empty(t, bus.Listeners())
}

func TestBus_ListenersReturnsCopy(t *testing.T) {
	bus := newTestBus()
	bus.RegisterListener(NoopListener{})

	listeners := bus.Listeners()
	listeners[0] = nil

	assert.NotNil(t, bus.Listeners()[0])
}
