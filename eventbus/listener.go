package eventbus

import "github.com/ethereum-optimism/infra/op-outcome/types"

// StepListener receives lifecycle notifications from the Bus
type StepListener interface {
	SuiteStarted(name string)
	SuiteFinished()

	TestStarted(name string, owner string)
	TestFinished()
	TestFailed(err error)
	TestAborted(err error)
	TestIgnored()
	TestSkipped()
	TestMarkedManual()
	TestQualified(qualifier string)

	StepStarted(description string)
	StepFinished()
	StepFailed(err error)

	UseExamplesFrom(table *types.DataTable)
	ExampleStarted(row types.DataTableRow)
	ExampleFinished()

	// Reset drops any in-flight state without unregistering the listener
	Reset()
}

// NoopListener implements StepListener with empty methods. Embed it to
// implement only the notifications a listener cares about.
type NoopListener struct{}

var _ StepListener = NoopListener{}

func (NoopListener) SuiteStarted(string)               {}
func (NoopListener) SuiteFinished()                    {}
func (NoopListener) TestStarted(string, string)        {}
func (NoopListener) TestFinished()                     {}
func (NoopListener) TestFailed(error)                  {}
func (NoopListener) TestAborted(error)                 {}
func (NoopListener) TestIgnored()                      {}
func (NoopListener) TestSkipped()                      {}
func (NoopListener) TestMarkedManual()                 {}
func (NoopListener) TestQualified(string)              {}
func (NoopListener) StepStarted(string)                {}
func (NoopListener) StepFinished()                     {}
func (NoopListener) StepFailed(error)                  {}
func (NoopListener) UseExamplesFrom(*types.DataTable)  {}
func (NoopListener) ExampleStarted(types.DataTableRow) {}
func (NoopListener) ExampleFinished()                  {}
func (NoopListener) Reset()                            {}
