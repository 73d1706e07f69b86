// Package exitcodes defines the exit codes used by op-outcome.
package exitcodes

// Exit code constants used by op-outcome:
//
// * Success (0): every scenario passed, or did not run
// * TestFailure (1): one or more scenarios failed, errored or were compromised
// * RuntimeErr (2): the plan could not be processed
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
