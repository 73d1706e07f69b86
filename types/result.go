package types

import "fmt"

// Result represents the outcome of a test, a step or a data table row
type Result string

const (
	ResultSuccess     Result = "success"
	ResultFailure     Result = "failure"
	ResultError       Result = "error"
	ResultCompromised Result = "compromised"
	ResultAborted     Result = "aborted"
	ResultSkipped     Result = "skipped"
	ResultPending     Result = "pending"
	ResultIgnored     Result = "ignored"
)

// precedence ranks results for rollup; higher wins.
// aborted and skipped share a rank, as do the "did not run" results.
var precedence = map[Result]int{
	ResultError:       7,
	ResultFailure:     6,
	ResultCompromised: 5,
	ResultAborted:     4,
	ResultSkipped:     4,
	ResultSuccess:     3,
	ResultPending:     2,
	ResultIgnored:     1,
}

// AllResults lists every known result, most severe first
var AllResults = []Result{
	ResultError,
	ResultFailure,
	ResultCompromised,
	ResultAborted,
	ResultSkipped,
	ResultSuccess,
	ResultPending,
	ResultIgnored,
}

// IsValid reports whether r is one of the known results
func (r Result) IsValid() bool {
	_, ok := precedence[r]
	return ok
}

// IsUnsuccessful reports whether r is a failure, error or compromised result
func (r Result) IsUnsuccessful() bool {
	return r == ResultFailure || r == ResultError || r == ResultCompromised
}

// ParseResult converts a string into a Result
func ParseResult(s string) (Result, error) {
	r := Result(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown result %q", s)
	}
	return r, nil
}

// Rollup reduces a set of results to a single overall result using
// worst-case precedence: error > failure > compromised > aborted/skipped >
// success > pending > ignored. A set made only of ignored results is ignored.
// An empty set rolls up to skipped, since nothing ran.
func Rollup(results ...Result) Result {
	if len(results) == 0 {
		return ResultSkipped
	}

	overall := results[0]
	for _, r := range results[1:] {
		if precedence[r] > precedence[overall] {
			overall = r
		}
	}
	return overall
}
