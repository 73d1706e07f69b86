package types

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// NameSeparator separates the method name from the host display name in the
// name passed when a test starts ("method%display")
const NameSeparator = "%"

var rowMarker = regexp.MustCompile(`\[\d+\]`)

// StripRowMarkers removes every "[n]" parameterization marker from name
func StripRowMarkers(name string) string {
	return rowMarker.ReplaceAllString(name, "")
}

// RenumberRowMarkers replaces every "[n]" marker in s with "[index]"
func RenumberRowMarkers(s string, index int) string {
	return rowMarker.ReplaceAllLiteralString(s, "["+strconv.Itoa(index)+"]")
}

// TestOutcome is the record of one scenario execution
type TestOutcome struct {
	Name        string
	DisplayName string
	TestCase    string
	Qualifier   string

	Steps     []*TestStep
	DataTable *DataTable

	Manual    bool
	StartTime time.Time
	Elapsed   time.Duration

	// result and failure are set when the outcome has an explicit, authoritative
	// result (failed, aborted or ignored). Otherwise both derive from the steps.
	result  Result
	failure *FailureCause
}

// NewTestOutcome creates an outcome for the named test owned by testCase
func NewTestOutcome(name string, testCase string) *TestOutcome {
	return &TestOutcome{
		Name:     name,
		TestCase: testCase,
		Steps:    make([]*TestStep, 0),
	}
}

// ParseTestName splits a "method%display" name into its method and display parts
func ParseTestName(fullName string) (name string, displayName string) {
	name, displayName, _ = strings.Cut(fullName, NameSeparator)
	return name, displayName
}

// BaseName returns the name with parameterization markers removed. It is
// the key used to group the invocations of one scenario.
func (o *TestOutcome) BaseName() string {
	return StripRowMarkers(o.Name)
}

// Title returns the human readable title of the outcome
func (o *TestOutcome) Title() string {
	if o.DisplayName != "" {
		return o.DisplayName
	}
	return Humanize(o.Name)
}

// TitleWithQualifier returns the title followed by the qualifier, if any
func (o *TestOutcome) TitleWithQualifier() string {
	if o.Qualifier == "" {
		return o.Title()
	}
	return o.Title() + " " + o.Qualifier
}

// RecordStep appends a top-level step
func (o *TestOutcome) RecordStep(step *TestStep) {
	o.Steps = append(o.Steps, step)
}

// SetResult sets an explicit result that takes precedence over the steps
func (o *TestOutcome) SetResult(result Result) {
	o.result = result
}

// FailedWith sets an explicit failure cause and the result it implies
func (o *TestOutcome) FailedWith(cause *FailureCause) {
	if cause == nil {
		return
	}
	o.failure = cause
	o.result = cause.Result()
}

// AbortedWith marks the outcome as aborted. The cause may be nil.
func (o *TestOutcome) AbortedWith(cause *FailureCause) {
	o.failure = cause
	o.result = ResultAborted
}

// HasExplicitResult reports whether the result was set rather than derived
func (o *TestOutcome) HasExplicitResult() bool {
	return o.result != ""
}

// Result returns the explicit result when set, otherwise the rollup of the
// top-level step results, otherwise success
func (o *TestOutcome) Result() Result {
	if o.result != "" {
		return o.result
	}
	if len(o.Steps) == 0 {
		return ResultSuccess
	}
	results := make([]Result, 0, len(o.Steps))
	for _, step := range o.Steps {
		results = append(results, step.Result)
	}
	return Rollup(results...)
}

// FailureCause returns the explicit cause, otherwise the cause of the first failing step
func (o *TestOutcome) FailureCause() *FailureCause {
	if o.failure != nil {
		return o.failure
	}
	for _, step := range o.Steps {
		for _, s := range step.Flatten() {
			if s.Failure != nil {
				return s.Failure
			}
		}
	}
	return nil
}

// IsDataDriven reports whether a data table with at least one row is attached
func (o *TestOutcome) IsDataDriven() bool {
	return o.DataTable.Size() > 0
}

// AddRow appends a row to the outcome's data table, creating the table if needed
func (o *TestOutcome) AddRow(headers []string, row DataTableRow) {
	if o.DataTable == nil {
		o.DataTable = NewDataTable(headers...)
	}
	o.DataTable.AddRow(row)
}

// Duration returns the sum of the step durations, or the elapsed time of
// the test when the steps carry no duration
func (o *TestOutcome) Duration() time.Duration {
	var total time.Duration
	for _, step := range o.Steps {
		total += step.Duration()
	}
	if total > 0 {
		return total
	}
	return o.Elapsed
}

// Clone returns a deep copy of the outcome
func (o *TestOutcome) Clone() *TestOutcome {
	if o == nil {
		return nil
	}
	c := *o
	c.Steps = make([]*TestStep, 0, len(o.Steps))
	for _, step := range o.Steps {
		c.Steps = append(c.Steps, step.Clone())
	}
	c.DataTable = o.DataTable.Clone()
	if o.failure != nil {
		failure := *o.failure
		c.failure = &failure
	}
	return &c
}

// Humanize turns a method name such as "TestLoginUser" or "login_user" into "Login user"
func Humanize(name string) string {
	name = StripRowMarkers(name)
	if rest, ok := strings.CutPrefix(name, "Test"); ok && rest != "" {
		name = rest
	}

	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, strings.ToLower(string(current)))
			current = current[:0]
		}
	}
	prev := rune(0)
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '/':
			flush()
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
		prev = r
	}
	flush()

	if len(words) == 0 {
		return ""
	}
	sentence := []rune(strings.Join(words, " "))
	sentence[0] = unicode.ToUpper(sentence[0])
	return string(sentence)
}
