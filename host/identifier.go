// Package host defines the boundary between the outcome engine and the test
// framework that runs the tests. A host reports a plan of test identifiers and
// then lifecycle callbacks for each of them through an ExecutionListener.
package host

import (
	"fmt"
	"strings"
	"time"
)

// Type tags an identifier as a container, a test, or both
type Type string

const (
	TypeContainer        Type = "container"
	TypeTest             Type = "test"
	TypeContainerAndTest Type = "container_and_test"
)

func (t Type) IsContainer() bool {
	return t == TypeContainer || t == TypeContainerAndTest
}

func (t Type) IsTest() bool {
	return t == TypeTest || t == TypeContainerAndTest
}

// Source locates the code an identifier was built from
type Source interface {
	// Class is the name of the class (test case) owning the source
	Class() string
}

// ClassSource is the source of a class-level container
type ClassSource struct {
	ClassName string `json:"class_name"`
}

func (s *ClassSource) Class() string { return s.ClassName }

// MethodSource is the source of a method-level test or container
type MethodSource struct {
	ClassName  string `json:"class_name"`
	MethodName string `json:"method_name"`
	// MethodParameterTypes is the comma separated list of parameter type names
	MethodParameterTypes string `json:"method_parameter_types,omitempty"`
}

func (s *MethodSource) Class() string { return s.ClassName }

// Key returns the "ClassName.methodName" key used to look up data tables
func (s *MethodSource) Key() string {
	return s.ClassName + "." + s.MethodName
}

// ParameterTypes splits MethodParameterTypes into trimmed type names
func (s *MethodSource) ParameterTypes() []string {
	if strings.TrimSpace(s.MethodParameterTypes) == "" {
		return nil
	}
	parts := strings.Split(s.MethodParameterTypes, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// TestIdentifier is the host's handle on a node of the test plan
type TestIdentifier struct {
	UniqueID    string
	ParentID    string
	DisplayName string
	Type        Type
	Source      Source
}

func (id *TestIdentifier) String() string {
	return fmt.Sprintf("%s (%s)", id.UniqueID, id.Type)
}

// ClassSource returns the class source of the identifier, if it has one
func (id *TestIdentifier) ClassSource() (*ClassSource, bool) {
	s, ok := id.Source.(*ClassSource)
	return s, ok && s != nil
}

// MethodSource returns the method source of the identifier, if it has one
func (id *TestIdentifier) MethodSource() (*MethodSource, bool) {
	s, ok := id.Source.(*MethodSource)
	return s, ok && s != nil
}

// Status is the terminal status the host reports for an execution
type Status string

const (
	StatusSuccessful Status = "successful"
	StatusAborted    Status = "aborted"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusSuccessful, StatusAborted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// ExecutionResult is the status of a finished execution and the error that
// caused it, if any
type ExecutionResult struct {
	Status Status
	Cause  error
}

func Successful() ExecutionResult {
	return ExecutionResult{Status: StatusSuccessful}
}

func Failed(cause error) ExecutionResult {
	return ExecutionResult{Status: StatusFailed, Cause: cause}
}

func Aborted(cause error) ExecutionResult {
	return ExecutionResult{Status: StatusAborted, Cause: cause}
}

// ReportEntry is a key/value pair published by a running test
type ReportEntry struct {
	Timestamp time.Time
	Key       string
	Value     string
}

// Reporting entry keys understood by the outcome listener
const (
	EntryStepStart  = "step.start"
	EntryStepFinish = "step.finish"
	EntryManual     = "manual"
	EntryQualifier  = "qualifier"
)
