package framework

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RunnerError is the failure of a Runnable, named by NamedRun or by its
// position in the Runner.
type RunnerError struct {
	Name string
	Err  error
}

// Error implements error.
func (e *RunnerError) Error() string {
	return fmt.Sprintf("runner %s: %v", e.Name, e.Err)
}

// Unwrap returns the error of the Runnable.
func (e *RunnerError) Unwrap() error {
	return e.Err
}

// AggregatedError collects failures of Runnables stopped together.
type AggregatedError struct {
	Errors []error
}

// Error implements error. A single failure is reported as is.
func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ""
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for n, err := range e.Errors {
		msgs[n] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap allows errors.Is and errors.As to match any collected error.
func (e *AggregatedError) Unwrap() []error {
	return e.Errors
}

// Add collects errors. nil and context errors are skipped, as Runnables
// return them when stopped by another.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			continue
		}
		e.Errors = append(e.Errors, err)
	}
	return e
}

// Aggregate returns AggregatedError if any error was collected.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
