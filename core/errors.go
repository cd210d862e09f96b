// Package core holds the error taxonomy and identifier helpers shared by
// every orchestration component.
package core

import (
	"errors"
	"fmt"
)

// ============================================================================
// SENTINELS - USED WITH errors.Is AT API BOUNDARIES
// ============================================================================

var (
	// ErrNotFound marks lookups of unknown agents, tasks, workflows or tools.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks malformed task or workflow definitions.
	ErrValidation = errors.New("validation failed")

	// ErrStepExecution marks a workflow step whose underlying task failed.
	ErrStepExecution = errors.New("step execution failed")

	// ErrBackendNotFound marks tools that reference an unregistered backend.
	ErrBackendNotFound = errors.New("backend not found")
)

// NotFoundError reports a lookup of an unknown resource.
type NotFoundError struct {
	Resource string
	Name     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a NotFoundError for the given resource kind and name.
func NewNotFoundError(resource, name string) *NotFoundError {
	return &NotFoundError{Resource: resource, Name: name}
}

// ValidationError reports a malformed definition supplied by a caller.
type ValidationError struct {
	Component string
	Field     string
	Message   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] invalid %s: %s", e.Component, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Component, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for the given component and field.
func NewValidationError(component, field, message string) *ValidationError {
	return &ValidationError{Component: component, Field: field, Message: message}
}

// StepExecutionError reports a failed workflow step. It aborts the remaining
// steps of the owning execution.
type StepExecutionError struct {
	WorkflowID string
	StepID     string
	Agent      string
	Err        error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("workflow %s step %s (agent %s) failed: %v", e.WorkflowID, e.StepID, e.Agent, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return ErrStepExecution }

// Cause returns the underlying task failure.
func (e *StepExecutionError) Cause() error { return e.Err }

// NewStepExecutionError creates a StepExecutionError.
func NewStepExecutionError(workflowID, stepID, agent string, err error) *StepExecutionError {
	return &StepExecutionError{WorkflowID: workflowID, StepID: stepID, Agent: agent, Err: err}
}

// BackendNotFoundError reports a tool whose declared backend is not registered.
type BackendNotFoundError struct {
	Backend string
	Tool    string
}

func (e *BackendNotFoundError) Error() string {
	return fmt.Sprintf("tool '%s' references unregistered backend '%s'", e.Tool, e.Backend)
}

func (e *BackendNotFoundError) Unwrap() error { return ErrBackendNotFound }

// NewBackendNotFoundError creates a BackendNotFoundError.
func NewBackendNotFoundError(backend, tool string) *BackendNotFoundError {
	return &BackendNotFoundError{Backend: backend, Tool: tool}
}
