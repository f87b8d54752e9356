package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected during action execution.
//
// Read paths never produce one (they degrade to undefined per the
// evaluator's contract); runtime errors come from the dispatch and write
// side: unknown actions, writes through forbidden paths, step quota
// exhaustion, fetch failures with no declared onError continuation.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Action identifies the action being executed, when known.
	Action string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeMissingAction indicates a dispatched action doesn't exist.
	ErrCodeMissingAction RuntimeErrorCode = "MISSING_ACTION"

	// ErrCodeQuotaExceeded indicates an action ran more steps than allowed.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeWriteFailed indicates a store write was rejected.
	ErrCodeWriteFailed RuntimeErrorCode = "WRITE_FAILED"

	// ErrCodeFetchFailed indicates a fetch step failed with no onError
	// continuation declared.
	ErrCodeFetchFailed RuntimeErrorCode = "FETCH_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.Action)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsMissingActionError reports whether err is a missing-action error.
// Uses errors.As to handle wrapped errors.
func IsMissingActionError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeMissingAction
}

// IsQuotaError reports whether err is a step quota error.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeQuotaExceeded
}

// NewMissingActionError creates a RuntimeError for an unknown action name.
func NewMissingActionError(action string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMissingAction,
		Message: "action is not defined in the program",
		Action:  action,
	}
}

// NewQuotaError creates a RuntimeError for step quota exhaustion.
func NewQuotaError(action string, steps, maxSteps int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("action exceeded max steps (%d >= %d)", steps, maxSteps),
		Action:  action,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", steps),
			"max_steps": fmt.Sprintf("%d", maxSteps),
		},
	}
}
