package service

import (
	"errors"
	"fmt"
)

var (
	// Not found (404).
	ErrSessionNotFound = errors.New("workflow session not found")
	ErrChatNotFound    = errors.New("chat not found")

	// Validation (400).
	ErrEmptyPrompt      = errors.New("prompt cannot be empty")
	ErrEmptyProjectName = errors.New("project name cannot be empty")
	ErrEmptyAnalysis    = errors.New("analysis cannot be empty")
	ErrEmptyDocument    = errors.New("document cannot be empty")

	// Conflicts (409).
	ErrNoActiveChat = errors.New("no active chat; fetch context first")
	ErrNoAnalysis   = errors.New("no analysis message to edit")
	ErrSuperseded   = errors.New("request superseded by a newer one of the same kind")
)

// ServiceError wraps a sentinel with the operation that produced it.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func opError(op string, err error) error {
	return &ServiceError{Op: op, Err: err}
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrChatNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyPrompt) ||
		errors.Is(err, ErrEmptyProjectName) ||
		errors.Is(err, ErrEmptyAnalysis) ||
		errors.Is(err, ErrEmptyDocument)
}

func IsConflictError(err error) bool {
	return errors.Is(err, ErrNoActiveChat) ||
		errors.Is(err, ErrNoAnalysis) ||
		errors.Is(err, ErrSuperseded)
}
