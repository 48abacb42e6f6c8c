// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrDefinitionNotFound indicates no definition exists for the requested
	// name and version.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrDefinitionAlreadyExists indicates a definition with the same name and
	// version was already registered. Definitions are immutable; publish a new
	// version instead.
	ErrDefinitionAlreadyExists = errors.New("workflow definition already exists")

	// ErrInstanceNotFound indicates no instance snapshot exists for the ID.
	ErrInstanceNotFound = errors.New("workflow instance not found")
)

// DefinitionError wraps definition-store errors with operation context.
type DefinitionError struct {
	Op      string // Operation being performed (e.g., "Save", "FindByNameAndVersion")
	Name    string
	Version int
	Err     error
	Message string
}

func (e *DefinitionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for definition %s v%d: %s (%v)", e.Op, e.Name, e.Version, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for definition %s v%d: %v", e.Op, e.Name, e.Version, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

func (e *DefinitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDefinitionError creates a definition error with context.
func NewDefinitionError(op, name string, version int, err error) *DefinitionError {
	return &DefinitionError{
		Op:      op,
		Name:    name,
		Version: version,
		Err:     err,
	}
}

// InstanceError wraps instance-store errors with operation context.
type InstanceError struct {
	Op         string
	InstanceID string
	Err        error
}

func (e *InstanceError) Error() string {
	return fmt.Sprintf("%s operation failed for instance %s: %v", e.Op, e.InstanceID, e.Err)
}

func (e *InstanceError) Unwrap() error {
	return e.Err
}

func (e *InstanceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewInstanceError creates an instance error with context.
func NewInstanceError(op, instanceID string, err error) *InstanceError {
	return &InstanceError{
		Op:         op,
		InstanceID: instanceID,
		Err:        err,
	}
}

// IsDefinitionNotFound checks if an error indicates a missing definition.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// IsDefinitionAlreadyExists checks if an error indicates a duplicate definition.
func IsDefinitionAlreadyExists(err error) bool {
	return errors.Is(err, ErrDefinitionAlreadyExists)
}

// IsInstanceNotFound checks if an error indicates a missing instance.
func IsInstanceNotFound(err error) bool {
	return errors.Is(err, ErrInstanceNotFound)
}
