// Package errors defines the typed errors the workflow engine raises and
// their mapping onto HTTP responses. Handlers never match on message strings;
// they use the Is* helpers and GetHTTPStatus/GetErrorCode.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is implemented by every error the REST layer knows how to map.
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// NotFoundError names a definition, instance, task, user or notification that
// does not exist or is not visible to the caller.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) HTTPStatus() int {
	return http.StatusNotFound
}

func (e *NotFoundError) Code() string {
	return "NOT_FOUND"
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError rejects bad input synchronously: malformed request bodies,
// broken graph structure, undeclared guard variables, missing required
// instance variables. Nothing is partially applied.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) HTTPStatus() int {
	return http.StatusBadRequest
}

func (e *ValidationError) Code() string {
	return "VALIDATION_ERROR"
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PermissionError means the caller is authenticated but may not perform the
// operation: not the task's assignee, not the instance initiator, not an
// admin. No state is mutated.
type PermissionError struct {
	Action   string
	Resource string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("not allowed to %s %s", e.Action, e.Resource)
}

func (e *PermissionError) HTTPStatus() int {
	return http.StatusForbidden
}

func (e *PermissionError) Code() string {
	return "PERMISSION_DENIED"
}

// NewPermissionError creates a new PermissionError
func NewPermissionError(action, resource string) *PermissionError {
	return &PermissionError{Action: action, Resource: resource}
}

// UnauthorizedError covers login failures and bad or revoked sessions.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason == "" {
		return "unauthorized"
	}
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}

func (e *UnauthorizedError) HTTPStatus() int {
	return http.StatusUnauthorized
}

func (e *UnauthorizedError) Code() string {
	return "UNAUTHORIZED"
}

// NewUnauthorizedError creates a new UnauthorizedError
func NewUnauthorizedError(reason string) *UnauthorizedError {
	return &UnauthorizedError{Reason: reason}
}

// ConflictError means the operation raced with the resource's current state:
// a decision on a task that is no longer pending, a second live approval for
// one business record. The caller should re-read and retry or give up.
type ConflictError struct {
	Resource string
	Detail   string
}

func (e *ConflictError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s conflict", e.Resource)
	}
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Detail)
}

func (e *ConflictError) HTTPStatus() int {
	return http.StatusConflict
}

func (e *ConflictError) Code() string {
	return "CONFLICT"
}

// NewConflictError creates a new ConflictError
func NewConflictError(resource, detail string) *ConflictError {
	return &ConflictError{Resource: resource, Detail: detail}
}

// GuardError reports a condition-edge guard that failed to evaluate at run
// time. The engine halts the instance on it; it never maps to a client status
// of its own.
type GuardError struct {
	Guard  string
	Source string
	Target string
	Cause  error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard %q on edge %s->%s failed: %v", e.Guard, e.Source, e.Target, e.Cause)
}

func (e *GuardError) Unwrap() error {
	return e.Cause
}

// NewGuardError creates a new GuardError
func NewGuardError(guard, source, target string, cause error) *GuardError {
	return &GuardError{Guard: guard, Source: source, Target: target, Cause: cause}
}

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsValidation checks if an error is a ValidationError
func IsValidation(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation)
}

// IsPermission checks if an error is a PermissionError
func IsPermission(err error) bool {
	var permission *PermissionError
	return errors.As(err, &permission)
}

// IsConflict checks if an error is a ConflictError
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// IsGuard checks if an error is a GuardError
func IsGuard(err error) bool {
	var guard *GuardError
	return errors.As(err, &guard)
}

// GetHTTPStatus returns the HTTP status code for an error.
// Anything outside the AppError vocabulary is a 500.
func GetHTTPStatus(err error) int {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetErrorCode returns the machine-readable code for an error.
func GetErrorCode(err error) string {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return "UNKNOWN_ERROR"
}
