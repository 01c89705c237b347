// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package eventprocessor

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownTopic is returned by Decode for a topic with no event kind.
	ErrUnknownTopic = errors.New("unknown topic")

	// ErrNilPublisher is returned when a redrive is requested without a publisher.
	ErrNilPublisher = errors.New("publisher cannot be nil")

	// ErrEntryNotFound is returned for DLQ operations on a missing entry.
	ErrEntryNotFound = errors.New("dlq entry not found")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorCategory categorizes errors for DLQ routing and metrics.
type ErrorCategory int

const (
	// ErrorCategoryUnknown is the default category for unclassified errors.
	ErrorCategoryUnknown ErrorCategory = iota
	// ErrorCategoryConnection indicates network or connection failures.
	ErrorCategoryConnection
	// ErrorCategoryTimeout indicates operation timeout.
	ErrorCategoryTimeout
	// ErrorCategoryValidation indicates a malformed or invalid payload.
	ErrorCategoryValidation
	// ErrorCategoryDatabase indicates a store failure.
	ErrorCategoryDatabase
	// ErrorCategoryCapacity indicates resource capacity issues.
	ErrorCategoryCapacity
	// ErrorCategoryDependency indicates the event refers to an aggregate
	// that does not exist yet (e.g. a rating for an item not yet created).
	ErrorCategoryDependency
	// ErrorCategoryConflict indicates optimistic concurrency retries ran out.
	ErrorCategoryConflict
)

// String returns the string representation of the error category.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryConnection:
		return "connection"
	case ErrorCategoryTimeout:
		return "timeout"
	case ErrorCategoryValidation:
		return "validation"
	case ErrorCategoryDatabase:
		return "database"
	case ErrorCategoryCapacity:
		return "capacity"
	case ErrorCategoryDependency:
		return "dependency"
	case ErrorCategoryConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// RetryableError represents a failure that may succeed on a later attempt.
type RetryableError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewRetryableError creates a retryable error, inferring the category from
// the message.
func NewRetryableError(message string, cause error) *RetryableError {
	return &RetryableError{
		Message:  message,
		Cause:    cause,
		Category: categorizeErrorMessage(message),
	}
}

// NewRetryableErrorWithCategory creates a retryable error with an explicit category.
func NewRetryableErrorWithCategory(category ErrorCategory, message string, cause error) *RetryableError {
	return &RetryableError{Message: message, Cause: cause, Category: category}
}

func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RetryableError) Unwrap() error {
	return e.Cause
}

// MetricLabel labels the error by category in metrics.
func (e *RetryableError) MetricLabel() string {
	return e.Category.String()
}

// PermanentError represents a failure that no retry can fix (malformed
// payload, unknown topic).
type PermanentError struct {
	Message  string
	Cause    error
	Category ErrorCategory
}

// NewPermanentError creates a permanent error. Uncategorized messages
// default to validation.
func NewPermanentError(message string, cause error) *PermanentError {
	category := categorizeErrorMessage(message)
	if category == ErrorCategoryUnknown {
		category = ErrorCategoryValidation
	}
	return &PermanentError{Message: message, Cause: cause, Category: category}
}

func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// MetricLabel labels the error by category in metrics.
func (e *PermanentError) MetricLabel() string {
	return e.Category.String()
}

func categorizeErrorMessage(message string) ErrorCategory {
	switch {
	case containsAny(message, "connection", "connect", "refused", "reset", "network"):
		return ErrorCategoryConnection
	case containsAny(message, "timeout", "deadline", "timed out"):
		return ErrorCategoryTimeout
	case containsAny(message, "invalid", "validation", "malformed", "parse", "decode"):
		return ErrorCategoryValidation
	case containsAny(message, "version conflict", "conflict"):
		return ErrorCategoryConflict
	case containsAny(message, "not found", "missing"):
		return ErrorCategoryDependency
	case containsAny(message, "database", "store", "badger", "sql", "query"):
		return ErrorCategoryDatabase
	case containsAny(message, "capacity", "full", "limit", "exceeded"):
		return ErrorCategoryCapacity
	default:
		return ErrorCategoryUnknown
	}
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// IsRetryableError reports whether err wraps a RetryableError.
func IsRetryableError(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// IsPermanentError reports whether err wraps a PermanentError.
func IsPermanentError(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}

// CategoryOf returns the category carried by err, or ErrorCategoryUnknown.
func CategoryOf(err error) ErrorCategory {
	var retryErr *RetryableError
	if errors.As(err, &retryErr) {
		return retryErr.Category
	}
	var permErr *PermanentError
	if errors.As(err, &permErr) {
		return permErr.Category
	}
	return ErrorCategoryUnknown
}

// outcome is the metrics label for a handler result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsPermanentError(err):
		return "permanent"
	default:
		return "retryable"
	}
}
