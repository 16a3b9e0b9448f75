// Package errors provides the error classification used across semcommunity.
// Errors are Transient (retry), Invalid (bad input, do not retry) or Fatal
// (stop processing), and helper constructors attach component and operation
// context in a uniform "component.method: action failed" format.
//
// Summarization retries only transient errors. An error that carries no
// classification is looked up by sentinel first, then by message, and is
// treated as transient when nothing matches.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var (
	// Input errors
	ErrInvalidData   = errors.New("invalid data format")
	ErrParsingFailed = errors.New("parsing failed")
	ErrEmptyResponse = errors.New("empty response")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Storage and upstream errors
	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
)

// sentinelClasses maps well-known causes to their class. Order matters: the
// first match wins.
var sentinelClasses = []struct {
	err   error
	class ErrorClass
}{
	{context.DeadlineExceeded, ErrorTransient},
	{ErrConnectionTimeout, ErrorTransient},
	{ErrStorageUnavailable, ErrorTransient},
	{ErrRateLimited, ErrorTransient},
	{ErrInvalidConfig, ErrorFatal},
	{ErrMissingConfig, ErrorFatal},
	{ErrUnauthorized, ErrorFatal},
	{ErrInvalidData, ErrorInvalid},
	{ErrParsingFailed, ErrorInvalid},
	{ErrEmptyResponse, ErrorInvalid},
}

// messageClasses classifies foreign errors (drivers, HTTP clients) by the
// text they carry.
var messageClasses = []struct {
	pattern string
	class   ErrorClass
}{
	{"timeout", ErrorTransient},
	{"connection", ErrorTransient},
	{"temporarily", ErrorTransient},
	{"unavailable", ErrorTransient},
	{"too many requests", ErrorTransient},
	{"database is locked", ErrorTransient},
	{"fatal", ErrorFatal},
	{"disk full", ErrorFatal},
	{"out of memory", ErrorFatal},
}

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// lookup resolves the class of err. The boolean is false when nothing
// about err identifies a class.
func lookup(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	for _, s := range sentinelClasses {
		if errors.Is(err, s.err) {
			return s.class, true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range messageClasses {
		if strings.Contains(msg, m.pattern) {
			return m.class, true
		}
	}
	return ErrorTransient, false
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	class, ok := lookup(err)
	return ok && class == ErrorTransient
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	class, ok := lookup(err)
	return ok && class == ErrorFatal
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	class, ok := lookup(err)
	return ok && class == ErrorInvalid
}

// Classify returns the error class for an error. Unknown errors are treated
// as transient so callers get a chance to retry.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}
	class, _ := lookup(err)
	return class
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapClassified(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	return wrapClassified(ErrorTransient, err, component, method, action)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	return wrapClassified(ErrorFatal, err, component, method, action)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	return wrapClassified(ErrorInvalid, err, component, method, action)
}
