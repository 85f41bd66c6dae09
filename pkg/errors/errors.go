package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents storefront request failures
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents page or widget decoding errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeStorage represents document store errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// MonitorError represents an error raised while monitoring a site
type MonitorError struct {
	Type    ErrorType
	Site    string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *MonitorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Site, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Site, e.Message)
}

// Unwrap returns the underlying error
func (e *MonitorError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *MonitorError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeStorage:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err wraps a MonitorError worth retrying
func IsRetryable(err error) bool {
	var me *MonitorError
	if stderrors.As(err, &me) {
		return me.IsRetryable()
	}
	return false
}

// IsType reports whether err wraps a MonitorError of the given type
func IsType(err error, errType ErrorType) bool {
	var me *MonitorError
	if stderrors.As(err, &me) {
		return me.Type == errType
	}
	return false
}

// New creates a new MonitorError
func New(errType ErrorType, site, message string, err error) *MonitorError {
	return &MonitorError{
		Type:    errType,
		Site:    site,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(site, message string, err error) *MonitorError {
	return New(ErrorTypeNetwork, site, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(site, message string, err error) *MonitorError {
	return New(ErrorTypeParsing, site, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(site string, duration time.Duration) *MonitorError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, site, message, nil)
}

// NewCache creates a new cache error
func NewCache(site, message string, err error) *MonitorError {
	return New(ErrorTypeCache, site, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(site, message string, err error) *MonitorError {
	return New(ErrorTypePublisher, site, message, err)
}

// NewStorage creates a new storage error
func NewStorage(site, message string, err error) *MonitorError {
	return New(ErrorTypeStorage, site, message, err)
}

// NewValidation creates a new validation error
func NewValidation(site, message string) *MonitorError {
	return New(ErrorTypeValidation, site, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *MonitorError {
	return New(ErrorTypeConfiguration, "", message, err)
}
