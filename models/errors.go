package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses, diagnostics and internal error handling.
const (
	// Fatal: the request is aborted and the error is surfaced to the caller.
	ErrCodeLaunch       = "LAUNCH_FAILED"
	ErrCodeAuthRequired = "AUTH_REQUIRED"
	ErrCodeTimeout      = "SCRAPE_TIMEOUT"

	// NAVIGATION_FAILED is fatal when the root page does not load and
	// non-fatal when a navigation click misses its target.
	ErrCodeNavigation = "NAVIGATION_FAILED"

	// Non-fatal: recorded in diagnostics, never fail the request.
	ErrCodeSettleTimeout = "SETTLE_TIMEOUT"
	ErrCodeExtraction    = "EXTRACTION_ELEMENT_FAILED"

	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeSessionReleased = "SESSION_RELEASED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses and diagnostics.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Label   string `json:"label,omitempty"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// Fatal reports whether the error aborts a whole scrape request.
// A navigation failure is only fatal when it comes from loading the root
// page; the explorer absorbs click failures before they reach a caller.
func (e *ScrapeError) Fatal() bool {
	switch e.Code {
	case ErrCodeSettleTimeout, ErrCodeExtraction:
		return false
	}
	return true
}

// CodeOf returns the ScrapeError code carried anywhere in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// DetailOf converts any error into an ErrorDetail.
func DetailOf(err error) *ErrorDetail {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.ToDetail()
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}
