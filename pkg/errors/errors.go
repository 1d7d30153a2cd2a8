// Package errors provides structured error handling for the application.
// It defines AppError type with error codes for consistent API responses.
package errors

import (
	"errors"
	"fmt"
)

// Error codes organized by category
const (
	// General errors (1000-1099)
	CodeSuccess       = 0
	CodeUnknown       = 1000
	CodeInvalidParams = 1001
	CodeNotFound      = 1002
	CodeUnauthorized  = 1003

	// Precondition errors (1100-1199): playback refuses to start
	CodeVoiceRequired    = 1100
	CodeTimelineEmpty    = 1101
	CodeScenesNotReady   = 1102
	CodeSessionNotFound  = 1103

	// Synthesis errors (1400-1499)
	CodeTTSFailed      = 1400
	CodeRateLimited    = 1401
	CodeAudioDecode    = 1402
	CodeUploadFailed   = 1403
	CodeMarkupInvalid  = 1404

	// Storage errors (1500-1599)
	CodeDBError        = 1500
	CodeFileNotFound   = 1501
	CodeFileWriteError = 1502

	// Playback-integrity errors (1600-1699): recoverable during playback
	CodeSegmentNotFound = 1600
	CodeClockDrift      = 1601

	// Auth errors (1700-1799)
	CodeTokenMissing = 1700
	CodeAuthExpired  = 1701

	// Export errors (1800-1899)
	CodeExportFailed   = 1800
	CodeExportCanceled = 1801
)

// AppError represents a structured application error
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code int, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithDetail wraps an error with additional detail
func WrapWithDetail(code int, message string, detail string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Detail:  detail,
		Cause:   cause,
	}
}

// Is checks if the target error is an AppError with the specified code
func Is(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts error code from error, returns CodeUnknown if not AppError
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetMessage extracts message from error
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// Predefined common errors
var (
	ErrInvalidParams = New(CodeInvalidParams, "Invalid parameters")
	ErrNotFound      = New(CodeNotFound, "Resource not found")
	ErrUnauthorized  = New(CodeUnauthorized, "Unauthorized")

	// Preconditions
	ErrVoiceRequired   = New(CodeVoiceRequired, "No voice selected for one or more scenes")
	ErrTimelineEmpty   = New(CodeTimelineEmpty, "Timeline has no playable scenes")
	ErrScenesNotReady  = New(CodeScenesNotReady, "Scene audio not synthesized yet")
	ErrSessionNotFound = New(CodeSessionNotFound, "Preview session not found")

	// Synthesis
	ErrTTSFailed   = New(CodeTTSFailed, "Speech synthesis failed")
	ErrRateLimited = New(CodeRateLimited, "Speech synthesis rate limited")
	ErrAudioDecode = New(CodeAudioDecode, "Failed to decode synthesized audio")

	// Storage
	ErrDBError      = New(CodeDBError, "Database error")
	ErrFileNotFound = New(CodeFileNotFound, "File not found")

	// Playback integrity
	ErrSegmentNotFound = New(CodeSegmentNotFound, "No segment at requested time")

	// Auth
	ErrTokenMissing = New(CodeTokenMissing, "Auth token missing")
	ErrAuthExpired  = New(CodeAuthExpired, "Auth token expired")
)
