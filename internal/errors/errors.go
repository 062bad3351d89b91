package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

/**
 * Custom error types for the vision service
 *
 * Every failure of a request pipeline is one of these codes. A negative
 * face match is a normal outcome and has no code.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Pipeline outcomes
	ErrorNoDetection     ErrorCode = "NO_DETECTION"
	ErrorNoReferenceFace ErrorCode = "NO_REFERENCE_FACE"

	// Input errors
	ErrorInvalidImage ErrorCode = "INVALID_IMAGE"

	// Capability errors
	ErrorInferenceFailed ErrorCode = "INFERENCE_FAILED"

	// Artifact errors
	ErrorArtifactNotFound ErrorCode = "ARTIFACT_NOT_FOUND"
	ErrorStorageFailed    ErrorCode = "STORAGE_FAILED"
)

// VisionError represents a structured pipeline error
type VisionError struct {
	Code      ErrorCode
	Message   string
	RequestID string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *VisionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *VisionError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to a response status
func (e *VisionError) HTTPStatus() int {
	switch e.Code {
	case ErrorNoDetection, ErrorNoReferenceFace, ErrorInvalidImage:
		return http.StatusBadRequest
	case ErrorArtifactNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Factory functions for common errors

func NewNoDetectionError(requestID string) *VisionError {
	return &VisionError{
		Code:      ErrorNoDetection,
		Message:   "No license plate detected!",
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

func NewNoReferenceFaceError(requestID string) *VisionError {
	return &VisionError{
		Code:      ErrorNoReferenceFace,
		Message:   "No face in reference image",
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

func NewInvalidImageError(requestID string, reason string, cause error) *VisionError {
	return &VisionError{
		Code:      ErrorInvalidImage,
		Message:   reason,
		RequestID: requestID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewInferenceFailedError(requestID string, capability string, cause error) *VisionError {
	return &VisionError{
		Code:      ErrorInferenceFailed,
		Message:   fmt.Sprintf("Inference failed in %s", capability),
		RequestID: requestID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"capability": capability,
		},
		Cause: cause,
	}
}

func NewArtifactNotFoundError(artifactID string) *VisionError {
	return &VisionError{
		Code:      ErrorArtifactNotFound,
		Message:   fmt.Sprintf("Artifact not found: %s", artifactID),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"artifact_id": artifactID,
		},
	}
}

func NewStorageFailedError(requestID string, cause error) *VisionError {
	return &VisionError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store request artifact",
		RequestID: requestID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// As finds the first VisionError in err's chain
func As(err error) (*VisionError, bool) {
	var ve *VisionError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// CodeOf returns the code of the first VisionError in err's chain, or "" if none
func CodeOf(err error) ErrorCode {
	if ve, ok := As(err); ok {
		return ve.Code
	}
	return ""
}

// ToMap converts error to map for structured logging
func (e *VisionError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	if e.RequestID != "" {
		result["request_id"] = e.RequestID
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
