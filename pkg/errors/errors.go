// Package errors provides a structured error system for eoprod with error codes, categories, and context.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for product operations.
type ErrorCode string

// Error code constants grouped by category.
const (
	// Configuration errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE"

	// Adapter resolution and opening
	ErrCodeAdapterNotFound     ErrorCode = "ADAPTER_NOT_FOUND"
	ErrCodeAdapterOpen         ErrorCode = "ADAPTER_OPEN"
	ErrCodeAdapterRegistration ErrorCode = "ADAPTER_REGISTRATION"

	// Variable taxonomy and lookup
	ErrCodeVariableCombination ErrorCode = "VARIABLE_COMBINATION"
	ErrCodeVariableNotFound    ErrorCode = "VARIABLE_NOT_FOUND"
	ErrCodeVariablePartition   ErrorCode = "VARIABLE_PARTITION"

	// Geometry
	ErrCodeGeometryOutOfCoverage ErrorCode = "GEOMETRY_OUT_OF_COVERAGE"
	ErrCodeGeometryMalformedWKT  ErrorCode = "GEOMETRY_MALFORMED_WKT"
	ErrCodeGeometryInvalid       ErrorCode = "GEOMETRY_INVALID_REQUEST"

	// Region extraction
	ErrCodeRegionExtraction ErrorCode = "REGION_EXTRACTION"

	// Collocation
	ErrCodeInvalidResampling     ErrorCode = "COLLOCATION_INVALID_RESAMPLING"
	ErrCodeResamplingUnsupported ErrorCode = "COLLOCATION_UNSUPPORTED"
	ErrCodeCollocationFailed     ErrorCode = "COLLOCATION_FAILED"

	// Storage and staging
	ErrCodeObjectNotFound ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeBucketNotFound ErrorCode = "BUCKET_NOT_FOUND"
	ErrCodeStorageRead    ErrorCode = "STORAGE_READ"
	ErrCodeAccessDenied   ErrorCode = "ACCESS_DENIED"
	ErrCodeNetworkError   ErrorCode = "NETWORK_ERROR"
	ErrCodePathInvalid    ErrorCode = "PATH_INVALID"

	// Internal
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeUnknownError  ErrorCode = "UNKNOWN_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryResolution    ErrorCategory = "resolution"
	CategoryVariable      ErrorCategory = "variable"
	CategoryGeometry      ErrorCategory = "geometry"
	CategoryRegion        ErrorCategory = "region"
	CategoryCollocation   ErrorCategory = "collocation"
	CategoryStorage       ErrorCategory = "storage"
	CategoryInternal      ErrorCategory = "internal"
)

// ProductError represents a structured error with context and metadata.
type ProductError struct {
	// Core error information
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	// Contextual information
	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	// Operational metadata
	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`

	// Error handling hints
	Retryable  bool `json:"retryable"`
	UserFacing bool `json:"user_facing"`

	Stack string `json:"stack,omitempty"`
}

// Error implements the error interface.
func (e *ProductError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, msg)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *ProductError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *ProductError) Is(target error) bool {
	if productErr, ok := target.(*ProductError); ok {
		return e.Code == productErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *ProductError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("ProductError{%s}", strings.Join(parts, ", "))
}

// JSON returns the error as a JSON string.
func (e *ProductError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// NewError creates a new error with default values for its code.
func NewError(code ErrorCode, message string) *ProductError {
	return &ProductError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Details:    make(map[string]interface{}),
		Context:    make(map[string]string),
		Retryable:  IsRetryableByDefault(code),
		UserFacing: IsUserFacingByDefault(code),
	}
}

// Errorf creates a new error with a formatted message.
func Errorf(code ErrorCode, format string, args ...interface{}) *ProductError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "ADAPTER_"):
		return CategoryResolution
	case strings.HasPrefix(codeStr, "VARIABLE_"):
		return CategoryVariable
	case strings.HasPrefix(codeStr, "GEOMETRY_"):
		return CategoryGeometry
	case strings.HasPrefix(codeStr, "REGION_"):
		return CategoryRegion
	case strings.HasPrefix(codeStr, "COLLOCATION_"):
		return CategoryCollocation
	case strings.HasPrefix(codeStr, "OBJECT_") || strings.HasPrefix(codeStr, "BUCKET_") ||
		strings.HasPrefix(codeStr, "STORAGE_") || strings.HasPrefix(codeStr, "ACCESS_") ||
		strings.HasPrefix(codeStr, "NETWORK_") || strings.HasPrefix(codeStr, "PATH_"):
		return CategoryStorage
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault reports whether a code is a transient transport failure.
// Product operations never retry on their own; the flag is a hint for callers
// that stage products over the network.
func IsRetryableByDefault(code ErrorCode) bool {
	return code == ErrCodeNetworkError
}

// IsUserFacingByDefault determines if an error should be shown to users.
func IsUserFacingByDefault(code ErrorCode) bool {
	userFacingCodes := map[ErrorCode]bool{
		ErrCodeInvalidConfig:         true,
		ErrCodeConfigValidation:      true,
		ErrCodeAdapterNotFound:       true,
		ErrCodeVariableCombination:   true,
		ErrCodeVariableNotFound:      true,
		ErrCodeGeometryOutOfCoverage: true,
		ErrCodeGeometryMalformedWKT:  true,
		ErrCodeGeometryInvalid:       true,
		ErrCodeRegionExtraction:      true,
		ErrCodeInvalidResampling:     true,
		ErrCodeResamplingUnsupported: true,
		ErrCodeObjectNotFound:        true,
		ErrCodeBucketNotFound:        true,
		ErrCodeAccessDenied:          true,
		ErrCodePathInvalid:           true,
	}
	return userFacingCodes[code]
}

// HasCode reports whether any error in err's chain is a ProductError with the given code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &ProductError{Code: code})
}

// CodeOf returns the code of the first ProductError in err's chain, or ErrCodeUnknownError.
func CodeOf(err error) ErrorCode {
	var productErr *ProductError
	if stderrors.As(err, &productErr) {
		return productErr.Code
	}
	return ErrCodeUnknownError
}

// CaptureStack captures the current stack trace for debugging.
func CaptureStack(skip int) string {
	const depth = 10
	var pcs [depth]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "errors.go") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return strings.Join(stack, "\n")
}

// WithContext adds contextual information to an error
func (e *ProductError) WithContext(key, value string) *ProductError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *ProductError) WithDetail(key string, value interface{}) *ProductError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *ProductError) WithComponent(component string) *ProductError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *ProductError) WithOperation(operation string) *ProductError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *ProductError) WithCause(cause error) *ProductError {
	e.Cause = cause
	return e
}

// WithStack captures the current stack trace
func (e *ProductError) WithStack() *ProductError {
	e.Stack = CaptureStack(2)
	return e
}

// GetRecommendation returns a user-friendly recommendation for fixing the error
func (e *ProductError) GetRecommendation() string {
	recommendations := map[ErrorCode]string{
		ErrCodeAdapterNotFound: "No registered adapter recognises this product. " +
			"Check the product directory name or pass a known product type.",
		ErrCodeVariableCombination: "The requested variables live in different sub-products. " +
			"Request variables of a single resolution at a time.",
		ErrCodeGeometryOutOfCoverage: "The requested location falls outside the product footprint. " +
			"Check the coordinate order (longitude first) and the product coverage.",
		ErrCodeGeometryMalformedWKT: "The polygon could not be parsed. " +
			"Provide a closed POLYGON in WKT with longitude/latitude pairs.",
		ErrCodeRegionExtraction: "The requested pixel window could not be read. " +
			"Check that the window intersects the raster.",
		ErrCodeInvalidResampling: "Unknown resampling method. Use one of nearest_neighbour, " +
			"bilinear_interpolation, cubic_convolution, bisinc_interpolation, bicubic_interpolation.",
		ErrCodeInvalidConfig: "Configuration validation failed. " +
			"Check your configuration file syntax and required parameters.",
		ErrCodeAccessDenied: "AWS credentials lack necessary permissions. " +
			"Check your IAM policy grants s3:GetObject and s3:ListBucket.",
		ErrCodeBucketNotFound: "The specified S3 bucket does not exist or is not accessible. " +
			"Verify the bucket name and your AWS credentials.",
	}

	if rec, exists := recommendations[e.Code]; exists {
		return rec
	}
	return "Please check the error message for details."
}

// UserFacingMessage returns a simplified message suitable for end users
func (e *ProductError) UserFacingMessage() string {
	if !e.UserFacing {
		return "An internal error occurred."
	}
	return e.Message
}

// DetailedDiagnostic returns a comprehensive diagnostic message
func (e *ProductError) DetailedDiagnostic() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Error: %s", e.UserFacingMessage()))
	parts = append(parts, fmt.Sprintf("Code: %s", e.Code))
	parts = append(parts, fmt.Sprintf("Category: %s", e.Category))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component: %s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation: %s", e.Operation))
	}

	if len(e.Context) > 0 {
		parts = append(parts, "\nContext:")
		for k, v := range e.Context {
			parts = append(parts, fmt.Sprintf("  %s: %s", k, v))
		}
	}

	if len(e.Details) > 0 {
		parts = append(parts, "\nDetails:")
		for k, v := range e.Details {
			parts = append(parts, fmt.Sprintf("  %s: %v", k, v))
		}
	}

	parts = append(parts, "\nRecommendation:")
	parts = append(parts, "  "+e.GetRecommendation())

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("\nUnderlying cause: %s", e.Cause.Error()))
	}

	return strings.Join(parts, "\n")
}
