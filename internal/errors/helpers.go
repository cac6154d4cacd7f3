package errors

import (
	"fmt"
	"net/http"
)

// NewValidationError creates a validation error with field context
func NewValidationError(field, value, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithContext("value", value).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDatabaseError creates a cache error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewBackendError creates an error for a failed chat backend call.
// 5xx, 408 and 429 responses are retryable.
func NewBackendError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeBackendAPI, "chat backend call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode).
		WithUserMessage("Failed to load chat")

	if statusCode >= 500 || statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout {
		appErr.Retryable = true
	}
	return appErr
}

// NewTransportError creates an error for a WebSocket failure.
func NewTransportError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeTransport, fmt.Sprintf("transport %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Not connected. Please wait or try refreshing.")
}

// NewMalformedEventError creates an error for an inbound frame that could not be decoded.
func NewMalformedEventError(eventType string, err error) *AppError {
	return Wrap(err, ErrCodeMalformedEvent, "malformed inbound event").
		WithContext("event_type", eventType)
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration).
		WithUserMessage("Operation timed out, please try again")
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// NewClosedError reports use of a conversation after it was closed.
func NewClosedError(resource string) *AppError {
	return New(ErrCodeClosed, fmt.Sprintf("%s is closed", resource)).
		WithContext("resource", resource).
		WithUserMessage("Conversation is closed")
}

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	code := GetCode(err)

	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeInvalidConfig, ErrCodeMalformedEvent:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeClosed:
		return http.StatusConflict
	case ErrCodeBackendAPI, ErrCodeTransport:
		if IsRetryable(err) {
			return http.StatusBadGateway
		}
		return http.StatusServiceUnavailable
	case ErrCodeDatabaseConnection, ErrCodeDatabaseQuery:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorResponse is the JSON body written for failed requests
type HTTPErrorResponse struct {
	Error struct {
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Context interface{} `json:"context,omitempty"`
	} `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ToHTTPResponse converts an error to a standardized HTTP response
func ToHTTPResponse(err error, requestID string) HTTPErrorResponse {
	response := HTTPErrorResponse{
		RequestID: requestID,
	}

	appErr, ok := As(err)
	if !ok {
		response.Error.Code = ErrCodeInternalError
		response.Error.Message = GetUserMessage(err)
		return response
	}

	response.Error.Code = appErr.Code
	response.Error.Message = GetUserMessage(err)
	if len(appErr.Context) > 0 {
		publicContext := make(map[string]interface{})
		for k, v := range appErr.Context {
			// content and secrets never leave the process
			if k != "content" && k != "secret" && k != "value" {
				publicContext[k] = v
			}
		}
		if len(publicContext) > 0 {
			response.Error.Context = publicContext
		}
	}
	return response
}
