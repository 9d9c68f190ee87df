package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// Error codes produced on the client side. Gateway-issued codes pass through
// unchanged.
const (
	CodeRequestFailed  = "request_failed"
	CodeClientError    = "client_error"
	CodeInvalidRequest = "invalid_request"
	CodeMissingAPIKey  = "missing_api_key"
	CodeMissingPrompt  = "missing_prompt"
	CodeMissingModel   = "missing_model"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

// ErrorDetail is the user-visible error shape, both as sent by the gateway
// and as built locally.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ErrorDetail) Error() string {
	return e.Code + ": " + e.Message
}

// ErrorResponse is the envelope of every gateway error body.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// APIError is returned for non-2xx gateway responses.
type APIError struct {
	Status int
	Detail ErrorDetail
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.Status, e.Detail.Error())
}

// IsAuth reports whether the gateway rejected the credential.
func (e *APIError) IsAuth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsAuthError reports whether err wraps a 401 or 403 APIError.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsAuth()
}

// TransportError is returned when the request never produced an HTTP
// response: connection failures, DNS errors, aborted reads.
type TransportError struct {
	BaseURL string
	Err     error
}

func (e *TransportError) Error() string {
	return "request to gateway failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Unreachable reports whether the failure looks like the gateway is not
// running or not resolvable.
func (e *TransportError) Unreachable() bool {
	if errors.Is(e.Err, syscall.ECONNREFUSED) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(e.Err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	return errors.As(e.Err, &opErr) && opErr.Op == "dial"
}

// Detail converts the failure into a user-visible ErrorDetail, rewriting the
// unreachable signature into a hint.
func (e *TransportError) Detail() ErrorDetail {
	if e.Unreachable() {
		return ErrorDetail{
			Code:    CodeClientError,
			Message: fmt.Sprintf("Gateway not reachable at %s. Start the gateway (or run `portal serve mock`), then retry.", e.BaseURL),
		}
	}

	return ErrorDetail{
		Code:    CodeClientError,
		Message: fmt.Sprintf("Request failed. Ensure the gateway is running on %s and retry.", e.BaseURL),
	}
}

// DetailOf extracts the user-visible ErrorDetail from any error produced by
// this package.
func DetailOf(err error) ErrorDetail {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Detail()
	}

	var detail ErrorDetail
	if errors.As(err, &detail) {
		return detail
	}

	return ErrorDetail{Code: CodeClientError, Message: err.Error()}
}

// ReadError decodes the error envelope from a non-2xx response. When the body
// is missing or unparseable it falls back to request_failed with the status.
func ReadError(resp *http.Response) ErrorDetail {
	fallback := ErrorDetail{
		Code:    CodeRequestFailed,
		Message: fmt.Sprintf("Request failed (%d)", resp.StatusCode),
	}

	if resp.Body == nil {
		return fallback
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fallback
	}

	var envelope ErrorResponse
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error == nil {
		return fallback
	}

	return *envelope.Error
}
