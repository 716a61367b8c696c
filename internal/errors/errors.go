// Package errors defines the notelens error taxonomy and its HTTP mapping.
//
// Classification happens once, at the upstream dispatcher boundary; every
// layer above propagates a tagged gofulmen envelope rather than raw errors.
package errors

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notelens/notelens/internal/observability"
	"github.com/notelens/notelens/internal/server/middleware"
)

// Error codes, classified at the dispatcher boundary.
const (
	CodeInvalidCredential   = "INVALID_CREDENTIAL"
	CodeCredentialMissing   = "CREDENTIAL_MISSING"
	CodeNetworkError        = "NETWORK_ERROR"
	CodeRateLimited         = "RATE_LIMITED"
	CodeResourceNotFound    = "RESOURCE_NOT_FOUND"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeStorageError        = "STORAGE_ERROR"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeUnknownError        = "UNKNOWN_ERROR"
)

// Error creation helpers for common error types

func NewInvalidCredentialError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidCredential, message)
}

func NewCredentialMissingError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeCredentialMissing, message)
}

func NewNetworkError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNetworkError, message)
}

func NewRateLimitedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeRateLimited, message)
}

func NewResourceNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeResourceNotFound, message)
}

func NewUpstreamUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeUpstreamUnavailable, message)
}

func NewPermissionDeniedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodePermissionDenied, message)
}

func NewStorageError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeStorageError, message)
}

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

func NewUnknownError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeUnknownError, message)
}

// Wrap functions attach correlation IDs from the request context and record
// the underlying error.

func WrapStorage(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeStorageError, err, message)
}

func WrapNetwork(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeNetworkError, err, message)
}

func WrapUnknown(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeUnknownError, err, message)
}

func wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(code, message)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	envelope = withWrappedError(envelope, err)
	return envelope
}

// CodeOf extracts the taxonomy code from any error, defaulting to
// UNKNOWN_ERROR for untagged errors.
func CodeOf(err error) string {
	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope.Code
	}
	return CodeUnknownError
}

// Retryable reports whether a code warrants an automatic bounded retry.
func Retryable(code string) bool {
	switch code {
	case CodeNetworkError, CodeRateLimited, CodeUpstreamUnavailable:
		return true
	default:
		return false
	}
}

// HumanMessage returns a short user-facing message for a taxonomy code.
func HumanMessage(code string) string {
	switch code {
	case CodeInvalidCredential:
		return "The API key was rejected. Check it and try again."
	case CodeCredentialMissing:
		return "No API key is configured. Save one first."
	case CodeNetworkError:
		return "Could not reach the task board. Check your connection."
	case CodeRateLimited:
		return "The task board is rate limiting requests. Try again shortly."
	case CodeResourceNotFound:
		return "That task was not found."
	case CodeUpstreamUnavailable:
		return "The task board is temporarily unavailable."
	case CodePermissionDenied:
		return "Daily free-tier limit reached. Upgrade to keep fetching."
	case CodeStorageError:
		return "Local storage failed. See logs for details."
	case CodeInvalidInput:
		return "The request was malformed."
	default:
		return "Something went wrong. See logs for details."
	}
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeUnknownError, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}

	env := errors.NewErrorEnvelope(CodeUnknownError, err.Error())
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// EnsureCorrelationID attaches a correlation ID to the envelope using the
// context when available.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}
	if envelope.CorrelationID != "" {
		return envelope
	}

	var correlationID string
	if ctx != nil {
		correlationID = middleware.GetRequestID(ctx)
	}
	if correlationID == "" {
		correlationID = "fallback-" + errors.GenerateCorrelationID()
	}

	return envelope.WithCorrelationID(correlationID)
}

// HTTPStatusFromEnvelope resolves the HTTP status code for an envelope.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

// HTTPStatusFromCode resolves the HTTP status code for a taxonomy code.
func HTTPStatusFromCode(code string) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeInvalidCredential, CodeCredentialMissing:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeResourceNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeNetworkError, CodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}

	updated, updateErr := envelope.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	if updateErr != nil {
		return envelope
	}
	return updated
}

func extractCorrelationID(ctx context.Context) string {
	if ctx != nil {
		if requestID := middleware.GetRequestID(ctx); requestID != "" {
			return requestID
		}
	}
	return uuid.New().String()
}

// HTTPErrorDetail captures the error body returned to callers.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse wraps HTTPErrorDetail in the standard envelope structure.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// RespondWithError normalizes the supplied error and writes a JSON response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithEnvelope(w, r, EnsureEnvelope(err))
}

// RespondWithEnvelope finalizes the provided envelope and writes it out.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}

	if r != nil {
		envelope = EnsureCorrelationID(envelope, r.Context())
	} else {
		envelope = EnsureCorrelationID(envelope, nil)
	}

	statusCode := HTTPStatusFromEnvelope(envelope)

	response := HTTPErrorResponse{
		Error: HTTPErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   envelope.Context,
			RequestID: envelope.CorrelationID,
		},
	}

	logHTTPError(envelope, statusCode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func logHTTPError(envelope *errors.ErrorEnvelope, statusCode int) {
	if observability.ServerLogger == nil || envelope == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", statusCode),
	}
	if envelope.CorrelationID != "" {
		fields = append(fields, zap.String("request_id", envelope.CorrelationID))
	}

	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		observability.ServerLogger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		observability.ServerLogger.Warn(envelope.Message, fields...)
	default:
		observability.ServerLogger.Info(envelope.Message, fields...)
	}
}
