package upstream

import (
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	apperrors "github.com/notelens/notelens/internal/errors"
)

// classify maps an upstream response to a taxonomy error, or nil when the
// response carries usable data. Classification is heuristic string/status
// matching, performed once here; callers never see raw upstream errors.
//
// Priority order: authentication failure, not-found, rate limit, server
// error, then a generic failure carrying the raw message.
func (c *Client) classify(statusCode int, body []byte) error {
	message := upstreamErrorMessage(body)
	lower := strings.ToLower(message)

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden,
		isAuthSignal(lower, body):
		return apperrors.NewInvalidCredentialError("upstream rejected credential: " + firstNonEmpty(message, http.StatusText(statusCode)))

	case statusCode == http.StatusNotFound, strings.Contains(lower, "not found"):
		return apperrors.NewResourceNotFoundError(firstNonEmpty(message, "task not found"))

	case statusCode == http.StatusTooManyRequests, isRateLimitSignal(lower, body):
		if c.Limiter != nil {
			c.Limiter.RecordUpstreamRejection()
		}
		return apperrors.NewRateLimitedError(firstNonEmpty(message, "upstream rate limited"))

	case statusCode >= http.StatusInternalServerError:
		return apperrors.NewUpstreamUnavailableError(firstNonEmpty(message, "upstream returned "+http.StatusText(statusCode)))

	case statusCode != http.StatusOK:
		return apperrors.NewUnknownError(firstNonEmpty(message, "unexpected upstream status "+http.StatusText(statusCode)))

	case message != "":
		return apperrors.NewUnknownError(message)
	}

	return nil
}

// upstreamErrorMessage digs the first application-level error out of the
// response body. The upstream surfaces failures in several shapes
// (errors[].message, error_message, error_code), so probe rather than
// decode a fixed struct.
func upstreamErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	if msg := gjson.GetBytes(body, "errors.0.message"); msg.Exists() {
		return msg.String()
	}
	if msg := gjson.GetBytes(body, "error_message"); msg.Exists() {
		return msg.String()
	}
	if msg := gjson.GetBytes(body, "error_code"); msg.Exists() {
		return msg.String()
	}
	return ""
}

func isAuthSignal(lowerMessage string, body []byte) bool {
	if strings.Contains(lowerMessage, "not authenticated") ||
		strings.Contains(lowerMessage, "unauthorized") ||
		strings.Contains(lowerMessage, "invalid token") {
		return true
	}
	code := gjson.GetBytes(body, "error_code").String()
	return code == "Unauthorized" || code == "UserUnauthorizedException"
}

func isRateLimitSignal(lowerMessage string, body []byte) bool {
	if strings.Contains(lowerMessage, "rate limit") ||
		strings.Contains(lowerMessage, "complexity budget") {
		return true
	}
	code := gjson.GetBytes(body, "error_code").String()
	return code == "ComplexityException" || code == "RateLimitExceeded"
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
