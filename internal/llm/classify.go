package llm

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"

	"github.com/sells-group/dashboard-api/internal/resilience"
)

// Classification codes returned to chat clients.
const (
	CodeRateLimit    = "RATE_LIMIT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeAPIError     = "API_ERROR"
	CodeUnknown      = "UNKNOWN"
)

// DefaultRetryAfter is the retry hint, in seconds, when a rate-limited
// response carries none.
const DefaultRetryAfter = 60

const (
	msgRateLimit    = "Rate limit exceeded. Please wait a moment and try again."
	msgUnauthorized = "Authentication failed. Please check the API key configuration."
	msgAPIError     = "The AI service rejected the request."
	msgUnknown      = "An unexpected error occurred. Please try again."
)

var (
	rateLimitMarkers    = []string{"rate limit", "rate_limit", "too many requests", "quota exceeded", "429"}
	unauthorizedMarkers = []string{"unauthorized", "invalid api key", "invalid x-api-key", "authentication", "401"}
)

// Classification is the client-facing view of a chat failure.
type Classification struct {
	Code       string `json:"code"`
	Status     int    `json:"-"`
	Message    string `json:"error"`
	RetryAfter *int   `json:"retryAfter,omitempty"`
}

// StatusError carries an HTTP status for errors that did not come from an
// SDK, such as an error event inside a provider stream.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("llm: provider returned status %d", e.Status)
	}
	return e.Message
}

// StatusCode returns the carried status.
func (e *StatusError) StatusCode() int { return e.Status }

// RetryHint attaches a retry delay to an error. Providers disagree on where
// they put it, so both field spellings and the raw response headers are kept.
// Values may be numbers or numeric strings.
type RetryHint struct {
	Err               error
	RetryAfter        any
	RetryAfterSeconds any
	Header            http.Header
}

func (e *RetryHint) Error() string { return e.Err.Error() }

func (e *RetryHint) Unwrap() error { return e.Err }

type statusCoder interface {
	StatusCode() int
}

// Classify maps err to a client-facing classification. The rules are checked
// in order: rate limiting, authentication, other 4xx, anything else.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Code: CodeUnknown, Status: http.StatusInternalServerError, Message: msgUnknown}
	}

	status := statusOf(err)
	text := strings.ToLower(err.Error())

	if status == http.StatusTooManyRequests || containsAny(text, rateLimitMarkers) {
		retry := retryAfterOf(err)
		return Classification{
			Code:       CodeRateLimit,
			Status:     http.StatusTooManyRequests,
			Message:    msgRateLimit,
			RetryAfter: &retry,
		}
	}

	if status == http.StatusUnauthorized || containsAny(text, unauthorizedMarkers) {
		return Classification{Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: msgUnauthorized}
	}

	if status >= 400 && status < 500 {
		return Classification{Code: CodeAPIError, Status: status, Message: msgAPIError}
	}

	return Classification{Code: CodeUnknown, Status: http.StatusInternalServerError, Message: msgUnknown}
}

func statusOf(err error) int {
	var anthErr *sdk.Error
	if errors.As(err, &anthErr) && anthErr.StatusCode > 0 {
		return anthErr.StatusCode
	}
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) && oaiErr.StatusCode > 0 {
		return oaiErr.StatusCode
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() > 0 {
		return sc.StatusCode()
	}
	if code, ok := resilience.HTTPStatus(err); ok {
		return code
	}
	return 0
}

// retryAfterOf takes the first present retry delay: the explicit hint
// fields, then the Retry-After header of the hint or of an SDK error
// response. A present value that does not coerce yields the default.
func retryAfterOf(err error) int {
	h := responseHeader(err)

	var hint *RetryHint
	if errors.As(err, &hint) {
		switch {
		case hint.RetryAfter != nil:
			return secondsOrDefault(hint.RetryAfter)
		case hint.RetryAfterSeconds != nil:
			return secondsOrDefault(hint.RetryAfterSeconds)
		}
		if hint.Header != nil {
			h = hint.Header
		}
	}

	if v := h.Get("Retry-After"); v != "" {
		return secondsOrDefault(v)
	}
	return DefaultRetryAfter
}

func secondsOrDefault(v any) int {
	if n, ok := coerceSeconds(v); ok {
		return n
	}
	return DefaultRetryAfter
}

func responseHeader(err error) http.Header {
	var anthErr *sdk.Error
	if errors.As(err, &anthErr) && anthErr.Response != nil {
		return anthErr.Response.Header
	}
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) && oaiErr.Response != nil {
		return oaiErr.Response.Header
	}
	return nil
}

func coerceSeconds(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Ceil(f)), true
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
