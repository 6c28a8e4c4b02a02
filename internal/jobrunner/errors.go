package jobrunner

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// APIError is a non-2xx response from the Job Backend, decoded far enough to
// classify it. The orchestrator layer maps these onto its own error taxonomy.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration // only set on 429 responses that carry a hint
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("job backend: status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("job backend: status %d: %s", e.StatusCode, e.Message)
}

// decodeAPIError builds an APIError from a failed response. The backend's error
// envelope is {"error": ..., "code": ..., "message": ...}; any of the fields
// may be missing, and the body may not be JSON at all.
func decodeAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
	}

	var envelope struct {
		Error   string `json:"error"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Code = envelope.Code
		if envelope.Message != "" {
			apiErr.Message = envelope.Message
		} else if envelope.Error != "" {
			apiErr.Message = envelope.Error
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if hint := resp.Header.Get("Retry-After"); hint != "" {
			if secs, err := strconv.Atoi(hint); err == nil && secs > 0 {
				apiErr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
	}

	return apiErr
}

// IsRateLimited reports whether err is a 429 and returns the server's
// retry hint (zero when the server sent none).
func IsRateLimited(err error) (time.Duration, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return apiErr.RetryAfter, true
	}
	return 0, false
}

// IsGone reports whether err is a 404/410, i.e. the session or task no longer
// exists server-side.
func IsGone(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusGone
	}
	return false
}

// IsBalanceShortage reports whether err is a 403 carrying a balance-shortage
// code, which callers must surface as a purchase prompt rather than a retry.
func IsBalanceShortage(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
		switch apiErr.Code {
		case "insufficient_balance", "insufficient_credits", "balance_exhausted":
			return true
		}
	}
	return false
}

// IsTransient reports whether err is worth retrying: a 5xx from the backend or
// a transport-level failure that never produced a response.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return err != nil
}
