package supabase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// APIError is a non-2xx answer from the hosted service. Status is the HTTP status; Code is the service's
// machine-readable code when present (e.g. "over_email_send_rate_limit" from auth, "23505" from the row API).
type APIError struct {
	Status  int
	Code    string
	Message string
	// Details is the decoded error body, or the raw text when it is not JSON.
	Details any
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: status=%d code=%s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: status=%d: %s", e.Status, e.Message)
}

// parseAPIError builds an APIError from an auth-API body ({code, error_code, msg}), a legacy OAuth body
// ({error, error_description}) or a row-API body ({code, message, details, hint}).
func parseAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		text := strings.TrimSpace(string(raw))
		apiErr.Details = text
		apiErr.Message = text
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}
	apiErr.Details = body
	apiErr.Code = firstString(body, "error_code")
	if apiErr.Code == "" {
		switch v := body["code"].(type) {
		case string:
			apiErr.Code = v
		case float64:
			// auth API echoes the HTTP status as a number; it carries no extra information
			if int(v) != status {
				apiErr.Code = strconv.Itoa(int(v))
			}
		}
	}
	apiErr.Message = firstString(body, "msg", "message", "error_description", "error")
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func firstString(body map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := body[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
