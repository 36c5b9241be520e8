package service

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"identity-gateway/internal/supabase"
)

// Operation contexts attached to translated errors.
const (
	ContextRegistration         = "registration"
	ContextRegistrationData     = "registration additional data"
	ContextLogin                = "login"
	ContextOAuthLogin           = "OAuth login"
	ContextTwoFAActivation      = "2FA activation"
	ContextTwoFAVerification    = "2FA verification"
	ContextFinalTwoFAActivation = "final 2FA activation"
)

// Error is the uniform failure returned by every AuthService operation. The handler renders it as the error envelope.
type Error struct {
	Status   int
	Category string
	Message  string
	Details  any
	Context  string
}

func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s", e.Context, e.Message)
	}
	return e.Message
}

// newLocalError returns a locally raised error; its category is the standard status text.
func newLocalError(status int, message string) *Error {
	return &Error{Status: status, Category: http.StatusText(status), Message: message}
}

// Local failures raised by AuthService.
var (
	ErrMissingUserID      = newLocalError(http.StatusBadRequest, "could not obtain user id")
	ErrRedirectNotAllowed = newLocalError(http.StatusBadRequest, "redirect URL not allowed")
	ErrUserNotFound       = newLocalError(http.StatusNotFound, "no user registered with this email")
	ErrMultipleUsers      = newLocalError(http.StatusConflict, "multiple users registered with this email")
	ErrNoChallenge        = newLocalError(http.StatusBadRequest, "no 2FA challenge requested")
	ErrIncorrectCode      = newLocalError(http.StatusBadRequest, "incorrect code")
	ErrCodeExpired        = newLocalError(http.StatusBadRequest, "code expired")
)

// Rate-limit error codes reported by the auth service.
var rateLimitCodes = map[string]bool{
	"over_email_send_rate_limit": true,
	"over_request_rate_limit":    true,
}

// translation is one row of the error translation table.
type translation struct {
	status   int             // origin HTTP status; 0 matches any
	contains string          // substring of the origin message; "" matches any
	codes    map[string]bool // origin error codes that match regardless of status
	outcome  int
	message  string
}

func (t translation) matches(e *supabase.APIError) bool {
	if t.codes[e.Code] {
		return true
	}
	if t.status != 0 && e.Status != t.status {
		return false
	}
	return t.contains == "" || strings.Contains(e.Message, t.contains)
}

// MsgAlreadyRegistered is the translated message for a signup with an email the auth service already knows.
const MsgAlreadyRegistered = "user already registered with this email"

// translations is evaluated top to bottom; the first matching row wins.
var translations = []translation{
	{status: http.StatusBadRequest, contains: "already registered", outcome: http.StatusBadRequest, message: MsgAlreadyRegistered},
	{status: http.StatusBadRequest, contains: "Password should be at least", outcome: http.StatusBadRequest, message: "password must be at least 6 characters"},
	{status: http.StatusBadRequest, contains: "Invalid email", outcome: http.StatusBadRequest, message: "invalid email format"},
	{status: http.StatusBadRequest, outcome: http.StatusBadRequest, message: "invalid input data"},
	{status: http.StatusUnauthorized, outcome: http.StatusUnauthorized, message: "incorrect credentials"},
	{status: http.StatusUnprocessableEntity, outcome: http.StatusUnprocessableEntity, message: "invalid data provided"},
	{status: http.StatusTooManyRequests, codes: rateLimitCodes, outcome: http.StatusTooManyRequests, message: "too many requests, retry later"},
	{status: http.StatusInternalServerError, outcome: http.StatusInternalServerError, message: "internal authentication-server error"},
}

// Translate maps err to the uniform *Error tagged with context. Errors reported by the hosted service go through
// the translation table; locally raised *Error values pass through with context filled in if empty; anything else
// becomes 500 "internal server error". The raw error is logged.
func Translate(err error, context string) *Error {
	if err == nil {
		return nil
	}
	var local *Error
	if errors.As(err, &local) {
		out := *local
		if out.Context == "" {
			out.Context = context
		}
		return &out
	}
	log.Printf("identity: %s: %v", context, err)
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) {
		return translateAPIError(apiErr, context)
	}
	return &Error{
		Status:   http.StatusInternalServerError,
		Category: http.StatusText(http.StatusInternalServerError),
		Message:  "internal server error",
		Details:  err.Error(),
		Context:  context,
	}
}

func translateAPIError(e *supabase.APIError, context string) *Error {
	details := e.Details
	if details == nil {
		details = e.Message
	}
	for _, row := range translations {
		if row.matches(e) {
			return &Error{
				Status:   row.outcome,
				Category: http.StatusText(row.outcome),
				Message:  row.message,
				Details:  details,
				Context:  context,
			}
		}
	}
	// Unlisted answers keep the origin status (400 when it has none) under the Bad Request label.
	status := e.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	return &Error{
		Status:   status,
		Category: http.StatusText(http.StatusBadRequest),
		Message:  "authentication error: " + e.Message,
		Details:  details,
		Context:  context,
	}
}
