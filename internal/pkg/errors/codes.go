package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrUnauthorized    = 1003
	ErrForbidden       = 1004
	ErrTooManyRequests = 1005
	ErrBadRequest      = 1006
	ErrServiceUnavail  = 1007

	// Auth errors (2000-2999)
	ErrAuthInvalidToken = 2000
	ErrAuthTokenExpired = 2001

	// Chat errors (3000-3999)
	ErrChatUpstream       = 3000
	ErrChatInvalidRequest = 3001
	ErrChatStreamAborted  = 3002

	// Session errors (4000-4999)
	ErrSessionNotFound  = 4000
	ErrSessionUpstream  = 4001
	ErrSessionBadShape  = 4002

	// Usage errors (5000-5999)
	ErrUsageUpstream = 5000
	ErrUsageLimited  = 5001
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:    {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:       {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// Auth errors
	ErrAuthInvalidToken: {ErrAuthInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	ErrAuthTokenExpired: {ErrAuthTokenExpired, http.StatusUnauthorized, "Token expired"},

	// Chat errors
	ErrChatUpstream:       {ErrChatUpstream, http.StatusBadGateway, "Chat service request failed"},
	ErrChatInvalidRequest: {ErrChatInvalidRequest, http.StatusBadRequest, "Invalid chat request"},
	ErrChatStreamAborted:  {ErrChatStreamAborted, http.StatusBadGateway, "Chat stream aborted"},

	// Session errors
	ErrSessionNotFound: {ErrSessionNotFound, http.StatusNotFound, "Session not found"},
	ErrSessionUpstream: {ErrSessionUpstream, http.StatusBadGateway, "Session service request failed"},
	ErrSessionBadShape: {ErrSessionBadShape, http.StatusBadGateway, "Unrecognized session history payload"},

	// Usage errors
	ErrUsageUpstream: {ErrUsageUpstream, http.StatusBadGateway, "Usage service request failed"},
	ErrUsageLimited:  {ErrUsageLimited, http.StatusTooManyRequests, "Usage limit reached"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
