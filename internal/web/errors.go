package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - Logged with full technical details and the request ID (server-side)
//   - Returned as JSON {error, message, action, code} using core.MapError
//
// Share links and passwords never reach the client: the technical error
// is only logged, and fetch errors are already redacted at the source.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/proddash/internal/core"
	"github.com/JonMunkholm/proddash/internal/fetch"
	"github.com/JonMunkholm/proddash/internal/logging"
	"github.com/JonMunkholm/proddash/internal/summary"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	// Unmapped errors are unexpected whatever the status.
	logger := logging.FromContext(r.Context())
	level := logger.Warn
	if statusCode >= http.StatusInternalServerError || !core.IsUserFacing(err) {
		level = logger.Error
	}
	level("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusFor picks the HTTP status for an error returned by the facade.
func statusFor(err error) int {
	var fe *fetch.FetchError
	switch {
	case errors.Is(err, summary.ErrUnknownBasis), errors.Is(err, core.ErrUnknownWeek):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyWaiters), errors.Is(err, core.ErrRateLimited):
		return http.StatusTooManyRequests
	case summary.IsSchemaError(err):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fe):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
