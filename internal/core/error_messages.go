package core

// error_messages.go maps sync and API failures to user-facing messages with
// codes that dashboard users can quote to whoever maintains the workbook.
//
// # Fetch Errors (FETCH001-FETCH099)
//
//	FETCH001 - Unreachable: The cloud drive could not be reached
//	           Action: The dashboard retries automatically; check the share link if this persists
//	           Match: transient *fetch.FetchError, "connection refused", "timeout"
//
//	FETCH002 - HTTP status: The cloud drive refused the download
//	           Action: Check that the share link is still valid and shared publicly
//	           Match: *fetch.StatusError
//
//	FETCH003 - HTML page: The share link returned a web page instead of the file
//	           Action: Re-create the share link with download access
//	           Match: fetch.ErrHTMLPage
//
//	FETCH004 - Too large: The workbook exceeds the download size limit
//	           Action: Remove unused sheets or raise FETCH_MAX_BYTES
//	           Match: fetch.ErrTooLarge
//
//	FETCH005 - Invalid link: The share link is malformed or unsupported
//	           Action: Check ONEDRIVE_FILE_URL
//	           Match: fetch.ErrInvalidURL
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Sheet missing: The configured sheet is not in the workbook
//	SCH002 - Column missing: A required column header was not found
//	SCH003 - Week scheme: Week identifiers are mixed or changed format
//	SCH004 - Invalid value: A quantity or week cell could not be read
//	SCH005 - Unreadable: The file is not a readable workbook
//
// # API Errors
//
//	API001 - Unknown basis: The requested view does not exist
//	API002 - Unknown week: The week mode is not current or next
//	API003 - No data: No workbook has been synced yet
//	RATE001 - Rate limited: Too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.
//
// Typed errors are matched first with errors.Is / errors.As. Remaining
// errors are matched case-insensitively by substring; the first pattern wins.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/proddash/internal/fetch"
	"github.com/JonMunkholm/proddash/internal/summary"
)

var (
	// ErrUnknownWeek is returned for a week mode other than current or next.
	ErrUnknownWeek = errors.New("unknown week mode")
	// ErrNoData is returned by Export before the first successful sync.
	ErrNoData = errors.New("no workbook synced yet")
	// ErrRateLimited is returned to clients over their request budget.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgUnreachable = UserMessage{
		Message: "The cloud drive could not be reached",
		Action:  "The dashboard retries automatically; check the share link if this persists",
		Code:    "FETCH001",
	}
	msgHTTPStatus = UserMessage{
		Message: "The cloud drive refused the download",
		Action:  "Check that the share link is still valid and shared for download",
		Code:    "FETCH002",
	}
	msgHTMLPage = UserMessage{
		Message: "The share link returned a web page instead of the file",
		Action:  "Re-create the share link with download access",
		Code:    "FETCH003",
	}
	msgTooLarge = UserMessage{
		Message: "The workbook exceeds the download size limit",
		Action:  "Remove unused sheets from the workbook or raise FETCH_MAX_BYTES",
		Code:    "FETCH004",
	}
	msgInvalidLink = UserMessage{
		Message: "The share link is malformed or unsupported",
		Action:  "Check the ONEDRIVE_FILE_URL setting",
		Code:    "FETCH005",
	}
	msgSheetMissing = UserMessage{
		Message: "The configured sheet was not found in the workbook",
		Action:  "Check the sheet name in SUMMARY_SHEET or rename the sheet back",
		Code:    "SCH001",
	}
	msgColumnMissing = UserMessage{
		Message: "A required column is missing from the sheet",
		Action:  "Restore the country, item, category, sub category, week, target and completed headers",
		Code:    "SCH002",
	}
	msgWeekScheme = UserMessage{
		Message: "Week identifiers changed format",
		Action:  "Use one week format (48 or 2025-W48) throughout the sheet",
		Code:    "SCH003",
	}
	msgInvalidValue = UserMessage{
		Message: "A cell in the sheet could not be read",
		Action:  "Fix the cell named in the error; quantities must be numbers",
		Code:    "SCH004",
	}
	msgUnreadable = UserMessage{
		Message: "The downloaded file is not a readable workbook",
		Action:  "Save the file as .xlsx and check the share link",
		Code:    "SCH005",
	}
	msgUnknownBasis = UserMessage{
		Message: "Unknown dashboard view",
		Action:  "Use basis=quantity or basis=style_count",
		Code:    "API001",
	}
	msgUnknownWeek = UserMessage{
		Message: "Unknown week selection",
		Action:  "Use week=current or week=next",
		Code:    "API002",
	}
	msgNoData = UserMessage{
		Message: "No workbook has been synced yet",
		Action:  "Wait for the first sync to finish or request a refresh",
		Code:    "API003",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch untyped errors, for example from wrapped transport
// failures. The first matching pattern wins.
var errorPatterns = []errorPattern{
	{pattern: "connection refused", msg: msgUnreachable},
	{pattern: "connection reset", msg: msgUnreachable},
	{pattern: "no such host", msg: msgUnreachable},
	{pattern: "timeout", msg: msgUnreachable},
	{pattern: "context deadline exceeded", msg: msgUnreachable},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(&summary.SchemaError{Err: summary.ErrMissingColumn})
//	// msg.Code == "SCH002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, summary.ErrSheetNotFound):
		return msgSheetMissing
	case errors.Is(err, summary.ErrMissingColumn):
		return msgColumnMissing
	case errors.Is(err, summary.ErrWeekScheme):
		return msgWeekScheme
	case errors.Is(err, summary.ErrInvalidValue):
		return msgInvalidValue
	case errors.Is(err, summary.ErrUnreadable):
		return msgUnreadable
	case errors.Is(err, summary.ErrUnknownBasis):
		return msgUnknownBasis
	case errors.Is(err, ErrUnknownWeek):
		return msgUnknownWeek
	case errors.Is(err, ErrNoData):
		return msgNoData
	case errors.Is(err, fetch.ErrHTMLPage):
		return msgHTMLPage
	case errors.Is(err, fetch.ErrTooLarge):
		return msgTooLarge
	case errors.Is(err, fetch.ErrInvalidURL):
		return msgInvalidLink
	}

	var se *fetch.StatusError
	if errors.As(err, &se) {
		if se.StatusCode >= 500 || se.StatusCode == 429 {
			return msgUnreachable
		}
		return msgHTTPStatus
	}

	var fe *fetch.FetchError
	if errors.As(err, &fe) && fe.Temporary() {
		return msgUnreachable
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
