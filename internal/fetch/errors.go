package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
)

var (
	// ErrHTMLPage means the link served a web page (sign-in wall, preview,
	// expired share) instead of the workbook.
	ErrHTMLPage = errors.New("share link returned an HTML page")
	// ErrTooLarge means the payload exceeded Config.MaxBytes.
	ErrTooLarge = errors.New("payload exceeds size limit")
	// ErrTruncated means fewer bytes arrived than the server announced.
	ErrTruncated = errors.New("truncated response body")
	// ErrInvalidURL means the share link could not be parsed or resolved.
	ErrInvalidURL = errors.New("invalid share link")
)

// StatusError is a non-success HTTP response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %s", e.Status)
}

// FetchError is returned when a fetch fails, after retries where the cause
// was transient. Err is the last underlying cause.
type FetchError struct {
	URL      string // share link with query and fragment removed
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether the last cause was transient.
func (e *FetchError) Temporary() bool { return isTransient(e.Err) }

// isTransient classifies errors worth another attempt: timeouts, resets,
// refused connections, short reads, 5xx and 429.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == 429
	}

	switch {
	case errors.Is(err, ErrTooLarge), errors.Is(err, ErrHTMLPage), errors.Is(err, ErrInvalidURL):
		return false
	case errors.Is(err, ErrTruncated),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// redactURL drops the query and fragment, which carry share tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" && u.Scheme != "file" {
		return "<invalid url>"
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()
}

// redactErr strips share tokens from the URL embedded in client errors.
func redactErr(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redactURL(ue.URL)
	}
	return err
}
