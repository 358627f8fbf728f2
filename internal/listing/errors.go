package listing

import (
	"errors"
	"fmt"
)

// ConnectivityError means the listing source could not be reached or refused
// the request (transport failure, timeout, non-2xx status).
type ConnectivityError struct {
	Op         string // "channels", "events"
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *ConnectivityError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s returned HTTP %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: fetch %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ParseError means a response arrived but its body did not have the expected shape.
type ParseError struct {
	Op  string
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse %s: %v", e.Op, e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Remediation returns the hint shown to the user for a listing failure.
func Remediation(err error) string {
	var ce *ConnectivityError
	var pe *ParseError
	switch {
	case errors.As(err, &ce):
		return "Unable to update list. Please retry with a VPN."
	case errors.As(err, &pe):
		return "The listing site returned a page in an unexpected format. Retry later; if it persists the scraper needs updating."
	case err != nil:
		return "Unable to update list."
	default:
		return ""
	}
}
