package sii

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// StatusError reports a non-2xx response, carrying the server-supplied
// message when the body included one.
type StatusError struct {
	Status  int
	Path    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("api %s returned status %d", e.Path, e.Status)
}

// IsTimeout reports whether err was caused by the client-side request
// timeout rather than a server-returned error.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// UserMessage extracts a best-effort human message from a gateway error:
// the server message when present, a fixed hint on timeout, and the raw
// error text otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	if IsTimeout(err) {
		return "el servidor no respondió a tiempo"
	}
	return err.Error()
}
