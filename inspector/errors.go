package inspector

import (
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto"
)

var (
	// ErrNotConnected is returned by every operation issued before Connect
	// or after Disconnect.
	ErrNotConnected = errors.New("inspector websocket is not connected")

	// ErrTimeout is wrapped by every error reporting that a message did not
	// arrive in time.
	ErrTimeout = errors.New("timed out waiting for an inspector message")
)

// DispatchTimeoutError is returned when DispatchNotificationsUntilDone runs
// out of time before a handler reported completion.
type DispatchTimeoutError struct {
	Elapsed time.Duration
}

func (e *DispatchTimeoutError) Error() string {
	return fmt.Sprintf("dispatching notifications timed out after %.1f seconds", e.Elapsed.Seconds())
}

func (e *DispatchTimeoutError) Unwrap() error {
	return ErrTimeout
}

// RequestTimeoutError is returned when no response to a SyncRequest arrived
// in time.
type RequestTimeoutError struct {
	Method  string
	Elapsed time.Duration
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("no response to %s after %.1f seconds", e.Method, e.Elapsed.Seconds())
}

func (e *RequestTimeoutError) Unwrap() error {
	return ErrTimeout
}

// ResponseError is a protocol level error carried by a command response.
type ResponseError struct {
	Method string
	Err    *cdproto.Error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Method, e.Err.Message, e.Err.Code)
}
