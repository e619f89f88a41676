package tracing

import (
	"errors"
	"fmt"
	"time"

	"github.com/liuxd6825/telemetry/errext"
	"github.com/liuxd6825/telemetry/errext/exitcodes"
)

var (
	// ErrTracingUnsupported is returned when the browser fails the tracing
	// capability probe.
	ErrTracingUnsupported = errext.WithExitCodeIfNone(
		errors.New("tracing not supported for this browser"), exitcodes.TracingUnsupported)

	// ErrTracingHasNotRun is returned by StopTracing when no tracing run
	// ever produced data.
	ErrTracingHasNotRun = errext.WithExitCodeIfNone(
		errors.New("tracing has not been started"), exitcodes.TracingNotRun)
)

// TimeoutError is returned when the trace data did not fully arrive before
// the stop timeout.
type TimeoutError struct {
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Trace data was not fully received due to timeout after %.1f seconds. "+
		"If the trace data is big, you may want to increase the time out amount.", e.Elapsed.Seconds())
}

// ExitCode implements errext.HasExitCode.
func (e *TimeoutError) ExitCode() exitcodes.ExitCode {
	return exitcodes.TracingTimeout
}

// Hint implements errext.HasHint.
func (e *TimeoutError) Hint() string {
	return "raise the stop timeout (--stop-timeout)"
}

var (
	_ errext.HasExitCode = &TimeoutError{}
	_ errext.HasHint     = &TimeoutError{}
)
