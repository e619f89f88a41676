// Package exitcodes contains the constants representing possible telemetry
// process exit codes.
package exitcodes

// ExitCode is just a type representing a process exit code.
type ExitCode uint8

// list of exit codes used by the telemetry CLI
const (
	SmokeTestFailed    ExitCode = 97
	TracingUnsupported ExitCode = 98
	TracingNotRun      ExitCode = 99
	TracingTimeout     ExitCode = 100
	GenericTimeout     ExitCode = 102
	ConnectionFailed   ExitCode = 103
	InvalidConfig      ExitCode = 104
	ExternalAbort      ExitCode = 105
)
