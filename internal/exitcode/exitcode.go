// Package exitcode defines exit codes for the taskdeck CLI.
package exitcode

const (
	Success = 0

	// UserError covers bad arguments and unknown or ambiguous task ids.
	UserError = 1

	// ConfigError indicates the environment could not be loaded.
	ConfigError = 2

	// BackendError indicates the task service failed or was unreachable.
	BackendError = 3
)
