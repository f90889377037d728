package cmd

// Exit codes for xcrunner CLI
const (
	// ExitSuccess indicates every target passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more targets failed
	ExitTestFailure = 1

	// ExitRequestError indicates an invalid run request or request file
	ExitRequestError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitToolError indicates a test tool could not be started
	ExitToolError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64

	// ExitCancelled indicates the run was interrupted
	ExitCancelled = 130
)
