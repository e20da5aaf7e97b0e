package inboxcli

import "fmt"

// Exit codes for the opsdesk CLI.
const (
	ExitCodeSuccess = 0
	ExitCodeFailure = 1
	ExitCodeAuth    = 2
)

// ExitError carries an exit code alongside the error. Printed marks errors
// already written to the terminal, so main doesn't print them twice.
type ExitError struct {
	Code    int
	Err     error
	Printed bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Exitf builds an ExitError from a format string.
func Exitf(code int, format string, args ...any) error {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}
