package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"go.uber.org/zap"
)

// Exit codes follow the foundry taxonomy so scripts can distinguish
// bad input from provider failures.
var (
	exitInvalidArgument    = foundry.ExitInvalidArgument
	exitServiceUnavailable = foundry.ExitExternalServiceUnavailable
	exitFileWriteError     = foundry.ExitFileWriteError
	exitInterrupted        = foundry.ExitSignalInt
)

// codedError carries a process exit code alongside the wrapped error.
type codedError struct {
	code    int
	message string
	err     error
}

func (e *codedError) Error() string {
	if e.err == nil {
		return e.message
	}
	return fmt.Sprintf("%s: %v", e.message, e.err)
}

func (e *codedError) Unwrap() error {
	return e.err
}

// exitError creates an error that makes the CLI exit with the given code.
func exitError(code int, message string, err error) error {
	return &codedError{code: code, message: message, err: err}
}

// exitCode extracts the exit code from an error chain. Errors without
// a code map to the generic failure code.
func exitCode(err error) int {
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return 1
}

// ExitWithCode logs a fatal message and terminates the process. Only
// for contexts with no error return path; command RunE functions
// should return exitError instead.
func ExitWithCode(logger *zap.Logger, code int, message string, err error) {
	logger.Error(message, zap.Error(err))
	_ = logger.Sync()
	os.Exit(code)
}
