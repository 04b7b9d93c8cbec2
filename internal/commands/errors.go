package commands

import (
	"errors"
	"fmt"
	"io"

	"taskman/internal/exitcode"
	"taskman/internal/gateway"
)

// WriteError reports a gateway error on errOut and returns the matching
// exit code. Errors are classified by kind, never by message text.
func WriteError(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, gateway.ErrValidation):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	case errors.Is(err, gateway.ErrNotFound):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	case errors.Is(err, gateway.ErrAuth):
		fmt.Fprintf(errOut, "error: %v (run: taskman login)\n", err)
		return exitcode.AuthError
	case errors.Is(err, gateway.ErrNetwork):
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	}
	fmt.Fprintf(errOut, "error: %v\n", err)
	return exitcode.BackendError
}
