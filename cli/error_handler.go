package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/mwstate/errors"
)

// ErrorHandler prints user-facing messages for mwstate errors.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a handler writing to out.
func NewErrorHandler(verbose bool, out io.Writer) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     out,
	}
}

// Handle prints a message for err and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	mwErr, _ := err.(*errors.MWError)
	detail := func(key string) interface{} {
		if mwErr == nil || mwErr.Details == nil {
			return ""
		}
		return mwErr.Details[key]
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "❌ Configuration not found: %v\n", detail("path"))
		fmt.Fprintln(h.Out, "Create mwstate.yml or pass --config.")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "❌ %v\n", err)
		fmt.Fprintln(h.Out, "Run 'mwstate config validate' for a full report.")

	case errors.ErrCodeNotConnected:
		if sock := detail("socket"); sock != "" && sock != nil {
			fmt.Fprintf(h.Out, "❌ mwstate daemon is not running (socket %v)\n", sock)
			fmt.Fprintln(h.Out, "Start it with 'mwstate daemon start'.")
			break
		}
		fmt.Fprintf(h.Out, "❌ Not connected to the middleware at %v\n", detail("url"))
		fmt.Fprintln(h.Out, "Check middleware.url in mwstate.yml and that the server is reachable.")

	case errors.ErrCodeRPCTimeout:
		fmt.Fprintf(h.Out, "❌ Call '%v' timed out after %v\n", detail("method"), detail("timeout"))

	case errors.ErrCodeRPCError:
		fmt.Fprintf(h.Out, "❌ %v (code %v)\n", err, detail("rpcCode"))

	case errors.ErrCodeDispatchInProgress:
		fmt.Fprintln(h.Out, "❌ An action was dispatched while another was still being handled.")

	case errors.ErrCodeInvalidAction, errors.ErrCodeInvalidInput:
		fmt.Fprintf(h.Out, "❌ %v\n", err)

	case errors.ErrCodeCommandFailed:
		fmt.Fprintf(h.Out, "❌ Command '%v' failed", detail("command"))
		if code := detail("exitCode"); code != "" && code != nil {
			fmt.Fprintf(h.Out, " with exit code %v", code)
		}
		fmt.Fprintln(h.Out)

	default:
		fmt.Fprintf(h.Out, "❌ Error: %v\n", err)
	}

	if h.Verbose && mwErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", mwErr.ToJSON())
	}
	return err
}
