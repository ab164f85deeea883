package errors

import (
	"fmt"
	"os/exec"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *MWError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *MWError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// DispatchInProgress is returned when Dispatch is called while another dispatch is running.
func DispatchInProgress() *MWError {
	return New(ErrCodeDispatchInProgress, "cannot dispatch in the middle of a dispatch")
}

// UnknownToken creates an error for a dispatch token that is not registered
func UnknownToken(token string) *MWError {
	return New(ErrCodeUnknownToken, fmt.Sprintf("'%s' does not map to a registered callback", token)).
		WithDetail("token", token)
}

// CircularWait creates an error for a WaitFor cycle
func CircularWait(token string) *MWError {
	return New(ErrCodeCircularWait, fmt.Sprintf("circular dependency detected while waiting for '%s'", token)).
		WithDetail("token", token)
}

// InvalidAction creates an error for a malformed action document
func InvalidAction(kind string, reason string) *MWError {
	return New(ErrCodeInvalidAction, fmt.Sprintf("invalid %s action: %s", kind, reason)).
		WithDetail("type", kind)
}

// RPCError creates an error for a failed remote call
func RPCError(method string, code int, message string) *MWError {
	return New(ErrCodeRPCError, fmt.Sprintf("rpc call '%s' failed: %s", method, message)).
		WithDetail("method", method).
		WithDetail("rpcCode", code)
}

// RPCTimeout creates an error for a remote call that did not complete in time
func RPCTimeout(method string, timeout string) *MWError {
	return New(ErrCodeRPCTimeout, fmt.Sprintf("rpc call '%s' did not complete within %s", method, timeout)).
		WithDetail("method", method).
		WithDetail("timeout", timeout)
}

// NotConnected creates an error for use of a closed middleware connection
func NotConnected(url string) *MWError {
	return New(ErrCodeNotConnected, "middleware connection is closed").
		WithDetail("url", url)
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *MWError {
	mwErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	if exitErr, ok := err.(*exec.ExitError); ok {
		mwErr = mwErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return mwErr
}
