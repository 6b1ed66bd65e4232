package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the different failure categories
var (
	// ErrConnectivity - model server unreachable or timed out (surface to the user, abort the round)
	ErrConnectivity = errors.New("connectivity error")

	// ErrProtocol - malformed stream fragment (recovered locally, line skipped)
	ErrProtocol = errors.New("protocol error")

	// ErrToolsUnsupported - model rejected a request carrying tool definitions (retry once without tools)
	ErrToolsUnsupported = errors.New("tools unsupported")

	// ErrInvalidArguments - tool arguments could not be decoded or failed validation (fed back to the model)
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrToolExecution - a tool collaborator raised (converted to a failure result, not fatal)
	ErrToolExecution = errors.New("tool execution failed")

	// ErrNotFound - resource not found (tool, session, todo)
	ErrNotFound = errors.New("not found")

	// ErrStreamIdle - no fragment arrived within the idle window and the watchdog fired
	ErrStreamIdle = errors.New("stream idle timeout")
)

func NotFound(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrNotFound)
}

func InvalidArguments(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidArguments)
}

// Wrap wraps an error with context, preserving the category for errors.Is.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
