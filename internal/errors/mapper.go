package errors

import (
	"context"
	"errors"
	"net"
	"strings"
)

// MapTransport classifies a raw transport-layer error into the taxonomy.
// Context cancellation propagates as-is so callers can tell a user abort
// apart from a server failure.
func MapTransport(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ErrConnectivity, "request timeout")
	}
	if errors.Is(err, ErrToolsUnsupported) || errors.Is(err, ErrStreamIdle) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Wrap(ErrConnectivity, err.Error())
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "no such host"),
		strings.Contains(errStr, "unreachable"),
		strings.Contains(errStr, "timeout"):
		return Wrap(ErrConnectivity, err.Error())
	default:
		return err
	}
}

// IsRecoverableDecode reports whether a decode failure may be skipped
// without aborting the stream.
func IsRecoverableDecode(err error) bool {
	return errors.Is(err, ErrProtocol)
}
