package mail

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"syscall"
)

// ErrNotConfigured is returned when mail settings lack host, port or sender.
var ErrNotConfigured = errors.New("mail settings not configured")

// IsTransient reports whether a failed send is worth retrying. Connection
// problems, timeouts and SMTP 4xx replies are transient. SMTP 5xx replies
// (invalid recipient, authentication failure) and configuration errors are
// permanent, as is anything unrecognized.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConfigured) {
		return false
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code >= 400 && protoErr.Code < 500
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
