// Package transport carries encoded command streams to printers over
// serial, USB, BLE, and TCP links. The pacer throttles writes so slow
// heads are not overrun; the link types behind it share one small
// handle interface.
package transport

import (
	"errors"
	"fmt"
	"io"
)

// Handle is an open printer link. Write accepts the next bytes of a
// command stream; Close releases the link and is safe to call more than
// once on every implementation in this package.
type Handle interface {
	io.WriteCloser
}

// StatusReader is implemented by handles that can also read device
// notifications, such as serial ports, TCP links, and the BLE notify
// channel. Reads block until the device talks or the link's own timeout
// elapses.
type StatusReader interface {
	ReadNotification(buf []byte) (int, error)
}

// ErrStalled means the device stopped accepting bytes: several writes
// in a row were accepted with zero length.
var ErrStalled = errors.New("link stalled, device stopped accepting bytes")

// FailureError reports a send that died mid-stream. Offset counts the
// bytes the link accepted before the failure, so a caller can tell a
// handshake failure from a death near the end of a job.
type FailureError struct {
	Offset int
	Cause  error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("send failed after %d bytes: %v", e.Offset, e.Cause)
}

func (e *FailureError) Unwrap() error { return e.Cause }

// Logger receives transport diagnostics. zap's SugaredLogger satisfies
// it directly; the default discards everything.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
