package dialect

import (
	"errors"
	"fmt"
)

// ErrBadStatusFrame means a notification buffer is not a parseable
// standard-v1 frame.
var ErrBadStatusFrame = errors.New("malformed status frame")

// Query frame builders for the standard-v1 control channel. The
// extended-v2 family signals state through its own 0x5A notifications
// and has no polled status surface.

// V1StatusRequest builds the device status query frame.
func V1StatusRequest() []byte { return v1Frame(v1CmdGetStatus, []byte{0x00}) }

// V1BatteryRequest builds the battery level query frame.
func V1BatteryRequest() []byte { return v1Frame(v1CmdGetBattery, []byte{0x00}) }

// V1VersionRequest builds the firmware version query frame.
func V1VersionRequest() []byte { return v1Frame(v1CmdGetVersion, []byte{0x00}) }

// V1CancelRequest builds the frame that aborts an in-progress job.
func V1CancelRequest() []byte { return v1Frame(v1CmdCancelPrint, []byte{0x00}) }

// Status is the decoded standard-v1 device status notification.
type Status struct {
	// Printing is true while the head is busy with a job.
	Printing bool
	// Battery is the charge level reported by the device.
	Battery int
	// Temperature is the head temperature reported by the device.
	Temperature int
	// ErrorCode is non-zero when the device flags a fault, such as an
	// open lid or no paper.
	ErrorCode int
}

// Standard-v1 status frame field offsets.
const (
	v1StatusOffState   = 6
	v1StatusOffBattery = 9
	v1StatusOffTemp    = 10
	v1StatusOffErrFlag = 12
	v1StatusOffErrCode = 13
	v1StatusMinLen     = 14
)

// ParseV1Status decodes a status notification frame. The buffer must be
// a complete frame as delivered by the device's notify channel.
func ParseV1Status(buf []byte) (Status, error) {
	if len(buf) < v1StatusMinLen {
		return Status{}, fmt.Errorf("%w: %d bytes", ErrBadStatusFrame, len(buf))
	}
	if buf[0] != v1Preamble0 || buf[1] != v1Preamble1 {
		return Status{}, fmt.Errorf("%w: bad preamble % x", ErrBadStatusFrame, buf[:2])
	}
	if buf[2] != v1CmdGetStatus {
		return Status{}, fmt.Errorf("%w: command 0x%02X is not a status frame", ErrBadStatusFrame, buf[2])
	}

	st := Status{
		Printing:    buf[v1StatusOffState] != 0,
		Battery:     int(buf[v1StatusOffBattery]),
		Temperature: int(buf[v1StatusOffTemp]),
	}
	if buf[v1StatusOffErrFlag] != 0 {
		st.ErrorCode = int(buf[v1StatusOffErrCode])
	}
	return st, nil
}

// IsV1PrintComplete reports whether a notification frame is the print
// completion signal the device emits after flushing a job.
func IsV1PrintComplete(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == v1Preamble0 && buf[1] == v1Preamble1 && buf[2] == v1CmdPrintComplete
}
