package transport

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaud is used when a serial config leaves the rate unset. The
// Bluetooth-to-serial bridges in these printers run at 115200.
const DefaultBaud = 115200

// SerialConfig selects and tunes a serial link.
type SerialConfig struct {
	// Device is the port path, such as /dev/ttyUSB0 or /dev/rfcomm0.
	Device string
	// Baud is the line rate. Zero means DefaultBaud.
	Baud int
	// ReadTimeout bounds notification reads. Zero blocks forever.
	ReadTimeout time.Duration
}

// SerialHandle is a serial printer link.
type SerialHandle struct {
	port *serial.Port
	mu   sync.Mutex
}

// OpenSerial opens a serial link to a printer.
func OpenSerial(cfg SerialConfig) (*SerialHandle, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial device path is required")
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	return &SerialHandle{port: port}, nil
}

// Write sends stream bytes to the port.
func (h *SerialHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.port.Write(p)
}

// ReadNotification reads device bytes from the port. It does not hold
// the write lock, so a blocked read never stalls a send.
func (h *SerialHandle) ReadNotification(buf []byte) (int, error) {
	h.mu.Lock()
	port := h.port
	h.mu.Unlock()

	if port == nil {
		return 0, fmt.Errorf("serial port is closed")
	}
	return port.Read(buf)
}

// Close closes the port.
func (h *SerialHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.port == nil {
		return nil
	}
	err := h.port.Close()
	h.port = nil
	return err
}

// ListSerialPorts returns candidate printer ports for this platform.
func ListSerialPorts() []string {
	var ports []string

	switch runtime.GOOS {
	case "darwin":
		skipPatterns := []string{"Bluetooth-Incoming", "Modem", "DialIn", "Callout", "KeySerial", "debug-console"}
		cuPorts, _ := filepath.Glob("/dev/cu.*")
		ttyPorts, _ := filepath.Glob("/dev/tty.*")
		for _, port := range append(cuPorts, ttyPorts...) {
			skip := false
			for _, pattern := range skipPatterns {
				if strings.Contains(port, pattern) {
					skip = true
					break
				}
			}
			if !skip {
				ports = append(ports, port)
			}
		}
	case "linux":
		usbPorts, _ := filepath.Glob("/dev/ttyUSB*")
		acmPorts, _ := filepath.Glob("/dev/ttyACM*")
		rfcommPorts, _ := filepath.Glob("/dev/rfcomm*")
		ports = append(ports, usbPorts...)
		ports = append(ports, acmPorts...)
		ports = append(ports, rfcommPorts...)
	}

	return ports
}
