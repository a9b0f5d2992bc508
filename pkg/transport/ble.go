package transport

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/minithermal/print-engine/pkg/dialect"
)

// GATT ids of the standard-v1 printer family. The control
// characteristic takes command frames, the data characteristic raw
// raster bytes, and the notify characteristic carries status frames
// back.
var (
	blePrinterService = bluetooth.New16BitUUID(0xAE30)
	bleControlChar    = bluetooth.New16BitUUID(0xAE01)
	bleNotifyChar     = bluetooth.New16BitUUID(0xAE02)
	bleDataChar       = bluetooth.New16BitUUID(0xAE03)
)

// DefaultScanTimeout bounds a BLE scan when the config does not.
const DefaultScanTimeout = 10 * time.Second

// bleNotifyBacklog is how many unread notifications are kept before the
// oldest are dropped.
const bleNotifyBacklog = 8

// BLEConfig selects a BLE printer. With both Address and Name empty the
// scan takes the first device advertising the printer service.
type BLEConfig struct {
	// Address is the device MAC, like AA:11:CC:30:99:F2.
	Address string
	// Name matches a prefix of the advertised local name when Address
	// is empty.
	Name string
	// WidthBytes is the head's row stride, used to split the stream
	// between the control and data characteristics. Zero means the
	// family's 48-byte rows.
	WidthBytes int
	// ScanTimeout bounds the scan. Zero means DefaultScanTimeout.
	ScanTimeout time.Duration
	// ReadTimeout bounds notification reads. Zero blocks forever.
	ReadTimeout time.Duration
	// Logger receives link diagnostics. Nil discards them.
	Logger Logger
}

func (cfg BLEConfig) matches(result bluetooth.ScanResult) bool {
	if cfg.Address != "" {
		return strings.EqualFold(result.Address.String(), cfg.Address)
	}
	if cfg.Name != "" {
		return strings.HasPrefix(strings.ToUpper(result.LocalName()), strings.ToUpper(cfg.Name))
	}
	return result.HasServiceUUID(blePrinterService)
}

// BLEHandle is a BLE printer link. Stream bytes written to it are split
// by the dialect router: command frames go to the control
// characteristic, raster runs to the data characteristic.
type BLEHandle struct {
	device      bluetooth.Device
	control     bluetooth.DeviceCharacteristic
	data        bluetooth.DeviceCharacteristic
	router      *dialect.V1Router
	notify      chan []byte
	readTimeout time.Duration
	logger      Logger
	name        string
	address     string

	mu     sync.Mutex
	closed bool
}

// DiscoveredName returns the local name seen during the scan, for model
// resolution.
func (h *BLEHandle) DiscoveredName() string { return h.name }

// DiscoveredAddress returns the device MAC seen during the scan.
func (h *BLEHandle) DiscoveredAddress() string { return h.address }

// OpenBLE scans for a standard-v1 printer, connects, and resolves its
// characteristics.
func OpenBLE(cfg BLEConfig) (*BLEHandle, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	widthBytes := cfg.WidthBytes
	if widthBytes == 0 {
		widthBytes = 48
	}

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE adapter: %w", err)
	}

	result, err := scanForPrinter(adapter, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Infof("connecting to %s (%s)", result.LocalName(), result.Address.String())

	device, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", result.Address.String(), err)
	}

	handle, err := resolveCharacteristics(device, widthBytes, cfg, logger)
	if err != nil {
		device.Disconnect()
		return nil, err
	}
	handle.name = result.LocalName()
	handle.address = result.Address.String()
	return handle, nil
}

func scanForPrinter(adapter *bluetooth.Adapter, cfg BLEConfig, logger Logger) (bluetooth.ScanResult, error) {
	timeout := cfg.ScanTimeout
	if timeout == 0 {
		timeout = DefaultScanTimeout
	}

	logger.Debugf("scanning for printer, timeout %s", timeout)
	found := make(chan bluetooth.ScanResult, 1)
	timer := time.AfterFunc(timeout, func() { adapter.StopScan() })
	defer timer.Stop()

	err := adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !cfg.matches(result) {
			return
		}
		select {
		case found <- result:
			a.StopScan()
		default:
		}
	})
	if err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("BLE scan failed: %w", err)
	}

	select {
	case result := <-found:
		return result, nil
	default:
		return bluetooth.ScanResult{}, fmt.Errorf("no matching printer found within %s", timeout)
	}
}

func resolveCharacteristics(device bluetooth.Device, widthBytes int, cfg BLEConfig, logger Logger) (*BLEHandle, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{blePrinterService})
	if err != nil {
		return nil, fmt.Errorf("failed to discover printer service: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("device does not expose the printer service")
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{bleControlChar, bleNotifyChar, bleDataChar})
	if err != nil {
		return nil, fmt.Errorf("failed to discover characteristics: %w", err)
	}

	handle := &BLEHandle{
		device:      device,
		router:      dialect.NewV1Router(widthBytes),
		notify:      make(chan []byte, bleNotifyBacklog),
		readTimeout: cfg.ReadTimeout,
		logger:      logger,
	}

	var haveControl, haveData bool
	for _, c := range chars {
		c := c
		switch c.UUID() {
		case bleControlChar:
			handle.control = c
			haveControl = true
		case bleDataChar:
			handle.data = c
			haveData = true
		case bleNotifyChar:
			err := c.EnableNotifications(func(buf []byte) {
				msg := append([]byte(nil), buf...)
				select {
				case handle.notify <- msg:
				default:
				}
			})
			if err != nil {
				logger.Warnf("failed to enable notifications: %v", err)
			}
		}
	}
	if !haveControl || !haveData {
		return nil, fmt.Errorf("device is missing the control or data characteristic")
	}
	return handle, nil
}

// Write feeds stream bytes through the dialect router to the two
// characteristics.
func (h *BLEHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, fmt.Errorf("BLE link is closed")
	}
	return h.router.Feed(p, h.writeControl, h.writeData)
}

func (h *BLEHandle) writeControl(frame []byte) error {
	if _, err := h.control.WriteWithoutResponse(frame); err != nil {
		return fmt.Errorf("control write failed: %w", err)
	}
	return nil
}

func (h *BLEHandle) writeData(run []byte) error {
	if _, err := h.data.WriteWithoutResponse(run); err != nil {
		return fmt.Errorf("data write failed: %w", err)
	}
	return nil
}

// ReadNotification returns the next status frame from the notify
// characteristic.
func (h *BLEHandle) ReadNotification(buf []byte) (int, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return 0, fmt.Errorf("BLE link is closed")
	}

	if h.readTimeout == 0 {
		msg := <-h.notify
		return copy(buf, msg), nil
	}

	timer := time.NewTimer(h.readTimeout)
	defer timer.Stop()
	select {
	case msg := <-h.notify:
		return copy(buf, msg), nil
	case <-timer.C:
		return 0, fmt.Errorf("no notification within %s", h.readTimeout)
	}
}

// Close disconnects from the device.
func (h *BLEHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if err := h.device.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}
