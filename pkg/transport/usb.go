package transport

import (
	"fmt"
	"sync"

	"github.com/google/gousb"
)

// USBConfig selects a USB printer. A zero config claims the first
// printer-class device found.
type USBConfig struct {
	VendorID  uint16
	ProductID uint16
}

// USBHandle is a USB printer link writing to a bulk OUT endpoint.
type USBHandle struct {
	usbCtx   *gousb.Context
	device   *gousb.Device
	iface    *gousb.Interface
	endpoint *gousb.OutEndpoint
	mu       sync.Mutex
}

// OpenUSB connects to a USB printer and claims a bulk OUT endpoint.
// Without a vendor and product id it scans for a printer-class device.
func OpenUSB(cfg USBConfig) (*USBHandle, error) {
	usbCtx := gousb.NewContext()

	handle, err := openUSB(usbCtx, cfg)
	if err != nil {
		usbCtx.Close()
		return nil, err
	}
	handle.usbCtx = usbCtx
	return handle, nil
}

func openUSB(usbCtx *gousb.Context, cfg USBConfig) (*USBHandle, error) {
	var dev *gousb.Device
	var err error

	if cfg.VendorID != 0 || cfg.ProductID != 0 {
		dev, err = usbCtx.OpenDeviceWithVIDPID(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
		if err != nil {
			return nil, fmt.Errorf("failed to open USB device: %w", err)
		}
		if dev == nil {
			return nil, fmt.Errorf("USB device not found: %04X:%04X", cfg.VendorID, cfg.ProductID)
		}
	} else {
		dev, err = findPrinterClassDevice(usbCtx)
		if err != nil {
			return nil, err
		}
	}

	dev.SetAutoDetach(true)

	// Most printers expose their bulk OUT endpoint on interface 0, alt
	// setting 0; fall back to a full enumeration when they do not.
	iface, done, err := dev.DefaultInterface()
	if err == nil {
		if out := bulkOutEndpoint(iface); out != nil {
			_ = done
			return &USBHandle{device: dev, iface: iface, endpoint: out}, nil
		}
		iface.Close()
	}

	handle, err := claimAnyBulkOut(dev)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return handle, nil
}

// findPrinterClassDevice scans the bus for a device advertising a
// printer-class interface.
func findPrinterClassDevice(usbCtx *gousb.Context) (*gousb.Device, error) {
	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return hasPrinterClassInterface(desc)
	})
	// OpenDevices can return both devices and an error; keep whatever
	// opened.
	if len(devices) == 0 {
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
		}
		return nil, fmt.Errorf("no printer-class USB device found")
	}
	for _, extra := range devices[1:] {
		extra.Close()
	}
	return devices[0], nil
}

func hasPrinterClassInterface(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

// claimAnyBulkOut walks every configuration and interface until a bulk
// OUT endpoint can be claimed.
func claimAnyBulkOut(dev *gousb.Device) (*USBHandle, error) {
	var lastErr error
	for _, cfgDesc := range dev.Desc.Configs {
		devCfg, err := dev.Config(cfgDesc.Number)
		if err != nil {
			lastErr = fmt.Errorf("failed to set config %d: %w", cfgDesc.Number, err)
			continue
		}

		for _, intfDesc := range cfgDesc.Interfaces {
			iface, err := devCfg.Interface(intfDesc.Number, 0)
			if err != nil {
				lastErr = fmt.Errorf("failed to claim interface %d: %w", intfDesc.Number, err)
				continue
			}
			if out := bulkOutEndpoint(iface); out != nil {
				return &USBHandle{device: dev, iface: iface, endpoint: out}, nil
			}
			iface.Close()
		}
		devCfg.Close()
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed to claim a USB endpoint: %w", lastErr)
	}
	return nil, fmt.Errorf("no bulk OUT endpoint found")
}

func bulkOutEndpoint(iface *gousb.Interface) *gousb.OutEndpoint {
	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionOut && epDesc.TransferType == gousb.TransferTypeBulk {
			if out, err := iface.OutEndpoint(epDesc.Number); err == nil {
				return out
			}
		}
	}
	return nil
}

// Write sends stream bytes to the OUT endpoint.
func (h *USBHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.endpoint.Write(p)
}

// Close releases the interface, device, and USB context.
func (h *USBHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.iface != nil {
		h.iface.Close()
		h.iface = nil
	}
	if h.device != nil {
		h.device.Close()
		h.device = nil
	}
	if h.usbCtx != nil {
		h.usbCtx.Close()
		h.usbCtx = nil
	}
	return nil
}
