package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// DefaultNetworkPort is the raw printing port most network print
// servers listen on.
const DefaultNetworkPort = 9100

// NetworkConfig selects a TCP print server.
type NetworkConfig struct {
	Host string
	// Port zero means DefaultNetworkPort.
	Port int
	// DialTimeout bounds the connection attempt. Zero means five
	// seconds.
	DialTimeout time.Duration
	// ReadTimeout bounds notification reads. Zero blocks forever.
	ReadTimeout time.Duration
}

// NetworkHandle is a TCP printer link.
type NetworkHandle struct {
	conn        net.Conn
	readTimeout time.Duration
	mu          sync.Mutex
}

// OpenNetwork connects to a printer behind a TCP print server.
func OpenNetwork(cfg NetworkConfig) (*NetworkHandle, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("network host is required")
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultNetworkPort
	}
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	address := fmt.Sprintf("%s:%d", cfg.Host, port)
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	return &NetworkHandle{conn: conn, readTimeout: cfg.ReadTimeout}, nil
}

// Write sends stream bytes to the connection.
func (h *NetworkHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.conn.Write(p)
}

// ReadNotification reads device bytes from the connection.
func (h *NetworkHandle) ReadNotification(buf []byte) (int, error) {
	h.mu.Lock()
	conn := h.conn
	timeout := h.readTimeout
	h.mu.Unlock()

	if conn == nil {
		return 0, fmt.Errorf("connection is closed")
	}
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
	}
	return conn.Read(buf)
}

// Close closes the connection.
func (h *NetworkHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}
