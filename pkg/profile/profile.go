// Package profile holds the device profile registry: the static table of
// per-model wire parameters and command dialects, plus name and address
// based model resolution.
package profile

import (
	"fmt"
	"time"
)

// Dialect selects the command framing scheme a model speaks.
type Dialect int

const (
	// DialectStandardV1 is the 0x22 0x21 framed dialect with CRC-8
	// checksums (MXW01 family).
	DialectStandardV1 Dialect = iota
	// DialectExtendedV2 is the 0x5A handshake dialect with indexed 0x55
	// data packets (Dolebo family).
	DialectExtendedV2
)

// String returns the registry tag for the dialect.
func (d Dialect) String() string {
	switch d {
	case DialectStandardV1:
		return "standard-v1"
	case DialectExtendedV2:
		return "extended-v2"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Dialect) MarshalText() ([]byte, error) {
	switch d {
	case DialectStandardV1, DialectExtendedV2:
		return []byte(d.String()), nil
	}
	return nil, fmt.Errorf("unknown dialect %d", int(d))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Dialect) UnmarshalText(text []byte) error {
	switch string(text) {
	case "standard-v1":
		*d = DialectStandardV1
	case "extended-v2":
		*d = DialectExtendedV2
	default:
		return fmt.Errorf("unknown dialect %q", string(text))
	}
	return nil
}

// DeviceProfile captures the wire parameters for one printer model.
// Profiles are immutable; registry lookups hand out copies.
type DeviceProfile struct {
	// ModelID uniquely identifies the model in the registry.
	ModelID string `json:"modelId"`
	// NamePrefixes are Bluetooth-name prefixes that identify this model
	// during discovery, in addition to ModelID itself. May be empty.
	NamePrefixes []string `json:"namePrefixes,omitempty"`
	// MacSuffixes are Bluetooth address suffixes (bare hex) mapping
	// rebadged units to this model. May be empty.
	MacSuffixes []string `json:"macSuffixes,omitempty"`
	// PrintWidthPx is the head width in pixels, always a multiple of 8.
	PrintWidthPx int `json:"printWidthPx"`
	// ImageEnergy and ImageSpeed are the thermal parameters for image
	// mode, on the model's own scale.
	ImageEnergy int `json:"imageEnergy"`
	ImageSpeed  int `json:"imageSpeed"`
	// TextEnergy and TextSpeed are the thermal parameters for text mode.
	TextEnergy int `json:"textEnergy"`
	TextSpeed  int `json:"textSpeed"`
	// ChunkSizeBytes bounds a single transport write.
	ChunkSizeBytes int `json:"chunkSizeBytes"`
	// InterChunkDelayMs is the pause between chunk writes; the printer
	// has no flow control, so this is what keeps its buffer from
	// overrunning.
	InterChunkDelayMs int `json:"interChunkDelayMs"`
	// Dialect selects the command framing for this model.
	Dialect Dialect `json:"dialect"`
}

// Validate checks the profile invariants.
func (p *DeviceProfile) Validate() error {
	if p.ModelID == "" {
		return fmt.Errorf("modelId is required")
	}
	if p.PrintWidthPx <= 0 {
		return fmt.Errorf("printWidthPx must be positive, got %d", p.PrintWidthPx)
	}
	if p.PrintWidthPx%8 != 0 {
		return fmt.Errorf("printWidthPx must be a multiple of 8, got %d", p.PrintWidthPx)
	}
	if p.ImageEnergy <= 0 || p.TextEnergy <= 0 {
		return fmt.Errorf("energies must be positive, got image=%d text=%d", p.ImageEnergy, p.TextEnergy)
	}
	if p.ImageSpeed <= 0 || p.TextSpeed <= 0 {
		return fmt.Errorf("speeds must be positive, got image=%d text=%d", p.ImageSpeed, p.TextSpeed)
	}
	if p.ChunkSizeBytes <= 0 {
		return fmt.Errorf("chunkSizeBytes must be positive, got %d", p.ChunkSizeBytes)
	}
	if p.InterChunkDelayMs < 0 {
		return fmt.Errorf("interChunkDelayMs must not be negative, got %d", p.InterChunkDelayMs)
	}
	if p.Dialect != DialectStandardV1 && p.Dialect != DialectExtendedV2 {
		return fmt.Errorf("unknown dialect %d", int(p.Dialect))
	}
	return nil
}

// WidthBytes returns the packed row length in bytes.
func (p *DeviceProfile) WidthBytes() int {
	return p.PrintWidthPx / 8
}

// InterChunkDelay returns the pacing delay as a duration.
func (p *DeviceProfile) InterChunkDelay() time.Duration {
	return time.Duration(p.InterChunkDelayMs) * time.Millisecond
}

// clone returns a deep copy so callers cannot mutate registry state.
func (p *DeviceProfile) clone() DeviceProfile {
	out := *p
	if p.NamePrefixes != nil {
		out.NamePrefixes = append([]string(nil), p.NamePrefixes...)
	}
	if p.MacSuffixes != nil {
		out.MacSuffixes = append([]string(nil), p.MacSuffixes...)
	}
	return out
}
