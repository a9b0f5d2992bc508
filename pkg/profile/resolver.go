package profile

import (
	"errors"
	"fmt"
)

// Resolution errors. Callers test with errors.Is.
var (
	// ErrUnknownModel means an explicitly requested model id is not in
	// the registry. Explicit requests never fall back to name matching;
	// printing with the wrong physical parameters is worse than failing.
	ErrUnknownModel = errors.New("unknown printer model")
	// ErrUnknownDevice means neither the discovered name nor address
	// identified a supported model.
	ErrUnknownDevice = errors.New("printer model not identified")
)

// MatchSource reports how a profile was resolved.
type MatchSource int

const (
	// MatchExplicit: the caller named the model id.
	MatchExplicit MatchSource = iota
	// MatchExactName: the advertised name equalled a registered name.
	MatchExactName
	// MatchNamePrefix: resolved through a registered name prefix.
	MatchNamePrefix
	// MatchAddress: resolved through a registered MAC suffix.
	MatchAddress
)

// String returns a short tag for logs.
func (s MatchSource) String() string {
	switch s {
	case MatchExplicit:
		return "explicit"
	case MatchExactName:
		return "exact-name"
	case MatchNamePrefix:
		return "name-prefix"
	case MatchAddress:
		return "address"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Match is a resolved profile plus its provenance, so callers can warn
// when a device was only identified through an alias.
type Match struct {
	Profile DeviceProfile
	Source  MatchSource
}

// Resolver resolves print targets to device profiles.
type Resolver struct {
	reg *Registry
}

// NewResolver returns a resolver over the given registry.
func NewResolver(reg *Registry) *Resolver {
	return &Resolver{reg: reg}
}

// Resolve resolves an explicit model id or a discovered device name to a
// profile. An explicit model id must match the registry exactly and wins
// over any discovered name; with no explicit model the discovered name is
// resolved by exact then longest-prefix matching. Either argument may be
// empty.
func (r *Resolver) Resolve(explicitModel, discoveredName string) (DeviceProfile, error) {
	m, err := r.ResolveDevice(explicitModel, discoveredName, "")
	if err != nil {
		return DeviceProfile{}, err
	}
	return m.Profile, nil
}

// ResolveDevice is Resolve with an optional discovered Bluetooth address,
// consulted for registered MAC suffixes after name matching fails.
func (r *Resolver) ResolveDevice(explicitModel, discoveredName, discoveredAddress string) (Match, error) {
	if explicitModel != "" {
		p, ok := r.reg.LookupByModelID(explicitModel)
		if !ok {
			return Match{}, fmt.Errorf("%w %q", ErrUnknownModel, explicitModel)
		}
		return Match{Profile: p, Source: MatchExplicit}, nil
	}

	if discoveredName != "" {
		if m, ok := r.reg.matchByName(discoveredName); ok {
			source := MatchNamePrefix
			if m.exact {
				source = MatchExactName
			}
			return Match{Profile: r.reg.profiles[m.index].clone(), Source: source}, nil
		}
	}

	if discoveredAddress != "" {
		if p, ok := r.reg.LookupByAddress(discoveredAddress); ok {
			return Match{Profile: p, Source: MatchAddress}, nil
		}
	}

	if discoveredName == "" && discoveredAddress == "" {
		return Match{}, fmt.Errorf("%w: no model id or device identity given", ErrUnknownDevice)
	}
	return Match{}, fmt.Errorf("%w: device %q", ErrUnknownDevice, discoveredName)
}
