package profile

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed profiles.json
var embeddedTable []byte

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Registry is the static table of supported printer models. It is
// immutable once loaded, so lookups need no synchronization.
type Registry struct {
	profiles []DeviceProfile
	byID     map[string]int
}

// Default returns the process-wide registry backed by the embedded
// profile table. It panics if the embedded table is malformed.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Load(embeddedTable)
		if err != nil {
			panic(fmt.Sprintf("profile: embedded table: %v", err))
		}
		defaultReg = reg
	})
	return defaultReg
}

// Load parses and validates a profile table from JSON. The table is a
// JSON array of profile objects; see profiles.json for the shipped one.
func Load(data []byte) (*Registry, error) {
	var profiles []DeviceProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse profile table: %w", err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("profile table is empty")
	}

	byID := make(map[string]int, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile[%d] %q: %w", i, p.ModelID, err)
		}
		if _, exists := byID[p.ModelID]; exists {
			return nil, fmt.Errorf("profile[%d]: duplicate modelId %q", i, p.ModelID)
		}
		byID[p.ModelID] = i
	}

	return &Registry{profiles: profiles, byID: byID}, nil
}

// LookupByModelID returns the profile with the exact model id.
func (r *Registry) LookupByModelID(id string) (DeviceProfile, bool) {
	i, ok := r.byID[id]
	if !ok {
		return DeviceProfile{}, false
	}
	return r.profiles[i].clone(), true
}

// LookupByDeviceName resolves an advertised Bluetooth name to a profile.
// Exact case-sensitive matches on a model id or registered prefix win
// first; otherwise the longest matching prefix wins, with registration
// order breaking ties. Prefix matching normalizes the advertised name
// (whitespace stripped, uppercased) the same way registered prefixes are
// normalized.
func (r *Registry) LookupByDeviceName(name string) (DeviceProfile, bool) {
	m, ok := r.matchByName(name)
	if !ok {
		return DeviceProfile{}, false
	}
	return r.profiles[m.index].clone(), true
}

// LookupByAddress resolves a Bluetooth address to a profile through the
// registered MAC suffixes. Candidates are compared both as trimmed
// uppercase text and as bare hex.
func (r *Registry) LookupByAddress(addr string) (DeviceProfile, bool) {
	if addr == "" {
		return DeviceProfile{}, false
	}
	candidates := []string{strings.ToUpper(strings.TrimSpace(addr))}
	if hex := normalizeAddress(addr); hex != "" && hex != candidates[0] {
		candidates = append(candidates, hex)
	}
	for i := range r.profiles {
		for _, suffix := range r.profiles[i].MacSuffixes {
			s := strings.ToUpper(suffix)
			for _, c := range candidates {
				if strings.HasSuffix(c, s) {
					return r.profiles[i].clone(), true
				}
			}
		}
	}
	return DeviceProfile{}, false
}

// ListAll returns every profile in registration order.
func (r *Registry) ListAll() []DeviceProfile {
	out := make([]DeviceProfile, len(r.profiles))
	for i := range r.profiles {
		out[i] = r.profiles[i].clone()
	}
	return out
}

type nameMatch struct {
	index int
	exact bool
}

func (r *Registry) matchByName(name string) (nameMatch, bool) {
	if name == "" {
		return nameMatch{}, false
	}

	// Exact advertised names first.
	for i := range r.profiles {
		p := &r.profiles[i]
		if name == p.ModelID {
			return nameMatch{index: i, exact: true}, true
		}
		for _, prefix := range p.NamePrefixes {
			if name == prefix {
				return nameMatch{index: i, exact: true}, true
			}
		}
	}

	// Longest normalized prefix wins; first registration on equal length.
	normalized := normalizeName(name)
	best := -1
	bestLen := 0
	for i := range r.profiles {
		p := &r.profiles[i]
		if l := len(normalizeName(p.ModelID)); l > bestLen && strings.HasPrefix(normalized, normalizeName(p.ModelID)) {
			best, bestLen = i, l
		}
		for _, prefix := range p.NamePrefixes {
			np := normalizeName(prefix)
			if len(np) > bestLen && strings.HasPrefix(normalized, np) {
				best, bestLen = i, len(np)
			}
		}
	}
	if best < 0 {
		return nameMatch{}, false
	}
	return nameMatch{index: best}, true
}

// normalizeName strips whitespace and uppercases for prefix comparison.
func normalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// normalizeAddress reduces an address to bare uppercase hex digits.
func normalizeAddress(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
