package detect

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strings"
)

// Build profiles.
const (
	ProfileDev     = "dev"
	ProfileRelease = "release"
)

// Params are the build knobs that change output identity but not tool
// choice. Distinct Params are tracked as distinct cache entries.
type Params struct {
	Profile   string   `json:"profile"`
	Features  []string `json:"features,omitempty"`
	Target    string   `json:"target,omitempty"`
	Toolchain string   `json:"toolchain,omitempty"`
}

// Normalized returns a copy with the default profile filled in and the
// feature list sorted and de-duplicated.
func (p Params) Normalized() Params {
	out := Params{
		Profile:   strings.TrimSpace(p.Profile),
		Target:    strings.TrimSpace(p.Target),
		Toolchain: strings.TrimSpace(p.Toolchain),
	}
	if out.Profile == "" {
		out.Profile = ProfileDev
	}
	seen := make(map[string]bool, len(p.Features))
	for _, f := range p.Features {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out.Features = append(out.Features, f)
	}
	sort.Strings(out.Features)
	return out
}

// Release reports whether the profile is the release profile.
func (p Params) Release() bool {
	return p.Normalized().Profile == ProfileRelease
}

// Canonical is the unambiguous serialisation of the normalized tuple. Every
// field is length-prefixed so ("a,b") and ("a","b") never collide.
func (p Params) Canonical() []byte {
	n := p.Normalized()
	var buf []byte
	write := func(s string) {
		buf = binary.BigEndian.AppendUint64(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	write(n.Profile)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(n.Features)))
	for _, f := range n.Features {
		write(f)
	}
	write(n.Target)
	write(n.Toolchain)
	return buf
}

// Key is a short stable digest of Canonical, used in stamp file names.
func (p Params) Key() string {
	sum := sha256.Sum256(p.Canonical())
	return hex.EncodeToString(sum[:])[:16]
}

// String renders the tuple for humans.
func (p Params) String() string {
	n := p.Normalized()
	parts := []string{"profile=" + n.Profile}
	if len(n.Features) > 0 {
		parts = append(parts, "features="+strings.Join(n.Features, ","))
	}
	if n.Target != "" {
		parts = append(parts, "target="+n.Target)
	}
	if n.Toolchain != "" {
		parts = append(parts, "toolchain="+n.Toolchain)
	}
	return strings.Join(parts, " ")
}
