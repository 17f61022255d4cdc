// Package devicetype holds the small device-identity value types shared
// across the protocol stack: the DeviceType enumeration a device reports
// during discovery, the firmware Version triple, and the frame Size a
// thermal core reports for its image plane.
package devicetype

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"tcsicore/result"
)

// Size is a camera's image-plane dimensions in pixels.
type Size struct {
	Width  int
	Height int
}

// IsValid reports whether both dimensions are positive.
func (s Size) IsValid() bool { return s.Width > 0 && s.Height > 0 }

var (
	deviceTypeMu  sync.Mutex
	allDeviceType []DeviceType
)

// DeviceType identifies one supported device model. Like propid.ID, values
// are only ever produced by Register and compare by identity.
type DeviceType struct {
	internal int
}

// Register adds a new DeviceType to the registry and returns it. Intended to
// be called from package-level var initializers, one per supported model.
func Register() DeviceType {
	deviceTypeMu.Lock()
	defer deviceTypeMu.Unlock()

	dt := DeviceType{internal: len(allDeviceType)}
	allDeviceType = append(allDeviceType, dt)
	return dt
}

// InternalID returns this device type's registration index.
func (d DeviceType) InternalID() int { return d.internal }

// AllDeviceTypes returns every registered device type, in registration order.
func AllDeviceTypes() []DeviceType {
	deviceTypeMu.Lock()
	defer deviceTypeMu.Unlock()
	out := make([]DeviceType, len(allDeviceType))
	copy(out, allDeviceType)
	return out
}

// Version is a three-component firmware/hardware version, e.g. 1.4.2.
type Version struct {
	Major  uint
	Minor  uint
	Minor2 uint
}

// String renders the version as "major.minor.minor2".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Minor2)
}

// ParseVersion parses a "major.minor.minor2" string back into a Version.
func ParseVersion(versionString string) result.Value[Version] {
	parts := strings.Split(versionString, ".")
	if len(parts) != 3 {
		return result.ErrValuef[Version](result.InvalidData, "malformed version string",
			"expected 3 dot-separated components, got %d in %q", len(parts), versionString)
	}

	components := make([]uint, 3)
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return result.ErrValuef[Version](result.InvalidData, "malformed version component",
				"component %d (%q) in %q: %v", i, part, versionString, err)
		}
		components[i] = uint(n)
	}

	return result.OkValue(Version{Major: components[0], Minor: components[1], Minor2: components[2]})
}
