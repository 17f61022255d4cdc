// Package propid is a process-wide registry of property identifiers: every
// property a device exposes is named once, at init time, and thereafter
// referred to by the small comparable ID value this package hands back,
// rather than by string everywhere. The registry itself is the single
// source of truth for which property-id strings exist in the running
// process, mirroring the way the device-type packages (one per camera
// model) register their property sets once on import.
package propid

import "sync"

// ID names one property. The zero ID is never produced by Register; it is
// reserved as an explicit "no property" value for callers that need one.
type ID struct {
	internal int
	valid    bool
}

type entry struct {
	idString string
	info     string
}

var (
	mu         sync.Mutex
	all        []ID
	byInternal []entry
	byIDString = map[string]int{}
)

// Register assigns a new ID to idString, an identifier unique across the
// whole process (e.g. "sensor.temperature"), with a short human-readable
// description. It panics on an empty or already-registered idString, since
// that indicates two property tables were wired with colliding names — a
// startup wiring bug, not a runtime condition.
func Register(idString, info string) ID {
	mu.Lock()
	defer mu.Unlock()

	if idString == "" {
		panic("propid: empty id string")
	}
	if _, exists := byIDString[idString]; exists {
		panic("propid: duplicate id string " + idString)
	}

	internal := len(all)
	id := ID{internal: internal, valid: true}
	all = append(all, id)
	byInternal = append(byInternal, entry{idString: idString, info: info})
	byIDString[idString] = internal
	return id
}

// IsValid reports whether id was produced by Register.
func (id ID) IsValid() bool { return id.valid }

// InternalID returns the dense, assignment-order index backing id. It is
// useful as a map/array key but carries no meaning across process restarts.
func (id ID) InternalID() int { return id.internal }

// IDString returns the stable identifier id was registered with.
func (id ID) IDString() string {
	mu.Lock()
	defer mu.Unlock()
	if !id.valid {
		return ""
	}
	return byInternal[id.internal].idString
}

// Info returns the human-readable description id was registered with.
func (id ID) Info() string {
	mu.Lock()
	defer mu.Unlock()
	if !id.valid {
		return ""
	}
	return byInternal[id.internal].info
}

// String implements fmt.Stringer, returning the same value as IDString.
func (id ID) String() string { return id.IDString() }

// ByInternalID looks up a previously registered ID by its InternalID value.
func ByInternalID(internal int) (ID, bool) {
	mu.Lock()
	defer mu.Unlock()
	if internal < 0 || internal >= len(all) {
		return ID{}, false
	}
	return all[internal], true
}

// ByIDString looks up a previously registered ID by the string it was
// registered with.
func ByIDString(idString string) (ID, bool) {
	mu.Lock()
	defer mu.Unlock()
	internal, ok := byIDString[idString]
	if !ok {
		return ID{}, false
	}
	return all[internal], true
}

// All returns every ID registered so far, in registration order.
func All() []ID {
	mu.Lock()
	defer mu.Unlock()
	return append([]ID(nil), all...)
}
