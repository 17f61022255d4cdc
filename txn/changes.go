package txn

import (
	"fmt"
	"sort"
	"strings"

	"tcsicore/propid"
	"tcsicore/result"
)

// TransactionChanges summarizes what a completed transaction actually
// changed: which properties were written, which of those writes
// failed, and whether the underlying connection itself changed state.
type TransactionChanges struct {
	statusChanged     map[propid.ID]struct{}
	valueChanged      map[propid.ID]struct{}
	valueWritten      map[propid.ID]struct{}
	writeErrors       map[propid.ID]*result.Error
	connectionChanged bool
}

// StatusChanged reports whether the summary records an adapter status
// change (enabled, read-only, disabled, ...) for id. Transaction.Changes
// records no status changes, so for a summary it built this reports false.
func (c TransactionChanges) StatusChanged(id propid.ID) bool {
	_, ok := c.statusChanged[id]
	return ok
}

// ValueChanged reports whether a property's current value changed.
func (c TransactionChanges) ValueChanged(id propid.ID) bool {
	_, ok := c.valueChanged[id]
	return ok
}

// ValueWritten reports whether the transaction wrote this property at all
// (including a write that left the value unchanged is NOT reported here;
// only a write that actually changed the value is).
func (c TransactionChanges) ValueWritten(id propid.ID) bool {
	_, ok := c.valueWritten[id]
	return ok
}

// WriteErrors returns the last write error recorded per property, for
// properties whose last write during this transaction failed.
func (c TransactionChanges) WriteErrors() map[propid.ID]*result.Error {
	out := make(map[propid.ID]*result.Error, len(c.writeErrors))
	for id, err := range c.writeErrors {
		out[id] = err
	}
	return out
}

// ConnectionChanged reports whether the device connection itself
// transitioned during the transaction.
func (c TransactionChanges) ConnectionChanged() bool { return c.connectionChanged }

// AnyValueChanged reports whether any of the given properties changed.
func (c TransactionChanges) AnyValueChanged(ids []propid.ID) bool {
	for _, id := range ids {
		if c.ValueChanged(id) {
			return true
		}
	}
	return false
}

// AnyStatusChanged reports whether any of the given properties' statuses
// changed.
func (c TransactionChanges) AnyStatusChanged(ids []propid.ID) bool {
	for _, id := range ids {
		if c.StatusChanged(id) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether nothing changed at all.
func (c TransactionChanges) IsEmpty() bool {
	return len(c.statusChanged) == 0 && len(c.valueChanged) == 0 &&
		len(c.valueWritten) == 0 && len(c.writeErrors) == 0 && !c.connectionChanged
}

// String renders a human-readable summary, used for logging.
func (c TransactionChanges) String() string {
	var lines []string
	if s := idStringsSorted(c.statusChanged); s != "" {
		lines = append(lines, "status: ["+s+"]")
	}
	if s := idStringsSorted(c.valueChanged); s != "" {
		lines = append(lines, "value: ["+s+"]")
	}
	if s := idStringsSorted(c.valueWritten); s != "" {
		lines = append(lines, "written: ["+s+"]")
	}
	lines = append(lines, fmt.Sprintf("writeErrors: %d, connectionChanged: %v", len(c.writeErrors), c.connectionChanged))
	return strings.Join(lines, "\n")
}

func idStringsSorted(ids map[propid.ID]struct{}) string {
	names := make([]string, 0, len(ids))
	for id := range ids {
		names = append(names, id.IDString())
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
