package propid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcsicore/propid"
)

func TestRegisterAndLookup(t *testing.T) {
	id := propid.Register("test.register_and_lookup", "a test property")
	require.True(t, id.IsValid())
	assert.Equal(t, "test.register_and_lookup", id.IDString())
	assert.Equal(t, "a test property", id.Info())

	byString, ok := propid.ByIDString("test.register_and_lookup")
	require.True(t, ok)
	assert.Equal(t, id, byString)

	byInternal, ok := propid.ByInternalID(id.InternalID())
	require.True(t, ok)
	assert.Equal(t, id, byInternal)
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	propid.Register("test.duplicate", "first")
	assert.Panics(t, func() {
		propid.Register("test.duplicate", "second")
	})
}

func TestRegisterPanicsOnEmptyIDString(t *testing.T) {
	assert.Panics(t, func() {
		propid.Register("", "whatever")
	})
}

func TestUnknownLookupsFail(t *testing.T) {
	_, ok := propid.ByIDString("test.does_not_exist")
	assert.False(t, ok)

	_, ok = propid.ByInternalID(1 << 30)
	assert.False(t, ok)
}

func TestAllIncludesRegistered(t *testing.T) {
	id := propid.Register("test.all_includes", "present in All")
	found := false
	for _, candidate := range propid.All() {
		if candidate == id {
			found = true
		}
	}
	assert.True(t, found)
}
