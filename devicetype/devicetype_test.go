package devicetype_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcsicore/devicetype"
)

func TestRegisterAssignsDistinctInternalIDs(t *testing.T) {
	before := len(devicetype.AllDeviceTypes())

	a := devicetype.Register()
	b := devicetype.Register()

	assert.NotEqual(t, a, b)
	assert.Equal(t, before+2, len(devicetype.AllDeviceTypes()))
	assert.Contains(t, devicetype.AllDeviceTypes(), a)
	assert.Contains(t, devicetype.AllDeviceTypes(), b)
}

func TestSizeIsValid(t *testing.T) {
	assert.True(t, devicetype.Size{Width: 640, Height: 480}.IsValid())
	assert.False(t, devicetype.Size{Width: 0, Height: 480}.IsValid())
	assert.False(t, devicetype.Size{Width: 640, Height: -1}.IsValid())
}

func TestVersionStringRoundTrip(t *testing.T) {
	v := devicetype.Version{Major: 1, Minor: 4, Minor2: 2}
	assert.Equal(t, "1.4.2", v.String())

	parsed := devicetype.ParseVersion("1.4.2")
	require.True(t, parsed.IsOk())
	assert.Equal(t, v, parsed.Get())
}

func TestParseVersionRejectsMalformedInput(t *testing.T) {
	assert.False(t, devicetype.ParseVersion("1.4").IsOk())
	assert.False(t, devicetype.ParseVersion("1.4.x").IsOk())
	assert.False(t, devicetype.ParseVersion("").IsOk())
}
