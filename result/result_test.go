package result_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcsicore/result"
)

func TestVoidOk(t *testing.T) {
	v := result.Ok()
	assert.True(t, v.IsOk())
	assert.Nil(t, v.Error())
	assert.Equal(t, result.None, v.Info())
}

func TestVoidErrorf(t *testing.T) {
	v := result.Errorf(result.DeviceBusy, "device busy", "retry after %dms", 500)
	require.False(t, v.IsOk())
	require.NotNil(t, v.Error())
	assert.Equal(t, result.DeviceBusy, v.Info())
	assert.True(t, v.Info().Recoverable())
	assert.Contains(t, v.Error().Error(), "retry after 500ms")
}

func TestValueGetPanicsOnError(t *testing.T) {
	v := result.ErrValuef[int](result.InvalidData, "bad value", "")
	require.False(t, v.IsOk())
	assert.Equal(t, 0, v.GetOr(0))
	assert.Panics(t, func() { v.Get() })
}

func TestValueVoidConversion(t *testing.T) {
	ok := result.OkValue(42)
	assert.True(t, ok.Void().IsOk())

	failed := result.ErrValue[int](result.NewError(result.AccessDenied, "denied", ""))
	void := failed.Void()
	require.False(t, void.IsOk())
	assert.Equal(t, result.AccessDenied, void.Info())
}

func TestOptionalStates(t *testing.T) {
	absent := result.Absent[string]()
	assert.False(t, absent.HasResult())
	assert.False(t, absent.ContainsValue())
	assert.False(t, absent.ContainsError())

	ok := result.OkOptional("hello")
	assert.True(t, ok.HasResult())
	assert.True(t, ok.ContainsValue())
	assert.Equal(t, "hello", ok.Value())

	failed := result.ErrOptional[string](result.NewError(result.NoResponse, "timeout", ""))
	assert.True(t, failed.HasResult())
	assert.True(t, failed.ContainsError())
	assert.Equal(t, result.NoResponse, failed.Error().Info)
}

func TestFromValueLiftsOptional(t *testing.T) {
	lifted := result.FromValue(result.OkValue(7))
	assert.True(t, lifted.ContainsValue())
	assert.Equal(t, 7, lifted.Value())
}
