package propval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcsicore/propid"
	"tcsicore/propval"
	"tcsicore/result"
)

func TestValueStartsAbsent(t *testing.T) {
	id := propid.Register("test.value_starts_absent", "")
	v := propval.New[int](id, nil)
	assert.False(t, v.HasResult())
	assert.Equal(t, "", v.ValueAsString())
	assert.True(t, v.ValidationResult().IsOk())
}

func TestSetCurrentFiresOnChangeOnlyWhenValueDiffers(t *testing.T) {
	id := propid.Register("test.set_current_fires_once", "")
	v := propval.New[int](id, nil)

	count := 0
	v.OnChanged(func(propid.ID) { count++ })

	v.SetCurrent(result.OkOptional(5))
	v.SetCurrent(result.OkOptional(5))
	assert.Equal(t, 1, count)

	v.SetCurrent(result.OkOptional(6))
	assert.Equal(t, 2, count)
}

func TestValueAsStringUsesDefaultThenCustomStringer(t *testing.T) {
	id := propid.Register("test.value_as_string", "")
	v := propval.New[int](id, nil)
	v.SetCurrent(result.OkOptional(42))
	assert.Equal(t, "42", v.ValueAsString())

	v.SetStringer(func(n int) string { return "n=42" })
	assert.Equal(t, "n=42", v.ValueAsString())
}

func TestValidationResultReflectsLastError(t *testing.T) {
	id := propid.Register("test.validation_result", "")
	v := propval.New[int](id, nil)
	v.SetCurrent(result.ErrOptional[int](result.NewError(result.InvalidData, "bad", "nope")))

	res := v.ValidationResult()
	assert.False(t, res.IsOk())
	assert.Equal(t, result.InvalidData, res.Info())
}

func TestArithmeticRejectsOutOfRange(t *testing.T) {
	id := propid.Register("test.arithmetic_range", "")
	a := propval.NewArithmetic[int](id, 0, 10, nil)

	assert.True(t, a.Validate(5).IsOk())
	res := a.Validate(11)
	assert.False(t, res.IsOk())
	assert.Equal(t, result.InvalidData, res.Info())
	assert.Equal(t, 0, a.MinValidValue())
	assert.Equal(t, 10, a.MaxValidValue())
}

func TestArithmeticRunsExtraValidationAfterRangeCheck(t *testing.T) {
	id := propid.Register("test.arithmetic_extra", "")
	a := propval.NewArithmetic[int](id, 0, 10, func(v int) result.Void {
		if v%2 != 0 {
			return result.Errorf(result.InvalidData, "must be even", "value: %d", v)
		}
		return result.Ok()
	})

	assert.True(t, a.Validate(4).IsOk())
	assert.False(t, a.Validate(5).IsOk())
}

func TestArithmeticPanicsWhenMinExceedsMax(t *testing.T) {
	id := propid.Register("test.arithmetic_bad_bounds", "")
	assert.Panics(t, func() {
		propval.NewArithmetic[int](id, 10, 0, nil)
	})
}

type mode int

const (
	modeOff mode = iota
	modeOn
)

func TestEnumRejectsUnknownValueAndRendersName(t *testing.T) {
	id := propid.Register("test.enum", "")
	e := propval.NewEnum[mode](id, map[mode]string{modeOff: "off", modeOn: "on"}, nil)

	require.True(t, e.Validate(modeOn).IsOk())
	assert.False(t, e.Validate(mode(99)).IsOk())

	e.SetCurrent(result.OkOptional(modeOn))
	assert.Equal(t, "on", e.ValueAsString())
}
