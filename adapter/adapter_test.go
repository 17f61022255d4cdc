package adapter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcsicore/adapter"
	"tcsicore/devicetype"
	"tcsicore/memspace"
	"tcsicore/propid"
	"tcsicore/propval"
	"tcsicore/result"
	"tcsicore/txn"
	"tcsicore/validator"
)

type fakeAdapter struct {
	*adapter.Adapter
	touched int
}

func (f *fakeAdapter) Touch(t *txn.Transaction)           { f.touched++ }
func (f *fakeAdapter) RefreshValue(t *txn.Transaction)    {}
func (f *fakeAdapter) InvalidateValue(t *txn.Transaction) {}

func TestStatusIsReadableIsWritable(t *testing.T) {
	assert.True(t, adapter.ReadOnly.IsReadable())
	assert.False(t, adapter.ReadOnly.IsWritable())
	assert.True(t, adapter.WriteOnly.IsWritable())
	assert.False(t, adapter.WriteOnly.IsReadable())
	assert.True(t, adapter.ReadWrite.IsReadable())
	assert.True(t, adapter.ReadWrite.IsWritable())
	assert.False(t, adapter.Disabled.IsReadable())
	assert.False(t, adapter.Disabled.IsWritable())
}

func TestUpdateStatusDeviceChangedAppliesBaseStatus(t *testing.T) {
	store := txn.NewStore()
	id := propid.Register("adapter_test.base_"+t.Name(), "")
	v := propval.New[int](id, nil)
	store.AddProperty(v)

	a := adapter.New(id, func(dt *devicetype.DeviceType) adapter.Status {
		if dt == nil {
			return adapter.Disabled
		}
		return adapter.ReadWrite
	})

	tx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	defer tx.Close()

	assert.Equal(t, adapter.Disabled, a.GetStatus(tx))

	dt := devicetype.Register()
	a.UpdateStatusDeviceChanged(&dt, tx)
	assert.Equal(t, adapter.ReadWrite, a.GetStatus(tx))
	assert.True(t, a.IsReadable(tx))
	assert.True(t, a.IsWritable(tx))
}

func TestSetStatusResetsValueWhenNoLongerReadable(t *testing.T) {
	store := txn.NewStore()
	id := propid.Register("adapter_test.reset_"+t.Name(), "")
	v := propval.New[int](id, nil)
	store.AddProperty(v)

	a := adapter.New(id, func(dt *devicetype.DeviceType) adapter.Status { return adapter.ReadWrite })

	tx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	defer tx.Close()

	dt := devicetype.Register()
	a.UpdateStatusDeviceChanged(&dt, tx)
	txn.SetValue(tx, id, result.OkOptional(5))
	require.True(t, txn.GetValue[int](tx, id).ContainsValue())

	a.SetStatusConstraint(func(t *txn.Transaction) adapter.Status { return adapter.WriteOnly }, nil)
	a.Refresh(tx)

	assert.Equal(t, adapter.WriteOnly, a.GetStatus(tx))
	assert.False(t, txn.GetValue[int](tx, id).ContainsValue())
}

func TestStatusConstraintNarrowsReadWriteToOneDirection(t *testing.T) {
	store := txn.NewStore()
	id := propid.Register("adapter_test.narrow_"+t.Name(), "")
	v := propval.New[int](id, nil)
	store.AddProperty(v)

	a := adapter.New(id, func(dt *devicetype.DeviceType) adapter.Status { return adapter.ReadWrite })
	tx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	defer tx.Close()

	dt := devicetype.Register()
	a.UpdateStatusDeviceChanged(&dt, tx)

	a.SetStatusConstraint(func(t *txn.Transaction) adapter.Status { return adapter.ReadOnly }, nil)
	a.Refresh(tx)
	assert.Equal(t, adapter.ReadOnly, a.GetStatus(tx))
}

func TestGetStatusTouchesConstraintAdapters(t *testing.T) {
	store := txn.NewStore()
	ownID := propid.Register("adapter_test.own_"+t.Name(), "")
	depID := propid.Register("adapter_test.dep_"+t.Name(), "")
	store.AddProperty(propval.New[int](ownID, nil))
	store.AddProperty(propval.New[int](depID, nil))

	dep := &fakeAdapter{Adapter: adapter.New(depID, func(dt *devicetype.DeviceType) adapter.Status { return adapter.ReadWrite })}
	own := adapter.New(ownID, func(dt *devicetype.DeviceType) adapter.Status { return adapter.ReadWrite })
	own.SetStatusConstraint(func(t *txn.Transaction) adapter.Status { return adapter.ReadWrite }, []adapter.Base{dep})

	tx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	defer tx.Close()

	own.GetStatus(tx)
	assert.Equal(t, 1, dep.touched)
}

func TestDependencyValidatorsRequireOwnID(t *testing.T) {
	id := propid.Register("adapter_test.own_validator_"+t.Name(), "")
	otherID := propid.Register("adapter_test.unrelated_"+t.Name(), "")

	a := adapter.New(id, nil)
	dv := validator.New([]propid.ID{otherID}, func(t *txn.Transaction) validator.RankedValidationResult {
		return validator.Ok()
	}, nil)

	assert.Panics(t, func() { a.AddDependencyValidator(dv) })
}

func TestAddressRangesRoundTrip(t *testing.T) {
	id := propid.Register("adapter_test.address_ranges_"+t.Name(), "")
	a := adapter.New(id, nil)

	assert.Empty(t, a.AddressRanges())

	r := memspace.FirstAndSize(0x10, 4)
	a.SetAddressRanges(r)
	assert.Equal(t, []memspace.Range{r}, a.AddressRanges())

	assert.Panics(t, func() { a.SetAddressRanges(r) })
}

func TestSubsidiaryPropertyIDs(t *testing.T) {
	id := propid.Register("adapter_test.subsidiary_"+t.Name(), "")
	subID := propid.Register("adapter_test.sub_"+t.Name(), "")

	a := adapter.New(id, nil)
	a.AddSubsidiaryAdapterPropertyID(subID)
	assert.Contains(t, a.SubsidiaryAdapterPropertyIDs(), subID)

	a.RemoveSubsidiaryAdapterPropertyID(subID)
	assert.NotContains(t, a.SubsidiaryAdapterPropertyIDs(), subID)
}
