package txn_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcsicore/propid"
	"tcsicore/propval"
	"tcsicore/result"
	"tcsicore/txn"
)

func newTestStore(t *testing.T) (*txn.Store, propid.ID, propid.ID) {
	t.Helper()
	store := txn.NewStore()

	temperatureID := propid.Register("txn_test.temperature_"+t.Name(), "")
	modeID := propid.Register("txn_test.mode_"+t.Name(), "")

	temperature := propval.NewArithmetic[float64](temperatureID, -40, 150, nil)
	mode := propval.NewEnum[int](modeID, map[int]string{0: "off", 1: "on"}, nil)

	store.AddProperty(temperature)
	store.AddProperty(mode)

	return store, temperatureID, modeID
}

func TestSharedTransactionReadsValue(t *testing.T) {
	store, temperatureID, _ := newTestStore(t)

	wtx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	txn.SetValue(wtx, temperatureID, result.OkOptional(21.5))
	wtx.Close()

	rtx, err := store.BeginShared(context.Background())
	require.NoError(t, err)
	defer rtx.Close()

	v := txn.GetValue[float64](rtx, temperatureID)
	require.True(t, v.ContainsValue())
	assert.Equal(t, 21.5, v.Value())
}

func TestSetValueOnSharedTransactionWrites(t *testing.T) {
	store, temperatureID, _ := newTestStore(t)

	rtx, err := store.BeginShared(context.Background())
	require.NoError(t, err)
	defer rtx.Close()

	txn.SetValue(rtx, temperatureID, result.OkOptional(1.0))

	v := txn.GetValue[float64](rtx, temperatureID)
	require.True(t, v.ContainsValue())
	assert.Equal(t, 1.0, v.Value())
	assert.True(t, rtx.Changes().ValueWritten(temperatureID))
}

func TestWithValueOverrideSubstitutesAndRestores(t *testing.T) {
	store, temperatureID, _ := newTestStore(t)

	wtx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	defer wtx.Close()

	txn.SetValue(wtx, temperatureID, result.OkOptional(21.5))

	var seenDuring float64
	txn.WithValueOverride(wtx, temperatureID, 99.0, func() {
		seenDuring = txn.GetValue[float64](wtx, temperatureID).Value()
	})

	assert.Equal(t, 99.0, seenDuring)
	assert.Equal(t, 21.5, txn.GetValue[float64](wtx, temperatureID).Value())
}

func TestHasTypedPropertyDistinguishesUnknownFromMismatch(t *testing.T) {
	store, temperatureID, _ := newTestStore(t)
	unknownID := propid.Register("txn_test.unknown_"+t.Name(), "")

	tx, err := store.BeginShared(context.Background())
	require.NoError(t, err)
	defer tx.Close()

	assert.True(t, txn.HasTypedProperty[float64](tx, temperatureID))
	assert.False(t, txn.HasTypedProperty[int](tx, temperatureID))
	assert.False(t, txn.HasTypedProperty[float64](tx, unknownID))
}

func TestExclusiveTransactionRecordsOnlyActualChanges(t *testing.T) {
	store, temperatureID, _ := newTestStore(t)

	wtx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)

	txn.SetValue(wtx, temperatureID, result.OkOptional(10.0))
	txn.SetValue(wtx, temperatureID, result.OkOptional(10.0))

	changes := wtx.Changes()
	wtx.Close()

	assert.True(t, changes.ValueChanged(temperatureID))
	assert.True(t, changes.ValueWritten(temperatureID))
	assert.False(t, changes.IsEmpty())
}

func TestExclusiveLockExcludesConcurrentAccess(t *testing.T) {
	store, _, _ := newTestStore(t)

	first, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)

	_, ok := store.TryBeginExclusive()
	assert.False(t, ok)

	first.Close()

	second, ok := store.TryBeginExclusive()
	assert.True(t, ok)
	second.Close()
}

func TestValidateValueRejectsOutOfRangeWithoutWriting(t *testing.T) {
	store, temperatureID, _ := newTestStore(t)

	wtx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	defer wtx.Close()

	res := txn.ValidateValue[float64](wtx, temperatureID, 1000.0)
	assert.False(t, res.IsOk())

	v := txn.GetValue[float64](wtx, temperatureID)
	assert.False(t, v.ContainsValue())
}

func TestEnumHelpersRoundTrip(t *testing.T) {
	store, _, modeID := newTestStore(t)

	wtx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	txn.SetValue(wtx, modeID, result.OkOptional(1))
	wtx.Close()

	rtx, err := store.BeginShared(context.Background())
	require.NoError(t, err)
	defer rtx.Close()

	names := txn.GetValueToUserNameMap[int](rtx, modeID)
	assert.Equal(t, "on", names[1])
	assert.Equal(t, "on", rtx.GetValueAsString(modeID))
}

func TestMinAndMaxValidValues(t *testing.T) {
	store, temperatureID, _ := newTestStore(t)

	rtx, err := store.BeginShared(context.Background())
	require.NoError(t, err)
	defer rtx.Close()

	min, max, ok := txn.GetMinAndMaxValidValues[float64](rtx, temperatureID)
	require.True(t, ok)
	assert.Equal(t, -40.0, min)
	assert.Equal(t, 150.0, max)
}

func TestAsyncWriterAppliesWritesSerially(t *testing.T) {
	store, temperatureID, _ := newTestStore(t)

	var applied int32
	writer := txn.NewAsyncWriter(context.Background(), store, func(txn.TransactionChanges) {
		atomic.AddInt32(&applied, 1)
	})

	for i := 0; i < 5; i++ {
		v := float64(i)
		writer.Submit(func(tx *txn.Transaction) txn.TransactionChanges {
			txn.SetValue(tx, temperatureID, result.OkOptional(v))
			return tx.Changes()
		})
	}

	require.NoError(t, writer.Wait())
	assert.Equal(t, int32(5), atomic.LoadInt32(&applied))

	rtx, err := store.BeginShared(context.Background())
	require.NoError(t, err)
	defer rtx.Close()
	v := txn.GetValue[float64](rtx, temperatureID)
	require.True(t, v.ContainsValue())
}

func TestConnectionChangedConsumedOnce(t *testing.T) {
	store, _, _ := newTestStore(t)
	store.NotifyConnectionChanged()

	first, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Changes().ConnectionChanged())
	first.Close()

	second, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	defer second.Close()
	assert.False(t, second.Changes().ConnectionChanged())
}

func TestBeginSharedRespectsContextCancellation(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = store.BeginShared(ctx)
	assert.Error(t, err)
}
