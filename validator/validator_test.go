package validator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcsicore/propid"
	"tcsicore/propval"
	"tcsicore/result"
	"tcsicore/txn"
	"tcsicore/validator"
)

func TestRankedValidationResultAcceptability(t *testing.T) {
	assert.True(t, validator.Ok().IsAcceptable())
	assert.True(t, validator.Warningf("flagged", "").IsAcceptable())
	assert.False(t, validator.Errorf("bad", "").IsAcceptable())
	assert.False(t, validator.DataNotReadyResult("not ready yet").IsAcceptable())
}

func TestDependencyValidatorRecomputesAndFiresOnChange(t *testing.T) {
	store := txn.NewStore()
	minID := propid.Register("validator_test.min_"+t.Name(), "")
	maxID := propid.Register("validator_test.max_"+t.Name(), "")

	min := propval.NewArithmetic[int](minID, 0, 100, nil)
	max := propval.NewArithmetic[int](maxID, 0, 100, nil)
	store.AddProperty(min)
	store.AddProperty(max)

	dv := validator.New([]propid.ID{minID, maxID}, func(tx *txn.Transaction) validator.RankedValidationResult {
		minVal := txn.GetValue[int](tx, minID)
		maxVal := txn.GetValue[int](tx, maxID)
		if !minVal.ContainsValue() || !maxVal.ContainsValue() {
			return validator.DataNotReadyResult("min/max not read yet")
		}
		if minVal.Value() > maxVal.Value() {
			return validator.Errorf("min exceeds max", "min=%d max=%d", minVal.Value(), maxVal.Value())
		}
		return validator.Ok()
	}, nil)

	assert.ElementsMatch(t, []propid.ID{minID, maxID}, dv.PropertyIDs())
	assert.True(t, dv.DependsOn(minID))

	changeCount := 0
	dv.OnValidityChanged(func(propid.ID) { changeCount++ })

	ctxTx, txErr := store.BeginExclusive(context.Background())
	require.NoError(t, txErr)
	defer ctxTx.Close()

	dv.Revalidate(ctxTx)
	assert.Equal(t, 2, changeCount) // DataNotReady -> a change from the initial Ok, fired once per watched id
	assert.False(t, dv.ValidationResult().IsAcceptable())

	txn.SetValue(ctxTx, minID, result.OkOptional(10))
	txn.SetValue(ctxTx, maxID, result.OkOptional(20))
	dv.Revalidate(ctxTx)
	assert.Equal(t, 4, changeCount)
	assert.True(t, dv.ValidationResult().IsAcceptable())

	txn.SetValue(ctxTx, minID, result.OkOptional(30))
	dv.Revalidate(ctxTx)
	assert.Equal(t, 6, changeCount)
	assert.False(t, dv.ValidationResult().IsAcceptable())

	dv.Revalidate(ctxTx)
	assert.Equal(t, 6, changeCount, "revalidating with the same verdict must not fire again")
}

func TestValidateWhatIfSubstitutesCandidateWithoutWriting(t *testing.T) {
	store := txn.NewStore()
	minID := propid.Register("validator_test.whatif_min_"+t.Name(), "")
	maxID := propid.Register("validator_test.whatif_max_"+t.Name(), "")

	min := propval.NewArithmetic[int](minID, 0, 100, nil)
	max := propval.NewArithmetic[int](maxID, 0, 100, nil)
	store.AddProperty(min)
	store.AddProperty(max)

	dv := validator.New([]propid.ID{minID, maxID}, func(tx *txn.Transaction) validator.RankedValidationResult {
		minVal := txn.GetValue[int](tx, minID)
		maxVal := txn.GetValue[int](tx, maxID)
		if !minVal.ContainsValue() || !maxVal.ContainsValue() {
			return validator.DataNotReadyResult("min/max not read yet")
		}
		if minVal.Value() > maxVal.Value() {
			return validator.Errorf("min exceeds max", "min=%d max=%d", minVal.Value(), maxVal.Value())
		}
		return validator.Ok()
	}, nil)

	tx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	defer tx.Close()

	txn.SetValue(tx, minID, result.OkOptional(10))
	txn.SetValue(tx, maxID, result.OkOptional(20))
	dv.Revalidate(tx)
	require.True(t, dv.ValidationResult().IsAcceptable())

	res := validator.ValidateWhatIf(dv, tx, minID, 30)
	assert.False(t, res.IsAcceptable())

	// the real value, and the validator's last recorded verdict, must be untouched
	assert.Equal(t, 10, txn.GetValue[int](tx, minID).Value())
	assert.True(t, dv.ValidationResult().IsAcceptable())
}

func TestValidateWhatIfRejectsPropertyNotWatched(t *testing.T) {
	store := txn.NewStore()
	watchedID := propid.Register("validator_test.whatif_watched_"+t.Name(), "")
	otherID := propid.Register("validator_test.whatif_other_"+t.Name(), "")

	store.AddProperty(propval.NewArithmetic[int](watchedID, 0, 100, nil))
	store.AddProperty(propval.NewArithmetic[int](otherID, 0, 100, nil))

	dv := validator.New([]propid.ID{watchedID}, func(tx *txn.Transaction) validator.RankedValidationResult {
		return validator.Ok()
	}, nil)

	tx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	defer tx.Close()

	res := validator.ValidateWhatIf(dv, tx, otherID, 5)
	assert.False(t, res.IsAcceptable())
}

func TestValidateWhatIfRejectsTypeMismatch(t *testing.T) {
	store := txn.NewStore()
	id := propid.Register("validator_test.whatif_type_"+t.Name(), "")
	store.AddProperty(propval.NewArithmetic[int](id, 0, 100, nil))

	dv := validator.New([]propid.ID{id}, func(tx *txn.Transaction) validator.RankedValidationResult {
		return validator.Ok()
	}, nil)

	tx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	defer tx.Close()

	res := validator.ValidateWhatIf(dv, tx, id, "not an int")
	assert.False(t, res.IsAcceptable())
}

func TestDependencyValidatorIgnoreSuspendsRevalidation(t *testing.T) {
	store := txn.NewStore()
	id := propid.Register("validator_test.ignored_"+t.Name(), "")
	v := propval.NewArithmetic[int](id, 0, 10, nil)
	store.AddProperty(v)

	ignore := true
	dv := validator.New([]propid.ID{id}, func(tx *txn.Transaction) validator.RankedValidationResult {
		return validator.Errorf("should not run", "")
	}, func() bool { return ignore })

	tx, err := store.BeginExclusive(context.Background())
	require.NoError(t, err)
	defer tx.Close()

	dv.Revalidate(tx)
	assert.True(t, dv.ValidationResult().IsAcceptable())
}
