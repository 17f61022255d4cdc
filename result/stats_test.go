package result_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tcsicore/result"
)

func TestResultLogEvictsOldest(t *testing.T) {
	var log result.ResultLog
	for i := 0; i < result.MaxResultHistory+10; i++ {
		log.Add(result.Ok())
	}
	assert.Len(t, log.Results(), result.MaxResultHistory)
	assert.EqualValues(t, 10, log.FirstOrdinal())
}

func TestStatusAccumulatesAndResets(t *testing.T) {
	var s result.Status
	s.IncrementOperationsCount()
	s.IncrementOperationsCount()
	s.IncrementFlashBurstWritesCount()
	s.AddReadError(result.Errorf(result.NoResponse, "no response", ""))
	s.AddWriteError(result.Ok())
	s.AddResponseError(result.Errorf(result.TransmissionFailed, "bad frame", ""))

	snap := s.StatsCopy()
	assert.EqualValues(t, 2, snap.OperationsCount)
	assert.EqualValues(t, 1, snap.FlashBurstWritesCount)
	assert.Len(t, snap.ReadErrors.Results(), 1)
	assert.Len(t, snap.WriteErrors.Results(), 1)
	assert.Len(t, snap.ResponseErrors.Results(), 1)

	s.ResetStats()
	snap = s.StatsCopy()
	assert.Zero(t, snap.OperationsCount)
	assert.Empty(t, snap.ReadErrors.Results())
}
