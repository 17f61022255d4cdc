// Package validator holds cross-property validation: a RankedValidationResult
// that distinguishes a hard failure from a soft warning from "can't tell
// yet", and a DependencyValidator that recomputes one of these whenever the
// properties it depends on change.
package validator

import (
	"fmt"

	"tcsicore/result"
)

// Rank classifies how serious a failed RankedValidationResult is.
type Rank int

const (
	// rankOk is never stored explicitly; a Rank only accompanies a failure.
	rankOk Rank = iota
	// FatalError means the dependent property's value cannot be accepted.
	FatalError
	// Warning means the value is accepted but questionable.
	Warning
	// DataNotReady means the properties needed to validate haven't been
	// read yet, so no verdict can be given either way.
	DataNotReady
)

// RankedValidationResult is a validation outcome with a severity: unlike a
// plain result.Void, a Warning is "acceptable but flagged", distinct from a
// FatalError which is not acceptable, and DataNotReady which is neither.
type RankedValidationResult struct {
	res  result.Void
	rank Rank
}

// Ok is an unconditionally accepted result.
func Ok() RankedValidationResult {
	return RankedValidationResult{res: result.Ok()}
}

// Error builds a fatal, non-acceptable result.
func Error(err *result.Error) RankedValidationResult {
	return RankedValidationResult{res: result.Err(err), rank: FatalError}
}

// Errorf builds a fatal, non-acceptable result from a formatted message.
func Errorf(general, detailFormat string, args ...interface{}) RankedValidationResult {
	return Error(result.NewError(result.InvalidData, general, fmt.Sprintf(detailFormat, args...)))
}

// WarningResult builds an accepted-but-flagged result.
func WarningResult(err *result.Error) RankedValidationResult {
	return RankedValidationResult{res: result.Err(err), rank: Warning}
}

// Warningf builds an accepted-but-flagged result from a formatted message.
func Warningf(general, detailFormat string, args ...interface{}) RankedValidationResult {
	return WarningResult(result.NewError(result.InvalidData, general, fmt.Sprintf(detailFormat, args...)))
}

// DataNotReadyResult builds a result for when the dependencies needed to
// validate haven't produced a value yet.
func DataNotReadyResult(detail string) RankedValidationResult {
	return RankedValidationResult{
		res:  result.Err(result.NewError(result.InvalidData, "data not ready", detail)),
		rank: DataNotReady,
	}
}

// Result returns the underlying pass/fail result.
func (r RankedValidationResult) Result() result.Void { return r.res }

// IsAcceptable reports whether a value validated against this result should
// still be accepted: true when the result is Ok or only a Warning.
func (r RankedValidationResult) IsAcceptable() bool {
	return r.res.IsOk() || r.rank == Warning
}

// Rank returns the severity of a failing result; meaningless when the
// result is Ok.
func (r RankedValidationResult) Rank() Rank { return r.rank }

