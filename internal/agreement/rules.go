package agreement

import (
	"fmt"
	"math"

	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// axisEpsilon includes the upper grid bound despite rounding.
const axisEpsilon = 1e-7

// MinCellSizeFactor is the smallest accepted cell size factor.
const MinCellSizeFactor = 1e-7

// AxisSteps returns the coordinates visited along one axis: lo, lo+cell,
// ... while below hi plus a small epsilon. hi itself is only visited when
// cell divides hi-lo; otherwise there are floor((hi-lo)/cell)+1 steps.
func AxisSteps(lo, hi, cell float64) []float64 {
	if cell <= 0 || hi < lo {
		return nil
	}
	var out []float64
	for i := 0; ; i++ {
		v := lo + float64(i)*cell
		if v >= hi+axisEpsilon {
			break
		}
		out = append(out, v)
	}
	return out
}

// ShouldSkip reports whether a cell is excluded from voting: some world
// reports contact, but all contacts are grazing.
func ShouldSkip(colliding int, maxDepth, zeroDepthTol float64) bool {
	return colliding > 0 && math.Abs(maxDepth) < zeroDepthTol
}

// Disagrees reports whether the majority side's fraction is below minAgree.
// A tie always counts against the colliding side.
func Disagrees(positive, negative, minAgree float64) bool {
	return (positive > negative && positive < minAgree) ||
		(positive <= negative && negative < minAgree)
}

// ValidateParams checks sweep parameters.
func ValidateParams(p core.SweepParams) error {
	if p.CellSizeFactor <= MinCellSizeFactor {
		return fmt.Errorf("cell size factor must exceed %g, got %g", MinCellSizeFactor, p.CellSizeFactor)
	}
	if p.MinAgree <= 0 || p.MinAgree > 1 {
		return fmt.Errorf("min agreement must be in (0, 1], got %g", p.MinAgree)
	}
	if p.BBTol < 0 || p.ZeroDepthTol < 0 {
		return fmt.Errorf("tolerances must not be negative")
	}
	return nil
}

// Check turns a summary with failed cells into an ErrAgreementFailure.
func Check(s core.Summary) error {
	if s.Passed() {
		return nil
	}
	return fmt.Errorf("%w: %d of %d evaluated cells", core.ErrAgreementFailure, s.Failures, s.Evaluated)
}
