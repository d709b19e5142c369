// Package profile computes the Point of Control and Value Area over a
// price-bucketed volume histogram (spec.md §4.B).
package profile

import (
	"errors"
	"math"
)

// ErrNoCandidates is returned when bins are non-empty but their total
// value is zero, so no POC can be disambiguated.
var ErrNoCandidates = errors.New("profile: no volume candidates for POC calculation")

// PocRule disambiguates among bins tied for maximum value.
type PocRule int

const (
	LowestPrice PocRule = iota
	HighestPrice
	ClosestToCenter
)

// ValueAreaRule governs how the value area expands from the POC.
type ValueAreaRule int

const (
	HighestVolume ValueAreaRule = iota
	HighestVolumePreferLower
	Symmetric
)

// Bin is one price bucket of the histogram. Price must be strictly
// ascending across a Bins slice; Value must be non-negative.
type Bin struct {
	Price float64
	Value float64
}

// Stats is the computed market-profile summary.
type Stats struct {
	POC          float64
	ValueAreaLow float64
	ValueAreaHi  float64
}

// epsilon matches bins within machine epsilon of the running maximum,
// so that floating point noise (e.g. 0.1+0.2 vs 0.3) does not split an
// otherwise-tied POC across spurious candidates.
const epsilon = 2.220446049250313e-16

// Compute runs the POC + value-area expansion algorithm described in
// spec.md §4.B over bins, which must be sorted by strictly ascending
// Price.
func Compute(bins []Bin, valueAreaPct float64, pocRule PocRule, vaRule ValueAreaRule) (Stats, error) {
	if len(bins) == 0 {
		return Stats{}, nil
	}

	maxVal := -1.0
	var candidates []int
	total := 0.0

	for i, b := range bins {
		total += b.Value
		switch {
		case b.Value > maxVal:
			maxVal = b.Value
			candidates = candidates[:0]
			candidates = append(candidates, i)
		case math.Abs(b.Value-maxVal) < epsilon:
			candidates = append(candidates, i)
		}
	}

	if len(candidates) == 0 || total <= 0 {
		return Stats{}, ErrNoCandidates
	}

	pocIdx := disambiguatePOC(candidates, pocRule)

	target := total * valueAreaPct
	acc := bins[pocIdx].Value
	lowIdx, highIdx := pocIdx, pocIdx

	for acc < target {
		var belowVal, aboveVal float64
		if lowIdx > 0 {
			belowVal = bins[lowIdx-1].Value
		}
		if highIdx < len(bins)-1 {
			aboveVal = bins[highIdx+1].Value
		}

		if belowVal == 0 && aboveVal == 0 {
			break
		}

		switch vaRule {
		case HighestVolume:
			if aboveVal >= belowVal {
				highIdx++
				acc += aboveVal
			} else {
				lowIdx--
				acc += belowVal
			}
		case HighestVolumePreferLower:
			if aboveVal > belowVal {
				highIdx++
				acc += aboveVal
			} else {
				lowIdx--
				acc += belowVal
			}
		case Symmetric:
			switch {
			case belowVal > 0 && aboveVal > 0:
				lowIdx--
				highIdx++
				acc += belowVal + aboveVal
			case aboveVal > 0:
				highIdx++
				acc += aboveVal
			default:
				lowIdx--
				acc += belowVal
			}
		}
	}

	return Stats{
		POC:          bins[pocIdx].Price,
		ValueAreaLow: bins[lowIdx].Price,
		ValueAreaHi:  bins[highIdx].Price,
	}, nil
}

func disambiguatePOC(candidates []int, rule PocRule) int {
	switch rule {
	case HighestPrice:
		return candidates[len(candidates)-1]
	case ClosestToCenter:
		if len(candidates) == 1 {
			return candidates[0]
		}
		sum := 0
		for _, c := range candidates {
			sum += c
		}
		avg := float64(sum) / float64(len(candidates))
		best := candidates[0]
		bestDiff := math.Abs(float64(best) - avg)
		for _, c := range candidates[1:] {
			diff := math.Abs(float64(c) - avg)
			if diff < bestDiff {
				best, bestDiff = c, diff
			}
		}
		return best
	default: // LowestPrice
		return candidates[0]
	}
}
