package core

import "errors"

var errNoFactorization = errors.New("no exact divider pair for frequency")

// SolveDividers finds integer dividers a and b such that
// baseClock / (a * b) == frequencyHz exactly, with 1 <= a <= maxA and
// 1 <= b <= maxB. The smallest fitting a is chosen, which leaves the
// period counter b as large as possible.
//
// A 16 MHz clock at 100 Hz with two 16-bit counters gives a=4, b=40000.
func SolveDividers(baseClock, frequencyHz, maxA, maxB uint32) (a, b uint32, err error) {
	if baseClock == 0 || frequencyHz == 0 || maxA == 0 || maxB == 0 {
		return 0, 0, NewFault(ErrInvalidParam, "dividers", errors.New("zero clock, frequency or range"))
	}
	if baseClock%frequencyHz != 0 {
		return 0, 0, NewFault(ErrInvalidParam, "dividers", errNoFactorization)
	}
	total := uint64(baseClock / frequencyHz)

	// a must be at least ceil(total / maxB) for b to fit.
	minA := (total + uint64(maxB) - 1) / uint64(maxB)
	if minA == 0 {
		minA = 1
	}
	for cand := minA; cand <= uint64(maxA) && cand <= total; cand++ {
		if total%cand != 0 {
			continue
		}
		q := total / cand
		if q <= uint64(maxB) {
			return uint32(cand), uint32(q), nil
		}
	}
	return 0, 0, NewFault(ErrInvalidParam, "dividers", errNoFactorization)
}
