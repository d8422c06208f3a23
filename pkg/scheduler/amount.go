package scheduler

import (
	"golang.org/x/exp/constraints"
)

// randomAmount draws a value uniformly from [min, max) using draw, which
// must return values in [0, 1). Equal bounds always yield min.
func randomAmount[T constraints.Float](min, max T, draw func() float64) T {
	if max <= min {
		return min
	}
	return min + T(draw())*(max-min)
}
