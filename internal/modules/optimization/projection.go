package optimization

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// projectCappedSimplex returns the Euclidean projection of x onto
// {w : 0 <= w_i <= upper, sum(w) = 1}. The projection has the form
// w_i = clip(x_i - tau, 0, upper); tau is found by bisection since the clipped
// sum is monotone in tau. Requires len(x) * upper >= 1.
func projectCappedSimplex(x []float64, upper float64) []float64 {
	w := make([]float64, len(x))
	if len(x) == 0 {
		return w
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			for i := range w {
				w[i] = math.NaN()
			}
			return w
		}
	}

	lo := floats.Min(x) - upper // every coordinate clipped to upper: sum >= 1
	hi := floats.Max(x)         // every coordinate clipped to 0: sum = 0
	for iter := 0; iter < 200; iter++ {
		tau := lo + (hi-lo)/2
		if tau == lo || tau == hi {
			break
		}
		if clippedSum(x, tau, upper) > 1 {
			lo = tau
		} else {
			hi = tau
		}
	}

	tau := lo + (hi-lo)/2
	for i, v := range x {
		w[i] = clip(v-tau, 0, upper)
	}
	spreadResidue(w, upper)
	return w
}

// spreadResidue moves 1 - sum(w) onto the coordinates that can absorb it,
// preferring those strictly inside (0, upper), and clamps every coordinate back
// into [0, upper]. What a clamp cuts off is spread again on the next pass.
func spreadResidue(w []float64, upper float64) {
	for pass := 0; pass < 2*len(w)+2; pass++ {
		residue := 1 - floats.Sum(w)
		if residue == 0 {
			return
		}

		idx := absorbing(w, upper, residue, true)
		if len(idx) == 0 {
			idx = absorbing(w, upper, residue, false)
		}
		if len(idx) == 0 {
			return
		}

		share := residue / float64(len(idx))
		for _, i := range idx {
			w[i] = clip(w[i]+share, 0, upper)
		}
	}
}

// absorbing lists the coordinates with room to move in the residue's
// direction, optionally only those strictly inside (0, upper).
func absorbing(w []float64, upper, residue float64, interiorOnly bool) []int {
	var idx []int
	for i, v := range w {
		if interiorOnly && !(v > 0 && v < upper) {
			continue
		}
		if (residue > 0 && v < upper) || (residue < 0 && v > 0) {
			idx = append(idx, i)
		}
	}
	return idx
}

// freeCoordinates marks the weights strictly inside (0, upper).
func freeCoordinates(w []float64, upper float64) ([]bool, int) {
	free := make([]bool, len(w))
	count := 0
	for i, v := range w {
		if v > 0 && v < upper {
			free[i] = true
			count++
		}
	}
	return free, count
}

func clippedSum(x []float64, tau, upper float64) float64 {
	var sum float64
	for _, v := range x {
		sum += clip(v-tau, 0, upper)
	}
	return sum
}

func clip(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
