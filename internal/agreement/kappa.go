package agreement

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Weighting selects how disagreements between categories are penalized.
type Weighting int

const (
	Unweighted Weighting = iota
	Quadratic
)

func (w Weighting) String() string {
	if w == Quadratic {
		return "quadratic"
	}
	return "unweighted"
}

// CohenKappa computes kappa = 1 - sum(W*O) / sum(W*E) for two aligned
// rating sequences, where O is the observed confusion matrix, E the matrix
// expected from the raters' marginals and W the disagreement weights.
// Categories are the integer scores lo..hi. The result is NaN when the
// sequences are empty or of different lengths, when a rating falls outside
// lo..hi, when the scale spans more than MaxCategories values, or when
// expected disagreement is zero.
func CohenKappa(a, b []int, w Weighting, lo, hi int) float64 {
	n := len(a)
	if n == 0 || n != len(b) || !validScale(lo, hi) {
		return math.NaN()
	}

	for i := range a {
		if !InScale(a[i], lo, hi) || !InScale(b[i], lo, hi) {
			return math.NaN()
		}
	}
	k := hi - lo + 1

	observed := mat.NewDense(k, k, nil)
	for i := range a {
		r, c := a[i]-lo, b[i]-lo
		observed.Set(r, c, observed.At(r, c)+1)
	}

	rows := mat.NewVecDense(k, nil)
	cols := mat.NewVecDense(k, nil)
	for i := 0; i < k; i++ {
		rows.SetVec(i, mat.Sum(observed.RowView(i)))
		cols.SetVec(i, mat.Sum(observed.ColView(i)))
	}

	expected := mat.NewDense(k, k, nil)
	expected.Outer(1/float64(n), rows, cols)

	weights := disagreementWeights(k, w)

	var wo, we mat.Dense
	wo.MulElem(weights, observed)
	we.MulElem(weights, expected)

	denominator := mat.Sum(&we)
	if denominator == 0 {
		return math.NaN()
	}
	return 1 - mat.Sum(&wo)/denominator
}

// MaxCategories bounds the size of a rating scale.
const MaxCategories = 1024

// InScale reports whether score lies in lo..hi.
func InScale(score, lo, hi int) bool {
	return score >= lo && score <= hi
}

func validScale(lo, hi int) bool {
	return lo <= hi && uint64(hi-lo) < MaxCategories
}

func disagreementWeights(k int, w Weighting) *mat.Dense {
	weights := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			d := float64(i - j)
			switch w {
			case Quadratic:
				weights.Set(i, j, d*d)
			default:
				if i != j {
					weights.Set(i, j, 1)
				}
			}
		}
	}
	return weights
}

// Interpret bands a weighted kappa. Bounds are exclusive and checked from
// the top down.
func Interpret(kappa float64) Interpretation {
	switch {
	case math.IsNaN(kappa):
		return Undefined
	case kappa > 0.8:
		return AlmostPerfect
	case kappa > 0.6:
		return Substantial
	case kappa > 0.4:
		return Moderate
	case kappa > 0.2:
		return Fair
	default:
		return SlightOrPoor
	}
}

// Recommend flags the judge for manual review when kappa falls below
// threshold.
func Recommend(kappa, threshold float64) Recommendation {
	switch {
	case math.IsNaN(kappa):
		return Undetermined
	case kappa < threshold:
		return ManualReview
	default:
		return Trustworthy
	}
}
