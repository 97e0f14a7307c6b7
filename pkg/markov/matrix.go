package markov

import (
	"math"
)

// Tolerance is the maximum distance from 1 a row sum (or an initial
// distribution) may have and still count as a probability distribution.
const Tolerance = 1e-9

// TransitionMatrix is a square, row-stochastic matrix: entry [i][j] is the
// probability of moving from state i to state j.
type TransitionMatrix [][]float64

// NewTransitionMatrix validates rows and returns a private copy of them.
func NewTransitionMatrix(rows [][]float64) (TransitionMatrix, error) {
	m := TransitionMatrix(rows)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// Size returns N, the number of states.
func (m TransitionMatrix) Size() int { return len(m) }

// Row returns the outgoing distribution of state i. The slice is shared.
func (m TransitionMatrix) Row(i int) []float64 { return m[i] }

// Clone returns a deep copy of the matrix.
func (m TransitionMatrix) Clone() TransitionMatrix {
	if m == nil {
		return nil
	}
	out := make(TransitionMatrix, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Equal reports whether both matrices hold bit-identical entries.
func (m TransitionMatrix) Equal(other TransitionMatrix) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if len(m[i]) != len(other[i]) {
			return false
		}
		for j := range m[i] {
			if math.Float64bits(m[i][j]) != math.Float64bits(other[i][j]) {
				return false
			}
		}
	}
	return true
}

// Validate checks that the matrix is non-empty and square, and that every
// row is a probability distribution within Tolerance.
func (m TransitionMatrix) Validate() error {
	n := len(m)
	if n == 0 {
		return newValidationError("transition matrix", -1, "matrix has no rows")
	}
	for i, row := range m {
		if len(row) != n {
			return newValidationError("transition matrix", i, "has %d columns, want %d", len(row), n)
		}
		if err := validateDistribution("transition matrix", i, row); err != nil {
			return err
		}
	}
	return nil
}

// validateDistribution checks non-negative finite entries summing to 1.
func validateDistribution(field string, row int, dist []float64) error {
	var sum float64
	for j, p := range dist {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return newValidationError(field, row, "entry %d is not a finite number", j)
		}
		if p < 0 {
			return newValidationError(field, row, "entry %d is negative (%g)", j, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > Tolerance {
		return newValidationError(field, row, "sums to %g, want 1", sum)
	}
	return nil
}

// RandomMatrix synthesises an n×n row-stochastic matrix. Each row is n
// exponential draws from s normalised by their sum, i.e. a uniform draw
// from the probability simplex. The same stream state always produces a
// bit-identical matrix.
func RandomMatrix(n int, s *Stream) (TransitionMatrix, error) {
	if n <= 0 {
		return nil, newValidationError("matrix size", -1, "must be positive, got %d", n)
	}
	m := make(TransitionMatrix, n)
	for i := range m {
		row := make([]float64, n)
		var sum float64
		for sum == 0 {
			sum = 0
			for j := range row {
				row[j] = s.ExpFloat64()
				sum += row[j]
			}
		}
		for j := range row {
			row[j] /= sum
		}
		m[i] = row
	}
	return m, nil
}
