package markov

import (
	"fmt"
)

type initialKind int

const (
	initialUniform initialKind = iota
	initialFixed
	initialDistributed
)

// InitialState specifies how a chain picks its first state. The zero value
// draws the first state uniformly over all N states.
type InitialState struct {
	kind  initialKind
	state int
	dist  []float64
}

// FixedState starts every run in state k.
func FixedState(k int) InitialState {
	return InitialState{kind: initialFixed, state: k}
}

// DistributedState draws the first state from dist, which must have one
// entry per state and sum to 1.
func DistributedState(dist []float64) InitialState {
	return InitialState{kind: initialDistributed, dist: append([]float64(nil), dist...)}
}

// UniformState draws the first state uniformly. It equals the zero value.
func UniformState() InitialState {
	return InitialState{}
}

// IsFixed reports whether the initial state is deterministic.
func (s InitialState) IsFixed() bool { return s.kind == initialFixed }

// Fixed returns the fixed state and true, or 0 and false.
func (s InitialState) Fixed() (int, bool) {
	return s.state, s.kind == initialFixed
}

// Distribution returns a copy of the initial distribution, or nil when the
// state is fixed or uniform.
func (s InitialState) Distribution() []float64 {
	if s.kind != initialDistributed {
		return nil
	}
	return append([]float64(nil), s.dist...)
}

func (s InitialState) String() string {
	switch s.kind {
	case initialFixed:
		return fmt.Sprintf("fixed(%d)", s.state)
	case initialDistributed:
		return fmt.Sprintf("distributed(%v)", s.dist)
	default:
		return "uniform"
	}
}

// Validate checks the specification against a chain of n states.
func (s InitialState) Validate(n int) error {
	switch s.kind {
	case initialFixed:
		if s.state < 0 || s.state >= n {
			return newValidationError("initial state", -1, "state %d is outside [0, %d)", s.state, n)
		}
	case initialDistributed:
		if len(s.dist) != n {
			return newValidationError("initial state", -1, "distribution has %d entries, want %d", len(s.dist), n)
		}
		if err := validateDistribution("initial state", -1, s.dist); err != nil {
			return err
		}
	}
	return nil
}

// resolve picks a concrete first state for n states, drawing from stream
// when the specification is probabilistic.
func (s InitialState) resolve(n int, stream *Stream) (int, error) {
	if err := s.Validate(n); err != nil {
		return 0, err
	}
	switch s.kind {
	case initialFixed:
		return s.state, nil
	case initialDistributed:
		return stream.SampleCategorical(s.dist)
	default:
		return stream.IntN(n), nil
	}
}
