package markov

import (
	"math"
	"math/rand/v2"
	"strconv"
)

// Seed selects how a random stream is initialised. The zero value draws a
// fresh seed from process entropy; FixedSeed pins it for reproducible runs.
type Seed struct {
	value uint64
	fixed bool
}

// FixedSeed returns a Seed that always initialises a stream identically.
func FixedSeed(v uint64) Seed {
	return Seed{value: v, fixed: true}
}

// EntropySeed returns a Seed that draws a new value every time it is applied.
func EntropySeed() Seed {
	return Seed{}
}

// SeedFromPointer converts an optional seed, as found in decoded config files,
// into a Seed. A nil pointer yields EntropySeed.
func SeedFromPointer(v *uint64) Seed {
	if v == nil {
		return EntropySeed()
	}
	return FixedSeed(*v)
}

// Fixed reports whether the seed is pinned.
func (s Seed) Fixed() bool { return s.fixed }

// Value returns the pinned value, or 0 for an entropy seed.
func (s Seed) Value() uint64 { return s.value }

func (s Seed) String() string {
	if !s.fixed {
		return "entropy"
	}
	return strconv.FormatUint(s.value, 10)
}

// Stream words keep the two streams of a RandomSource apart even when both
// are given the same seed value.
const (
	constructionStreamWord uint64 = 0x636f6e737472756b // "construk"
	processStreamWord      uint64 = 0x70726f6365737321 // "process!"
)

// Stream is one independently seedable source of uniform draws.
// It is not safe for concurrent use.
type Stream struct {
	word   uint64
	seed   Seed
	actual uint64
	rng    *rand.Rand
}

func newStream(word uint64, seed Seed) *Stream {
	s := &Stream{word: word}
	s.Reseed(seed)
	return s
}

// Reseed reinitialises the stream. Entropy seeds are resolved to a concrete
// value, which Actual reports afterwards.
func (s *Stream) Reseed(seed Seed) {
	s.seed = seed
	s.actual = seed.value
	if !seed.fixed {
		s.actual = rand.Uint64()
	}
	s.rng = rand.New(rand.NewPCG(s.actual, s.word))
}

// Seed returns the seed the stream was last reseeded with.
func (s *Stream) Seed() Seed { return s.seed }

// Actual returns the concrete value the stream is currently running from.
// Passing FixedSeed(Actual()) to Reseed replays the stream from its last reseed.
func (s *Stream) Actual() uint64 { return s.actual }

// Float64 returns a uniform draw in [0, 1).
func (s *Stream) Float64() float64 { return s.rng.Float64() }

// ExpFloat64 returns an exponentially distributed draw with rate 1.
func (s *Stream) ExpFloat64() float64 { return s.rng.ExpFloat64() }

// IntN returns a uniform draw in [0, n). It panics if n <= 0.
func (s *Stream) IntN(n int) int { return s.rng.IntN(n) }

// SampleCategorical draws index i with probability dist[i]/sum(dist) by
// inverting the cumulative sum against one uniform draw. The last bucket
// with positive weight absorbs floating point residue, so the returned
// index is always in range and never lands on a zero-weight bucket.
func (s *Stream) SampleCategorical(dist []float64) (int, error) {
	if len(dist) == 0 {
		return 0, &SamplingError{Message: "distribution is empty"}
	}
	var total float64
	last := -1
	for i, p := range dist {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, &SamplingError{Message: "weight " + strconv.Itoa(i) + " is negative or not finite"}
		}
		if p > 0 {
			last = i
		}
		total += p
	}
	if total <= 0 {
		return 0, &SamplingError{Message: "distribution sums to zero"}
	}

	u := s.rng.Float64() * total
	var cumulative float64
	for i := 0; i < last; i++ {
		cumulative += dist[i]
		if u < cumulative {
			return i, nil
		}
	}
	return last, nil
}

// RandomSource holds the two streams a chain draws from: the construction
// stream (random matrices, initial picks at build time) and the process
// stream (transitions during a run, initial redraws on full reset).
// Reseeding one never disturbs the other.
type RandomSource struct {
	construction *Stream
	process      *Stream
}

// NewRandomSource creates a source with both streams seeded.
func NewRandomSource(construction, process Seed) *RandomSource {
	return &RandomSource{
		construction: newStream(constructionStreamWord, construction),
		process:      newStream(processStreamWord, process),
	}
}

// SeedConstruction reinitialises the construction stream only.
func (r *RandomSource) SeedConstruction(seed Seed) { r.construction.Reseed(seed) }

// SeedProcess reinitialises the process stream only.
func (r *RandomSource) SeedProcess(seed Seed) { r.process.Reseed(seed) }

// Construction returns the construction stream.
func (r *RandomSource) Construction() *Stream { return r.construction }

// Process returns the process stream.
func (r *RandomSource) Process() *Stream { return r.process }
