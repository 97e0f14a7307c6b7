package markov

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// MaxUnboundedSteps caps RunUntil when the stop condition never fires.
const MaxUnboundedSteps = 1 << 20

// Status is the lifecycle position of a Chain.
type Status int

const (
	// StatusUninitialized is the zero value: no matrix is attached.
	StatusUninitialized Status = iota
	// StatusReady means a matrix is attached and no step has been taken since
	// construction or the last reset.
	StatusReady
	// StatusRunning means at least one step has been taken.
	StatusRunning
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	default:
		return "uninitialized"
	}
}

// ResetMode selects what Reset discards.
type ResetMode int

const (
	// ResetFull re-resolves the initial state, reseeds the process stream
	// from the stored process seed and clears counters and history.
	ResetFull ResetMode = iota
	// ResetPreserve keeps the current state as the new starting point and the
	// process stream untouched, clearing only counters and history.
	ResetPreserve
)

func (m ResetMode) String() string {
	switch m {
	case ResetFull:
		return "full"
	case ResetPreserve:
		return "preserve"
	default:
		return fmt.Sprintf("ResetMode(%d)", int(m))
	}
}

// ParseResetMode accepts "full" or "preserve" (case-insensitive). An empty
// string means ResetFull.
func ParseResetMode(s string) (ResetMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return ResetFull, nil
	case "preserve":
		return ResetPreserve, nil
	default:
		return ResetFull, newValidationError("reset mode", -1, "unknown mode %q", s)
	}
}

// Config is the staged configuration of a chain. Changes made through the
// setters only take effect at the next Reset.
type Config struct {
	InitialState     InitialState
	ConstructionSeed Seed
	ProcessSeed      Seed
	ResetMode        ResetMode
	Record           bool
}

// chainOptions collects everything an Option may set.
type chainOptions struct {
	config          Config
	constructionSet bool
	processSet      bool
	source          *RandomSource
	logger          *slog.Logger
	collector       *Collector
	backend         string
	id              string
}

// Option configures a Chain at construction time.
type Option func(*chainOptions)

// WithInitialState sets how the first state is chosen. Default: uniform.
func WithInitialState(s InitialState) Option {
	return func(o *chainOptions) { o.config.InitialState = s }
}

// WithConstructionSeed seeds the stream used for random matrices and the
// initial pick at construction.
func WithConstructionSeed(seed Seed) Option {
	return func(o *chainOptions) {
		o.config.ConstructionSeed = seed
		o.constructionSet = true
	}
}

// WithProcessSeed seeds the stream used for transitions. Full resets reseed
// the process stream from this value.
func WithProcessSeed(seed Seed) Option {
	return func(o *chainOptions) {
		o.config.ProcessSeed = seed
		o.processSet = true
	}
}

// WithResetMode sets the mode used by Restart. Default: ResetFull.
func WithResetMode(mode ResetMode) Option {
	return func(o *chainOptions) { o.config.ResetMode = mode }
}

// WithRecording makes every Advance append to the history, not only
// recorded runs.
func WithRecording(record bool) Option {
	return func(o *chainOptions) { o.config.Record = record }
}

// WithRandomSource hands the chain an existing source instead of creating
// one. Seeds given through WithConstructionSeed or WithProcessSeed are
// applied to it.
func WithRandomSource(src *RandomSource) Option {
	return func(o *chainOptions) { o.source = src }
}

// WithLogger sets the logger. By default, all logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *chainOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCollector binds the chain to col, emitting every visited state under
// the given backend group.
func WithCollector(col *Collector, backend string) Option {
	return func(o *chainOptions) {
		o.collector = col
		o.backend = backend
	}
}

// WithID overrides the generated chain ID.
func WithID(id string) Option {
	return func(o *chainOptions) { o.id = id }
}

func buildOptions(opts []Option) *chainOptions {
	o := &chainOptions{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// randomSource returns the configured source, creating or reseeding it as
// requested by the options.
func (o *chainOptions) randomSource() *RandomSource {
	if o.source == nil {
		return NewRandomSource(o.config.ConstructionSeed, o.config.ProcessSeed)
	}
	if o.constructionSet {
		o.source.SeedConstruction(o.config.ConstructionSeed)
	}
	if o.processSet {
		o.source.SeedProcess(o.config.ProcessSeed)
	} else {
		o.config.ProcessSeed = o.source.Process().Seed()
	}
	return o.source
}

// Sequence is a lazy, infinite and restartable sequence of state indices.
type Sequence interface {
	// Advance moves to the next state and returns it.
	Advance() (int, error)
	// Reset restarts the sequence.
	Reset(mode ResetMode) error
	// Current returns the state the sequence is at.
	Current() int
	// Steps returns the number of transitions since the last reset.
	Steps() int
}

// Take advances seq n times and returns the visited states.
func Take(seq Sequence, n int) ([]int, error) {
	if n < 0 {
		return nil, newValidationError("step count", -1, "must not be negative, got %d", n)
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		s, err := seq.Advance()
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Chain is a discrete-time Markov chain over states 0..N-1. It owns its
// transition matrix, a cursor, a step counter, an optional history and the
// random streams it samples from.
//
// The zero value is an uninitialized chain; use New, NewFromReader,
// NewFromFile or NewRandom. A Chain is not safe for concurrent use.
type Chain struct {
	id         string
	status     Status
	matrix     TransitionMatrix
	staged     TransitionMatrix
	config     Config
	rng        *RandomSource
	current    int
	steps      int
	history    []int
	historyEnd int // step count the history was last extended at
	recording  bool
	collector  *Collector
	backend    string
	logger     *slog.Logger
}

var _ Sequence = (*Chain)(nil)

// New creates a chain from literal matrix data.
func New(matrix [][]float64, opts ...Option) (*Chain, error) {
	m, err := NewTransitionMatrix(matrix)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return newChain(m, o, o.randomSource())
}

// NewFromReader parses a delimited text matrix from r (see ParseMatrix) and
// creates a chain from it.
func NewFromReader(r io.Reader, opts ...Option) (*Chain, error) {
	rows, err := ParseMatrix(r)
	if err != nil {
		return nil, err
	}
	return New(rows, opts...)
}

// NewFromFile loads a matrix file (see LoadMatrixFile) and creates a chain
// from it.
func NewFromFile(path string, opts ...Option) (*Chain, error) {
	rows, err := LoadMatrixFile(path)
	if err != nil {
		return nil, err
	}
	return New(rows, opts...)
}

// NewRandom creates a chain over a randomly generated n×n matrix drawn from
// the construction stream, so a fixed construction seed reproduces both the
// matrix and the initial pick.
func NewRandom(n int, opts ...Option) (*Chain, error) {
	o := buildOptions(opts)
	src := o.randomSource()
	m, err := RandomMatrix(n, src.Construction())
	if err != nil {
		return nil, err
	}
	return newChain(m, o, src)
}

func newChain(m TransitionMatrix, o *chainOptions, src *RandomSource) (*Chain, error) {
	start, err := o.config.InitialState.resolve(m.Size(), src.Construction())
	if err != nil {
		return nil, err
	}

	id := o.id
	if id == "" {
		id = uuid.NewString()
	}

	c := &Chain{
		id:        id,
		status:    StatusReady,
		matrix:    m,
		config:    o.config,
		rng:       src,
		current:   start,
		recording: o.config.Record,
		backend:   o.backend,
		logger:    o.logger,
	}

	c.logger.Debug("Chain constructed",
		slog.String("chain_id", c.id),
		slog.Int("states", m.Size()),
		slog.Int("initial_state", start),
		slog.String("initial_spec", o.config.InitialState.String()),
		slog.String("process_seed", o.config.ProcessSeed.String()),
	)

	if o.collector != nil {
		c.BindCollector(o.collector)
	}
	return c, nil
}

// ID returns the chain's identifier, used as its collector instance key.
func (c *Chain) ID() string { return c.id }

// Status returns the lifecycle position of the chain.
func (c *Chain) Status() Status { return c.status }

// Current returns the current state.
func (c *Chain) Current() int { return c.current }

// Steps returns the number of transitions since construction or the last reset.
func (c *Chain) Steps() int { return c.steps }

// History returns a copy of the recorded states since the last reset. It is
// empty unless recording was requested. If recording paused for some steps,
// the history holds only the stretch recorded since it resumed.
func (c *Chain) History() []int {
	return append([]int(nil), c.history...)
}

// Matrix returns a copy of the attached transition matrix.
func (c *Chain) Matrix() TransitionMatrix { return c.matrix.Clone() }

// Config returns the staged configuration.
func (c *Chain) Config() Config { return c.config }

// ProcessSeed returns the concrete seed value the process stream is running from.
func (c *Chain) ProcessSeed() uint64 {
	if c.rng == nil {
		return 0
	}
	return c.rng.Process().Actual()
}

// SetLogger sets the logger for the chain.
func (c *Chain) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetInitialState stages a new initial state specification. It is validated
// and applied at the next Reset.
func (c *Chain) SetInitialState(s InitialState) { c.config.InitialState = s }

// SetProcessSeed stages a new process seed, applied at the next full Reset.
func (c *Chain) SetProcessSeed(seed Seed) { c.config.ProcessSeed = seed }

// SetResetMode stages the mode Restart will use.
func (c *Chain) SetResetMode(mode ResetMode) { c.config.ResetMode = mode }

// SetRecording switches history recording for subsequent steps.
func (c *Chain) SetRecording(record bool) {
	c.config.Record = record
	c.recording = record
}

// SetMatrix validates rows and stages them as the next transition matrix.
// The running matrix stays in place until the next Reset; combined with
// ResetPreserve this grafts a new process onto the tail of the current one.
func (c *Chain) SetMatrix(rows [][]float64) error {
	m, err := NewTransitionMatrix(rows)
	if err != nil {
		return err
	}
	c.staged = m
	return nil
}

// Advance samples the next state from the current state's row using the
// process stream and returns it.
func (c *Chain) Advance() (int, error) {
	if c == nil || c.status == StatusUninitialized {
		return 0, &InvalidStateError{Op: "advance", Status: StatusUninitialized}
	}
	prev := c.current
	next, err := c.rng.Process().SampleCategorical(c.matrix[prev])
	if err != nil {
		return prev, fmt.Errorf("sampling row %d: %w", prev, err)
	}
	c.current, c.steps = next, c.steps+1
	if c.recording {
		c.extendHistory(prev)
	}
	c.status = StatusRunning
	c.emit()
	return next, nil
}

// extendHistory appends the state just reached. When steps were taken
// without recording since the history was last extended, the history
// restarts at prev so every adjacent pair is a transition the chain made.
func (c *Chain) extendHistory(prev int) {
	if len(c.history) == 0 || c.historyEnd != c.steps-1 {
		c.history = append(c.history[:0], prev)
	}
	c.history = append(c.history, c.current)
	c.historyEnd = c.steps
}

// Run advances the chain steps times. When record is true the report holds
// the full path (start state plus every visited state) and the states are
// appended to the chain's history.
func (c *Chain) Run(steps int, record bool) (Report, error) {
	if c == nil || c.status == StatusUninitialized {
		return Report{}, &InvalidStateError{Op: "run", Status: StatusUninitialized}
	}
	if steps < 0 {
		return Report{}, newValidationError("step count", -1, "must not be negative, got %d", steps)
	}
	return c.run(record, func(i, _ int) bool { return i >= steps })
}

// RunUntil advances the chain until stop returns true for a (step, state)
// pair, or MaxUnboundedSteps transitions have been taken. Report.Stopped
// tells the two apart.
func (c *Chain) RunUntil(stop func(step, state int) bool, record bool) (Report, error) {
	if c == nil || c.status == StatusUninitialized {
		return Report{}, &InvalidStateError{Op: "run", Status: StatusUninitialized}
	}
	if stop == nil {
		return Report{}, newValidationError("stop condition", -1, "must not be nil")
	}
	var stopped bool
	report, err := c.run(record, func(i, state int) bool {
		if i > 0 && stop(c.steps, state) {
			stopped = true
			return true
		}
		return i >= MaxUnboundedSteps
	})
	report.Stopped = stopped
	return report, err
}

// run advances until done reports true. done is called before each step
// with the number of steps taken so far in this run and the current state.
func (c *Chain) run(record bool, done func(i, state int) bool) (Report, error) {
	previous := c.recording
	c.recording = previous || record
	defer func() { c.recording = previous }()

	start := c.current
	var path []int
	if record {
		path = append(path, start)
	}

	i := 0
	for !done(i, c.current) {
		state, err := c.Advance()
		if err != nil {
			return Report{}, err
		}
		if record {
			path = append(path, state)
		}
		i++
	}

	report := Report{
		ChainID:     c.id,
		Start:       start,
		End:         c.current,
		Steps:       i,
		StepCount:   c.steps,
		Path:        path,
		Recorded:    record,
		ProcessSeed: c.rng.Process().Actual(),
	}

	c.logger.Debug("Run finished",
		slog.String("chain_id", c.id),
		slog.Int("start_state", start),
		slog.Int("end_state", c.current),
		slog.Int("steps", i),
		slog.Bool("recorded", record),
	)
	return report, nil
}

// Reset restarts the chain, committing any staged matrix and configuration.
//
// ResetFull reseeds the process stream from the staged process seed, then
// resolves the initial state (a fixed state is kept, a probabilistic one is
// redrawn from the process stream). ResetPreserve keeps the current state as
// the new start and leaves the process stream alone. Both clear the step
// count and history. Validation happens before anything changes.
func (c *Chain) Reset(mode ResetMode) error {
	if c == nil || c.status == StatusUninitialized {
		return &InvalidStateError{Op: "reset", Status: StatusUninitialized}
	}

	matrix := c.matrix
	if c.staged != nil {
		matrix = c.staged
	}
	n := matrix.Size()
	if err := c.config.InitialState.Validate(n); err != nil {
		return err
	}

	switch mode {
	case ResetFull:
		c.rng.SeedProcess(c.config.ProcessSeed)
		start, err := c.config.InitialState.resolve(n, c.rng.Process())
		if err != nil {
			return err
		}
		c.current = start
	case ResetPreserve:
		if c.current >= n {
			return newValidationError("transition matrix", -1,
				"current state %d does not exist in a %d-state matrix", c.current, n)
		}
	default:
		return newValidationError("reset mode", -1, "unknown mode %d", int(mode))
	}

	c.matrix = matrix
	c.staged = nil
	c.steps = 0
	c.history = nil
	c.historyEnd = 0
	c.recording = c.config.Record
	c.status = StatusReady

	c.logger.Debug("Chain reset",
		slog.String("chain_id", c.id),
		slog.String("mode", mode.String()),
		slog.Int("start_state", c.current),
		slog.Int("states", n),
	)

	c.emit()
	return nil
}

// Restart resets the chain using the staged reset mode.
func (c *Chain) Restart() error {
	return c.Reset(c.config.ResetMode)
}

// All yields (step, state) pairs from the current position onwards. A ready
// chain yields its start state first; a running chain continues with the
// next state, so breaking out of a loop and ranging again resumes the same
// process. The sequence is infinite: callers bound it. An uninitialized
// chain yields nothing.
func (c *Chain) All() iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		if c == nil || c.status == StatusUninitialized {
			return
		}
		if c.status == StatusReady {
			if !yield(c.steps, c.current) {
				return
			}
		}
		for {
			state, err := c.Advance()
			if err != nil {
				c.logger.Error("Sequence stopped", slog.String("chain_id", c.id), slog.Any("error", err))
				return
			}
			if !yield(c.steps, state) {
				return
			}
		}
	}
}

// BindCollector makes the chain emit to col, starting with the current state.
func (c *Chain) BindCollector(col *Collector) {
	c.collector = col
	c.emit()
}

func (c *Chain) emit() {
	if c.collector == nil || c.status == StatusUninitialized {
		return
	}
	c.collector.Put(c.id, c.steps, c.current, c.backend)
}
