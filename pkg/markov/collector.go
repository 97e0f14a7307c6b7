package markov

import (
	"iter"
	"slices"
	"sync"
)

// chunk is one stretch of a tape. A raw chunk owns its data; a reference
// chunk points into another instance's raw chunk instead of copying it.
type chunk struct {
	start  int
	data   []int  // raw chunks only
	ref    *chunk // reference chunks only
	length int    // reference chunks only
}

func (c *chunk) isRef() bool { return c.ref != nil }

func (c *chunk) end() int {
	if c.isRef() {
		return c.start + c.length
	}
	return c.start + len(c.data)
}

func (c *chunk) at(step int) int {
	if c.isRef() {
		return c.ref.data[step-c.ref.start]
	}
	return c.data[step-c.start]
}

// backendGroup holds the tapes of one backend. order keeps instances in
// the order they first emitted, so matching and listing are deterministic.
type backendGroup struct {
	tapes map[string][]*chunk
	order []string
}

// Collectable is anything that can emit its states into a Collector.
type Collectable interface {
	BindCollector(col *Collector)
}

// Collector gathers the states emitted by bound chains. Each chain gets a
// tape per backend group; a stretch of states that another instance already
// recorded at the same steps is stored as a reference to that instance's
// data rather than a copy. A Collector is safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	entries map[string]*backendGroup
	open    bool
}

// NewCollector creates an open collector and binds instances to it.
func NewCollector(instances ...Collectable) *Collector {
	col := &Collector{entries: make(map[string]*backendGroup)}
	col.Open(instances...)
	return col
}

// Open starts accepting entries and binds instances to the collector.
func (col *Collector) Open(instances ...Collectable) {
	col.mu.Lock()
	col.open = true
	col.mu.Unlock()
	for _, instance := range instances {
		instance.BindCollector(col)
	}
}

// Close stops accepting entries. Recorded tapes stay readable.
func (col *Collector) Close() {
	col.mu.Lock()
	defer col.mu.Unlock()
	col.open = false
}

// IsOpen reports whether entries are accepted.
func (col *Collector) IsOpen() bool {
	col.mu.Lock()
	defer col.mu.Unlock()
	return col.open
}

// Put records that instance was in state at step. It returns false when the
// collector is closed.
func (col *Collector) Put(instance string, step, state int, backend string) bool {
	col.mu.Lock()
	defer col.mu.Unlock()
	if !col.open {
		return false
	}

	group, ok := col.entries[backend]
	if !ok {
		group = &backendGroup{tapes: make(map[string][]*chunk)}
		col.entries[backend] = group
	}
	tape, seen := group.tapes[instance]
	if !seen {
		group.order = append(group.order, instance)
	}
	match := group.match(instance, step, state)

	if len(tape) == 0 {
		group.tapes[instance] = append(tape, newChunk(step, state, match))
		return true
	}

	last := tape[len(tape)-1]
	contiguous := last.end() == step
	switch {
	case match != nil && last.isRef() && last.ref == match && contiguous:
		last.length++
	case match == nil && !last.isRef() && contiguous:
		last.data = append(last.data, state)
	default:
		group.tapes[instance] = append(tape, newChunk(step, state, match))
	}
	return true
}

func newChunk(step, state int, match *chunk) *chunk {
	if match != nil {
		return &chunk{start: step, ref: match, length: 1}
	}
	return &chunk{start: step, data: []int{state}}
}

// match finds a raw chunk of another instance holding state at step,
// searching instances in the order they first emitted.
func (g *backendGroup) match(instance string, step, state int) *chunk {
	for _, other := range g.order {
		if other == instance {
			continue
		}
		for _, c := range g.tapes[other] {
			if c.isRef() || c.start > step || c.end() <= step {
				continue
			}
			if c.at(step) == state {
				return c
			}
		}
	}
	return nil
}

// Redirect appends src's tape to dst's as references. It returns false when
// src has no tape under backend.
func (col *Collector) Redirect(src, dst, backend string) bool {
	col.mu.Lock()
	defer col.mu.Unlock()
	group := col.entries[backend]
	if group == nil {
		return false
	}
	srcTape := group.tapes[src]
	if len(srcTape) == 0 {
		return false
	}
	dstTape, seen := group.tapes[dst]
	if !seen {
		group.order = append(group.order, dst)
	}
	for _, c := range srcTape {
		if c.isRef() {
			dstTape = append(dstTape, &chunk{start: c.start, ref: c.ref, length: c.length})
		} else {
			dstTape = append(dstTape, &chunk{start: c.start, ref: c, length: len(c.data)})
		}
	}
	group.tapes[dst] = dstTape
	return true
}

// Length returns the step just past the last recorded entry of instance,
// and false when nothing was recorded.
func (col *Collector) Length(instance, backend string) (int, bool) {
	col.mu.Lock()
	defer col.mu.Unlock()
	tape := col.tape(instance, backend)
	if len(tape) == 0 {
		return 0, false
	}
	return tape[len(tape)-1].end(), true
}

// Retrieve returns the state instance recorded at step. When the tape
// covers a step more than once (after a reset), the earliest entry wins.
func (col *Collector) Retrieve(instance string, step int, backend string) (int, bool) {
	col.mu.Lock()
	defer col.mu.Unlock()
	for _, c := range col.tape(instance, backend) {
		if c.start <= step && step < c.end() {
			return c.at(step), true
		}
	}
	return 0, false
}

// Playback yields every state recorded for instance, in emission order.
func (col *Collector) Playback(instance, backend string) iter.Seq[int] {
	col.mu.Lock()
	var states []int
	for _, c := range col.tape(instance, backend) {
		for step := c.start; step < c.end(); step++ {
			states = append(states, c.at(step))
		}
	}
	col.mu.Unlock()

	return func(yield func(int) bool) {
		for _, s := range states {
			if !yield(s) {
				return
			}
		}
	}
}

// tape returns the tape of instance under backend. Callers hold col.mu.
func (col *Collector) tape(instance, backend string) []*chunk {
	group := col.entries[backend]
	if group == nil {
		return nil
	}
	return group.tapes[instance]
}

// Instances lists the instances recorded under backend in the order they
// first emitted.
func (col *Collector) Instances(backend string) []string {
	col.mu.Lock()
	defer col.mu.Unlock()
	group := col.entries[backend]
	if group == nil {
		return []string{}
	}
	return slices.Clone(group.order)
}

// Stored returns how many states are physically stored under backend, as
// opposed to referenced.
func (col *Collector) Stored(backend string) int {
	col.mu.Lock()
	defer col.mu.Unlock()
	group := col.entries[backend]
	if group == nil {
		return 0
	}
	total := 0
	for _, tape := range group.tapes {
		for _, c := range tape {
			total += len(c.data)
		}
	}
	return total
}
