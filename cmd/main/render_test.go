package main

import (
	"bytes"
	"testing"

	"github.com/CTAG07/MarkovTool/pkg/markov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRendererPlainReport(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf, "never")
	require.NoError(t, err)

	r.Report(markov.Report{
		ChainID:     "chain-1",
		Start:       0,
		End:         1,
		Steps:       3,
		Path:        []int{0, 1, 0, 1},
		Recorded:    true,
		ProcessSeed: 42,
	})

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "never mode must not emit escape sequences")
	assert.Contains(t, out, "chain: chain-1")
	assert.Contains(t, out, "path:  0 -> 1 -> 0 -> 1")
	assert.Contains(t, out, "end:   1")
	assert.Contains(t, out, "steps: 3")
	assert.Contains(t, out, "seed:  42")
	assert.NotContains(t, out, "note:")
}

func TestRendererUnrecordedReport(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf, "never")
	require.NoError(t, err)

	r.Report(markov.Report{Start: 2, End: 0, Steps: 9, Stopped: true})
	assert.NotContains(t, buf.String(), "path:")
	assert.Contains(t, buf.String(), "note: stop condition reached")
}

func TestRendererColour(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf, "always")
	require.NoError(t, err)

	r.Report(markov.Report{Start: 0, End: 1, Steps: 1, Path: []int{0, 1}, Recorded: true})
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestRendererUnknownMode(t *testing.T) {
	_, err := NewRenderer(&bytes.Buffer{}, "rainbow")
	assert.Error(t, err)
}
