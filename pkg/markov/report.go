package markov

import (
	"strconv"
	"strings"
)

// Report summarises one Run. With a fixed process seed every field is
// reproducible.
type Report struct {
	ChainID     string `json:"chain_id"`
	Start       int    `json:"start_state"`
	End         int    `json:"end_state"`
	Steps       int    `json:"steps"`      // transitions taken by this run
	StepCount   int    `json:"step_count"` // transitions since the last reset
	Path        []int  `json:"path,omitempty"`
	Recorded    bool   `json:"recorded"`
	Stopped     bool   `json:"stopped,omitempty"` // RunUntil only: the stop condition fired
	ProcessSeed uint64 `json:"process_seed"`
}

// PathString joins the recorded path with arrows, or returns "" when the
// run was not recorded.
func (r Report) PathString() string {
	if !r.Recorded {
		return ""
	}
	var b strings.Builder
	for i, s := range r.Path {
		if i > 0 {
			b.WriteString(" -> ")
		}
		b.WriteString(strconv.Itoa(s))
	}
	return b.String()
}

// String renders the report for humans.
func (r Report) String() string {
	var b strings.Builder
	b.WriteString("start: ")
	b.WriteString(strconv.Itoa(r.Start))
	b.WriteByte('\n')
	if r.Recorded {
		b.WriteString("path:  ")
		b.WriteString(r.PathString())
		b.WriteByte('\n')
	}
	b.WriteString("end:   ")
	b.WriteString(strconv.Itoa(r.End))
	b.WriteByte('\n')
	b.WriteString("steps: ")
	b.WriteString(strconv.Itoa(r.Steps))
	b.WriteByte('\n')
	b.WriteString("seed:  ")
	b.WriteString(strconv.FormatUint(r.ProcessSeed, 10))
	b.WriteByte('\n')
	return b.String()
}
