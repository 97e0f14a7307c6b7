package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/CTAG07/MarkovTool/pkg/markov"
	"github.com/muesli/termenv"
)

// statePalette colours states by index, cycling for larger chains.
var statePalette = []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6", "#fb7185", "#fbbf24", "#34d399"}

// Renderer prints reports and store listings, coloured when the output
// supports it.
type Renderer struct {
	w   io.Writer
	out *termenv.Output
}

// NewRenderer creates a renderer writing to w. mode is auto, always or never.
func NewRenderer(w io.Writer, mode string) (*Renderer, error) {
	var opts []termenv.OutputOption
	switch strings.ToLower(mode) {
	case "", "auto":
	case "always":
		opts = append(opts, termenv.WithProfile(termenv.ANSI256))
	case "never":
		opts = append(opts, termenv.WithProfile(termenv.Ascii))
	default:
		return nil, fmt.Errorf("unknown colour mode %q", mode)
	}
	return &Renderer{w: w, out: termenv.NewOutput(w, opts...)}, nil
}

func (r *Renderer) label(s string) string {
	return r.out.String(s).Bold().String()
}

func (r *Renderer) faint(s string) string {
	return r.out.String(s).Faint().String()
}

func (r *Renderer) state(s int) string {
	return r.out.String(strconv.Itoa(s)).Foreground(r.out.Color(statePalette[s%len(statePalette)])).String()
}

// Report prints one run report.
func (r *Renderer) Report(report markov.Report) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", r.label("chain:"), r.faint(report.ChainID))
	fmt.Fprintf(&b, "%s %s\n", r.label("start:"), r.state(report.Start))
	if report.Recorded {
		states := make([]string, len(report.Path))
		for i, s := range report.Path {
			states[i] = r.state(s)
		}
		fmt.Fprintf(&b, "%s  %s\n", r.label("path:"), strings.Join(states, r.faint(" -> ")))
	}
	fmt.Fprintf(&b, "%s   %s\n", r.label("end:"), r.state(report.End))
	fmt.Fprintf(&b, "%s %d\n", r.label("steps:"), report.Steps)
	if report.Stopped {
		fmt.Fprintf(&b, "%s stop condition reached\n", r.label("note:"))
	}
	fmt.Fprintf(&b, "%s  %d\n", r.label("seed:"), report.ProcessSeed)
	_, _ = io.WriteString(r.w, b.String())
}

// JSON prints v as indented JSON.
func (r *Renderer) JSON(v any) error {
	encoder := json.NewEncoder(r.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Matrices prints a listing of stored matrices, sorted by name.
func (r *Renderer) Matrices(infos []markov.MatrixInfo) {
	if len(infos) == 0 {
		_, _ = fmt.Fprintln(r.w, r.faint("no matrices stored"))
		return
	}
	for _, info := range infos {
		_, _ = fmt.Fprintf(r.w, "%s  %s\n", r.label(info.Name), r.faint(fmt.Sprintf("id=%d states=%d", info.Id, info.Size)))
	}
}

// Runs prints a listing of stored runs.
func (r *Renderer) Runs(runs []markov.RunInfo) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(r.w, r.faint("no runs stored"))
		return
	}
	for _, run := range runs {
		_, _ = fmt.Fprintf(r.w, "%s  %s  %s -> %s  %s\n",
			r.label(run.Id),
			r.faint(run.CreatedAt.UTC().Format("2006-01-02 15:04:05")),
			r.state(run.Report.Start),
			r.state(run.Report.End),
			r.faint(fmt.Sprintf("steps=%d seed=%d", run.Report.Steps, run.Report.ProcessSeed)),
		)
	}
}

// Stats prints store statistics.
func (r *Renderer) Stats(stats *markov.DBStats) {
	_, _ = fmt.Fprintf(r.w, "%s %d\n", r.label("matrices:"), len(stats.Matrices))
	_, _ = fmt.Fprintf(r.w, "%s     %d\n", r.label("runs:"), stats.TotalRuns)
	for _, info := range stats.Matrices {
		s := stats.Stats[info.Id]
		_, _ = fmt.Fprintf(r.w, "  %s  %s\n", r.label(info.Name),
			r.faint(fmt.Sprintf("runs=%d steps=%d recorded=%d", s.Runs, s.TotalSteps, s.RecordedRuns)))
	}
}
