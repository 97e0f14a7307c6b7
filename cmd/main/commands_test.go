package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CTAG07/MarkovTool/pkg/markov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI against a config file and database in dir.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args,
		"--config", filepath.Join(dir, "config.json"),
		"--db", filepath.Join(dir, "markov.db"),
		"--log-level", "error",
		"--color", "never",
	))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunCommandTwoCycle(t *testing.T) {
	dir := t.TempDir()
	matrix := writeFile(t, dir, "cycle.txt", "0 1\n1 0\n")

	out, err := execute(t, dir, "run", "--matrix", matrix, "--initial", "0", "--steps", "5", "--record", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "path:  0 -> 1 -> 0 -> 1 -> 0 -> 1")
	assert.Contains(t, out, "end:   1")
	assert.Contains(t, out, "seed:  7")
}

func TestRunCommandReproducibleJSON(t *testing.T) {
	dir := t.TempDir()
	args := []string{"run", "--size", "5", "--construction-seed", "3", "--seed", "9", "--steps", "40", "--record", "--json"}

	decode := func(out string) markov.Report {
		var report markov.Report
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		return report
	}

	first, err := execute(t, dir, args...)
	require.NoError(t, err)
	second, err := execute(t, dir, args...)
	require.NoError(t, err)

	a, b := decode(first), decode(second)
	assert.Equal(t, a.Path, b.Path)
	assert.Len(t, a.Path, 41)
	assert.Equal(t, uint64(9), a.ProcessSeed)
}

func TestRunCommandRepeatPreserve(t *testing.T) {
	dir := t.TempDir()
	matrix := writeFile(t, dir, "cycle.json", `[[0, 1], [1, 0]]`)

	out, err := execute(t, dir, "run", "--matrix", matrix, "--initial", "0", "--steps", "1",
		"--repeat", "3", "--reset", "preserve", "--json")
	require.NoError(t, err)

	var reports []markov.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 3)
	// Each preserving restart continues from where the last run ended.
	assert.Equal(t, []int{0, 1, 0}, []int{reports[0].Start, reports[1].Start, reports[2].Start})
	assert.Equal(t, 1, reports[2].End)
}

func TestRunCommandErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.txt", "0.5 0.4\n0.5 0.5\n")

	_, err := execute(t, dir, "run", "--matrix", bad, "--steps", "1")
	assert.ErrorIs(t, err, markov.ErrValidation)

	_, err = execute(t, dir, "run", "--size", "2", "--initial", "5")
	assert.ErrorIs(t, err, markov.ErrValidation)

	_, err = execute(t, dir, "run", "--size", "2", "--repeat", "0")
	assert.Error(t, err)

	_, err = execute(t, dir, "run", "--store", "missing")
	assert.ErrorContains(t, err, "no stored matrix named 'missing'")
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "generate", "4", "--seed", "11")
	require.NoError(t, err)
	rows, err := markov.ParseMatrix(strings.NewReader(out))
	require.NoError(t, err)
	m, err := markov.NewTransitionMatrix(rows)
	require.NoError(t, err, "generated matrix must validate")
	assert.Equal(t, 4, m.Size())

	path := filepath.Join(dir, "random.yaml")
	_, err = execute(t, dir, "generate", "4", "--seed", "11", "--out", path)
	require.NoError(t, err)
	fromFile, err := markov.LoadMatrixFile(path)
	require.NoError(t, err)
	assert.True(t, m.Equal(fromFile), "same seed should give the same matrix in any format")

	_, err = execute(t, dir, "generate", "zero")
	assert.Error(t, err)
	_, err = execute(t, dir, "generate", "0")
	assert.ErrorIs(t, err, markov.ErrValidation)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.csv", "0.5,0.5\n0,1\n")
	bad := writeFile(t, dir, "bad.yaml", "- [0.5, 0.4]\n- [1, 0]\n")

	out, err := execute(t, dir, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (2 states)")

	out, err = execute(t, dir, "validate", good, bad)
	assert.ErrorContains(t, err, "1 of 2 matrices are invalid")
	assert.Contains(t, out, "bad.yaml: invalid")
}

func TestStoreCommands(t *testing.T) {
	dir := t.TempDir()
	matrix := writeFile(t, dir, "walk.txt", "0.5 0.5 0\n0 0.5 0.5\n0.5 0 0.5\n")

	out, err := execute(t, dir, "matrices", "add", "walk", matrix)
	require.NoError(t, err)
	assert.Contains(t, out, "saved 'walk'")

	_, err = execute(t, dir, "run", "--store", "walk", "--steps", "6", "--record", "--repeat", "2", "--seed", "1")
	require.NoError(t, err)

	out, err = execute(t, dir, "matrices")
	require.NoError(t, err)
	assert.Contains(t, out, "walk  id=1 states=3")

	out, err = execute(t, dir, "runs", "walk", "--json")
	require.NoError(t, err)
	var runs []markov.RunInfo
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	assert.Len(t, runs[0].Report.Path, 7)

	out, err = execute(t, dir, "runs", "show", runs[1].Id)
	require.NoError(t, err)
	assert.Contains(t, out, "steps: 6")

	out, err = execute(t, dir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "runs:     2")

	out, err = execute(t, dir, "matrices", "show", "walk", "--format", "json")
	require.NoError(t, err)
	shown, err := markov.DecodeMatrix(strings.NewReader(out), markov.FormatJSON)
	require.NoError(t, err)
	assert.Len(t, shown, 3)

	exportPath := filepath.Join(dir, "walk.export.json")
	_, err = execute(t, dir, "export", "walk", "--out", exportPath)
	require.NoError(t, err)

	out, err = execute(t, dir, "matrices", "rm", "walk")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 'walk'")
	_, err = execute(t, dir, "runs", "walk")
	assert.ErrorContains(t, err, "no stored matrix named 'walk'")

	out, err = execute(t, dir, "import", exportPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 'walk'")

	out, err = execute(t, dir, "runs", "walk", "--json")
	require.NoError(t, err)
	var imported []markov.RunInfo
	require.NoError(t, json.Unmarshal([]byte(out), &imported))
	require.Len(t, imported, 2)
	assert.Equal(t, runs[0].Id, imported[0].Id)
	assert.Equal(t, runs[0].Report, imported[0].Report)
}

func TestVersionCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "markovtool version dev")

	_, err = os.Stat(filepath.Join(dir, "config.json"))
	assert.True(t, os.IsNotExist(err), "version should not touch the config file")
}
