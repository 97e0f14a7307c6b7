package markov

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseMatrixDelimited(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  [][]float64
	}{
		{name: "spaces", input: "0 1\n1 0\n", want: [][]float64{{0, 1}, {1, 0}}},
		{name: "commas", input: "0.25, 0.75\n1,0\n", want: [][]float64{{0.25, 0.75}, {1, 0}}},
		{name: "semicolons and tabs", input: "0.5;\t0.5\n0.1 ; 0.9", want: [][]float64{{0.5, 0.5}, {0.1, 0.9}}},
		{name: "comments and blanks", input: "# header\n\n  0 1\n# mid\n1 0\n\n", want: [][]float64{{0, 1}, {1, 0}}},
		{name: "exponent", input: "1e0 0\n2.5e-1 7.5e-1\n", want: [][]float64{{1, 0}, {0.25, 0.75}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseMatrix(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("ParseMatrix() error = %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ParseMatrix() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseMatrixLongRow(t *testing.T) {
	const states = 20000
	row := strings.TrimSuffix(strings.Repeat("0.00005 ", states), " ")
	if len(row) <= 64*1024 {
		t.Fatalf("row of %d bytes does not exceed the default scanner buffer", len(row))
	}

	rows, err := ParseMatrix(strings.NewReader(row + "\n"))
	if err != nil {
		t.Fatalf("ParseMatrix() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("parsed %d rows, want 1", len(rows))
	}
	if len(rows[0]) != states {
		t.Errorf("row has %d entries, want %d", len(rows[0]), states)
	}
}

func TestParseMatrixErrors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "only comments", input: "# nothing\n# here\n"},
		{name: "word", input: "0 1\n1 zero\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseMatrix(strings.NewReader(tc.input))
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestMatrixParserOptions(t *testing.T) {
	p := NewMatrixParser(WithDelimiterRegex(`\|`), WithCommentPrefix("//"))
	got, err := p.Parse(strings.NewReader("// pipes\n0.5|0.5\n1|0\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !reflect.DeepEqual(got, [][]float64{{0.5, 0.5}, {1, 0}}) {
		t.Errorf("Parse() = %v", got)
	}
}

func TestDecodeMatrixStructured(t *testing.T) {
	want := [][]float64{{0.5, 0.5}, {0, 1}}
	testCases := []struct {
		name   string
		format Format
		input  string
	}{
		{name: "json array", format: FormatJSON, input: `[[0.5, 0.5], [0, 1]]`},
		{name: "json object", format: FormatJSON, input: ` {"matrix": [[0.5, 0.5], [0, 1]]}`},
		{name: "yaml sequence", format: FormatYAML, input: "- [0.5, 0.5]\n- [0, 1]\n"},
		{name: "yaml mapping", format: FormatYAML, input: "matrix:\n  - [0.5, 0.5]\n  - - 0\n    - 1\n"},
		{name: "delimited", format: FormatDelimited, input: "0.5 0.5\n0 1\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeMatrix(strings.NewReader(tc.input), tc.format)
			if err != nil {
				t.Fatalf("DecodeMatrix() error = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("DecodeMatrix() = %v, want %v", got, want)
			}
		})
	}
}

func TestDecodeMatrixInvalid(t *testing.T) {
	for _, tc := range []struct {
		format Format
		input  string
	}{
		{FormatJSON, `[[0.5, "x"]]`},
		{FormatJSON, `{"matrix": }`},
		{FormatYAML, ""},
		{FormatYAML, "matrix: nope\n"},
	} {
		if _, err := DecodeMatrix(strings.NewReader(tc.input), tc.format); !errors.Is(err, ErrValidation) {
			t.Errorf("%s %q: expected validation error, got %v", tc.format, tc.input, err)
		}
	}
}

func TestWriteMatrixRoundTrip(t *testing.T) {
	m, err := RandomMatrix(4, NewRandomSource(FixedSeed(17), EntropySeed()).Construction())
	if err != nil {
		t.Fatalf("RandomMatrix() error = %v", err)
	}

	for _, format := range []Format{FormatDelimited, FormatJSON, FormatYAML} {
		t.Run(format.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteMatrix(&buf, m, format); err != nil {
				t.Fatalf("WriteMatrix() error = %v", err)
			}
			rows, err := DecodeMatrix(&buf, format)
			if err != nil {
				t.Fatalf("DecodeMatrix() error = %v", err)
			}
			if !m.Equal(rows) {
				t.Errorf("round trip changed the matrix:\n%v\n%v", m, rows)
			}
		})
	}
}

func TestLoadMatrixFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"cycle.txt":  "0 1\n1 0\n",
		"cycle.csv":  "0,1\n1,0\n",
		"cycle.json": `{"matrix": [[0, 1], [1, 0]]}`,
		"cycle.yml":  "- [0, 1]\n- [1, 0]\n",
		"cycle.yaml": "matrix: [[0, 1], [1, 0]]\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		got, err := LoadMatrixFile(path)
		if err != nil {
			t.Errorf("LoadMatrixFile(%s) error = %v", name, err)
			continue
		}
		if !reflect.DeepEqual(got, twoCycle) {
			t.Errorf("LoadMatrixFile(%s) = %v", name, got)
		}
	}

	if _, err := LoadMatrixFile(filepath.Join(dir, "missing.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}

	c, err := NewFromFile(filepath.Join(dir, "cycle.json"), WithInitialState(FixedState(1)))
	if err != nil {
		t.Fatalf("NewFromFile() error = %v", err)
	}
	if s, _ := c.Advance(); s != 0 {
		t.Errorf("Advance() = %d, want 0", s)
	}
}

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{"json": FormatJSON, ".YML": FormatYAML, "csv": FormatDelimited, "": FormatDelimited} {
		got, err := ParseFormat(name)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) succeeded")
	}
	if FormatFromPath("data/matrix.xml") != FormatDelimited {
		t.Error("unknown extension should fall back to delimited")
	}
}
