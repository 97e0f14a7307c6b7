package markov

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a textual encoding of a transition matrix.
type Format int

const (
	// FormatDelimited is one row per line, entries split by commas,
	// semicolons or whitespace.
	FormatDelimited Format = iota
	// FormatJSON is a JSON array of rows, or an object with a "matrix" key.
	FormatJSON
	// FormatYAML is a YAML sequence of rows, or a mapping with a "matrix" key.
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "delimited"
	}
}

// ParseFormat maps a format name (json, yaml, yml, csv, txt, delimited) to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "", "csv", "tsv", "txt", "delimited":
		return FormatDelimited, nil
	default:
		return FormatDelimited, fmt.Errorf("unknown matrix format %q", name)
	}
}

// FormatFromPath picks a Format from a file extension, defaulting to delimited.
func FormatFromPath(path string) Format {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return FormatDelimited
	}
	return f
}

// matrixDocument is the keyed form accepted by the JSON and YAML readers.
type matrixDocument struct {
	Matrix [][]float64 `json:"matrix" yaml:"matrix"`
}

// MatrixParser reads delimited text matrices. Its behavior can be customized
// with ParseOption functions.
type MatrixParser struct {
	delimiterRegex *regexp.Regexp
	commentPrefix  string
}

// ParseOption configures a MatrixParser.
type ParseOption func(*MatrixParser)

// WithDelimiterRegex sets the regex used to split a line into entries.
// Default: `[,;\s]+`
func WithDelimiterRegex(expr string) ParseOption {
	return func(p *MatrixParser) {
		p.delimiterRegex = regexp.MustCompile(expr)
	}
}

// WithCommentPrefix sets the prefix marking a line as a comment.
// Default: "#"
func WithCommentPrefix(prefix string) ParseOption {
	return func(p *MatrixParser) {
		p.commentPrefix = prefix
	}
}

// maxRowBytes bounds one line of delimited matrix text.
const maxRowBytes = 64 << 20

// NewMatrixParser creates a parser with default settings, which can be
// overridden by providing one or more ParseOption functions.
func NewMatrixParser(opts ...ParseOption) *MatrixParser {
	p := &MatrixParser{
		delimiterRegex: regexp.MustCompile(`[,;\s]+`),
		commentPrefix:  "#",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads one matrix row per non-blank, non-comment line. It only
// checks that every entry is a number; squareness and row sums are checked
// when the rows are attached to a chain.
func (p *MatrixParser) Parse(r io.Reader) ([][]float64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRowBytes)
	var rows [][]float64
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || (p.commentPrefix != "" && strings.HasPrefix(text, p.commentPrefix)) {
			continue
		}
		fields := p.delimiterRegex.Split(text, -1)
		row := make([]float64, 0, len(fields))
		for _, field := range fields {
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, newValidationError("matrix text", len(rows), "line %d: %q is not a number", line, field)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matrix text: %w", err)
	}
	if len(rows) == 0 {
		return nil, newValidationError("matrix text", -1, "no rows found")
	}
	return rows, nil
}

// ParseMatrix parses delimited text with the default parser.
func ParseMatrix(r io.Reader) ([][]float64, error) {
	return NewMatrixParser().Parse(r)
}

// DecodeMatrix reads a matrix from r in the given format.
func DecodeMatrix(r io.Reader, format Format) ([][]float64, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(r)
	case FormatYAML:
		return decodeYAML(r)
	default:
		return ParseMatrix(r)
	}
}

func decodeJSON(r io.Reader) ([][]float64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read json matrix: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var doc matrixDocument
		if err = json.Unmarshal(data, &doc); err != nil {
			return nil, newValidationError("matrix json", -1, "%v", err)
		}
		return doc.Matrix, nil
	}
	var rows [][]float64
	if err = json.Unmarshal(data, &rows); err != nil {
		return nil, newValidationError("matrix json", -1, "%v", err)
	}
	return rows, nil
}

func decodeYAML(r io.Reader) ([][]float64, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		if err == io.EOF {
			return nil, newValidationError("matrix yaml", -1, "document is empty")
		}
		return nil, newValidationError("matrix yaml", -1, "%v", err)
	}
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind == yaml.MappingNode {
		var doc matrixDocument
		if err := root.Decode(&doc); err != nil {
			return nil, newValidationError("matrix yaml", -1, "%v", err)
		}
		return doc.Matrix, nil
	}
	var rows [][]float64
	if err := root.Decode(&rows); err != nil {
		return nil, newValidationError("matrix yaml", -1, "%v", err)
	}
	return rows, nil
}

// LoadMatrixFile reads a matrix file, choosing the format from its extension
// (.json, .yaml/.yml, anything else is delimited text).
func LoadMatrixFile(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open matrix file: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return DecodeMatrix(f, FormatFromPath(path))
}

// WriteMatrix encodes m to w in the given format. Entries are written with
// the shortest representation that parses back to the same float64.
func WriteMatrix(w io.Writer, m TransitionMatrix, format Format) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode([][]float64(m))
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode([][]float64(m)); err != nil {
			return err
		}
		return encoder.Close()
	default:
		bw := bufio.NewWriter(w)
		for _, row := range m {
			for j, v := range row {
				if j > 0 {
					_, _ = bw.WriteString(", ")
				}
				_, _ = bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			}
			_ = bw.WriteByte('\n')
		}
		return bw.Flush()
	}
}
