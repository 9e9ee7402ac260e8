// Package decode turns raw source bytes into Markdown text plus a page count.
// The engine ships decoders for plain-text, Markdown, HTML, CSV, JSON and XML
// sources; binary formats (pdf, docx, xlsx) are served by injected decoders
// registered at startup. Unregistered extensions are skipped, not failed.
package decode

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported marks a file extension with no registered decoder. Callers
// treat it as a skip, not a failure.
var ErrUnsupported = errors.New("unsupported format")

// charsPerPage is the imputed page size for formats that carry no pagination.
const charsPerPage = 3000

// PlaceholderKind names a visual element a decoder could not render as text.
type PlaceholderKind string

// Visual element kinds.
const (
	PlaceholderImage   PlaceholderKind = "IMAGE"
	PlaceholderTable   PlaceholderKind = "TABLE"
	PlaceholderFormula PlaceholderKind = "FORMULA"
	PlaceholderChart   PlaceholderKind = "CHART"
	PlaceholderDiagram PlaceholderKind = "DIAGRAM"
)

// Placeholder marks a visual element position left in the Markdown.
type Placeholder struct {
	ID   string
	Kind PlaceholderKind
	Page int
}

// Result is the outcome of decoding one source.
type Result struct {
	Text         string
	PageCount    int
	Placeholders []Placeholder
}

// Decoder converts raw source bytes into UTF-8 Markdown. Implementations must
// be side-effect-free and safe for concurrent use.
type Decoder interface {
	Decode(data []byte, formatHint string) (*Result, error)
	Formats() []string
	Name() string
}

// Registry maps lowercase file extensions to decoders.
type Registry struct {
	byExt map[string]Decoder
}

// NewRegistry creates a registry with the built-in text decoders registered.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Decoder)}
	r.Register(&TextDecoder{})
	r.Register(NewHTMLDecoder())
	r.Register(&CSVDecoder{})
	r.Register(&JSONDecoder{})
	r.Register(&XMLDecoder{})
	return r
}

// Register adds a decoder for each extension it declares. Later registrations
// win, so injected decoders can replace built-ins.
func (r *Registry) Register(d Decoder) {
	for _, ext := range d.Formats() {
		r.byExt[strings.ToLower(ext)] = d
	}
}

// Decode routes data to the decoder registered for the extension.
func (r *Registry) Decode(data []byte, ext string) (*Result, string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	d, ok := r.byExt[ext]
	if !ok {
		return nil, "", fmt.Errorf("%w: .%s", ErrUnsupported, ext)
	}
	res, err := d.Decode(data, ext)
	if err != nil {
		return nil, d.Name(), err
	}
	if res.PageCount <= 0 {
		res.PageCount = ImputePageCount(res.Text)
	}
	return res, d.Name(), nil
}

// Decoders returns the distinct registered decoders.
func (r *Registry) Decoders() []Decoder {
	seen := make(map[string]struct{})
	var out []Decoder
	for _, d := range r.byExt {
		if _, ok := seen[d.Name()]; ok {
			continue
		}
		seen[d.Name()] = struct{}{}
		out = append(out, d)
	}
	return out
}

// Supported reports whether the extension has a registered decoder.
func (r *Registry) Supported(ext string) bool {
	_, ok := r.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ok
}

// ImputePageCount estimates a page count for unpaginated text.
func ImputePageCount(text string) int {
	pages := len(text) / charsPerPage
	if pages < 1 {
		return 1
	}
	return pages
}

// TextDecoder passes plain text and Markdown through unchanged.
type TextDecoder struct{}

// Name returns the decoder engine id.
func (d *TextDecoder) Name() string { return "text" }

// Formats lists the extensions this decoder serves.
func (d *TextDecoder) Formats() []string { return []string{"txt", "md", "markdown"} }

// Decode returns the bytes as UTF-8 text.
func (d *TextDecoder) Decode(data []byte, _ string) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	return &Result{Text: string(data)}, nil
}

// CSVDecoder renders comma-separated values as a Markdown table.
type CSVDecoder struct{}

// Name returns the decoder engine id.
func (d *CSVDecoder) Name() string { return "csv" }

// Formats lists the extensions this decoder serves.
func (d *CSVDecoder) Formats() []string { return []string{"csv"} }

// Decode parses the CSV and emits one Markdown table.
func (d *CSVDecoder) Decode(data []byte, _ string) (*Result, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	var b strings.Builder
	for i, row := range rows {
		b.WriteString("| ")
		b.WriteString(strings.Join(row, " | "))
		b.WriteString(" |\n")
		if i == 0 {
			b.WriteString("|")
			b.WriteString(strings.Repeat(" --- |", len(row)))
			b.WriteString("\n")
		}
	}
	return &Result{Text: b.String()}, nil
}

// JSONDecoder renders JSON documents as a fenced code block with a heading.
type JSONDecoder struct{}

// Name returns the decoder engine id.
func (d *JSONDecoder) Name() string { return "json" }

// Formats lists the extensions this decoder serves.
func (d *JSONDecoder) Formats() []string { return []string{"json"} }

// Decode pretty-prints the JSON inside a fenced block.
func (d *JSONDecoder) Decode(data []byte, _ string) (*Result, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return &Result{Text: "```json\n" + string(pretty) + "\n```\n"}, nil
}

// XMLDecoder strips tags from XML documents, keeping element text.
type XMLDecoder struct{}

// Name returns the decoder engine id.
func (d *XMLDecoder) Name() string { return "xml" }

// Formats lists the extensions this decoder serves.
func (d *XMLDecoder) Formats() []string { return []string{"xml"} }

// Decode keeps character data and drops markup.
func (d *XMLDecoder) Decode(data []byte, _ string) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	var b strings.Builder
	inTag := false
	for _, r := range string(data) {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune('\n')
		case !inTag:
			b.WriteRune(r)
		}
	}
	text := collapseBlankLines(b.String())
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text content")
	}
	return &Result{Text: text}, nil
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
