// Package metadata mirrors per-frame key/value metadata to a text or
// JSON-style stream.
package metadata

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Format selects the serialization used by Writer.
type Format string

// Supported formats.
const (
	FormatText Format = "txt"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown metadata format %q (want txt or json)", s)
	}
}

// Field is one metadata key/value pair. Values are already rendered to text.
type Field struct {
	Key   string
	Value string
}

// Entry is the ordered metadata attached to one frame.
type Entry []Field

// Writer emits entries in the configured format.
type Writer struct {
	w       *bufio.Writer
	format  Format
	written int
}

// NewWriter wraps w. Call Start before the first entry and Stop at the end.
func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{w: bufio.NewWriter(w), format: format}
}

// Start writes the list opener for list-style formats.
func (m *Writer) Start() error {
	if m.format == FormatJSON {
		m.w.WriteString("[\n")
	}
	return m.w.Flush()
}

// Write emits one entry.
func (m *Writer) Write(e Entry) error {
	switch m.format {
	case FormatText:
		for _, f := range e {
			fmt.Fprintf(m.w, "%s=%s\n", f.Key, f.Value)
		}
		m.w.WriteString("\n")
	case FormatJSON:
		if m.written > 0 {
			m.w.WriteString(",\n")
		}
		m.w.WriteString("{")
		for i, f := range e {
			if i > 0 {
				m.w.WriteString(",")
			}
			fmt.Fprintf(m.w, "\n    \"%s\": %s", f.Key, jsonValue(f.Value))
		}
		m.w.WriteString("\n}")
	}
	m.written++
	return m.w.Flush()
}

// Stop writes the list closer for list-style formats.
func (m *Writer) Stop() error {
	if m.format == FormatJSON {
		m.w.WriteString("\n]\n")
	}
	return m.w.Flush()
}

// jsonValue quotes values containing a '/', such as rationals ("4/3"), and
// leaves everything else bare. Quoting follows the content, not the type.
func jsonValue(v string) string {
	if strings.Contains(v, "/") {
		return `"` + v + `"`
	}
	return v
}
