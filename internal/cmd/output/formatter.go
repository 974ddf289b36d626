// Package output provides formatters for command output: a structured JSON
// mode for machine consumption and human-readable summaries for terminals.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Format types for output.
type Format string

const (
	// FormatSummary renders human-readable tables and counters.
	FormatSummary Format = "summary"
	// FormatJSON emits the full report structures verbatim.
	FormatJSON Format = "json"
)

// Formatter renders a report to a writer.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// JSONFormatter emits indented JSON.
type JSONFormatter struct{}

// Format implements Formatter.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// NewFormatter creates the formatter for a format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	default:
		return &SummaryFormatter{Color: isatty.IsTerminal(os.Stdout.Fd())}
	}
}

func plusMinus(created, updated, deleted int) string {
	return fmt.Sprintf("+%d ~%d -%d", created, updated, deleted)
}
