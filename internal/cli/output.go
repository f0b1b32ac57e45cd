package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var (
	okFmt   = color.New(color.FgGreen).SprintFunc()
	warnFmt = color.New(color.FgYellow).SprintFunc()
	errFmt  = color.New(color.FgRed, color.Bold).SprintFunc()
	dimFmt  = color.New(color.Faint).SprintFunc()
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(f string) bool {
	return f == formatTable || f == formatJSON || f == formatYAML
}

// formatOutput writes data as JSON or YAML. Table output is handled by each
// command; it returns false in that case.
func formatOutput(w io.Writer, format string, data any) (bool, error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(data)
	case formatYAML:
		out, err := yaml.Marshal(data)
		if err != nil {
			return true, err
		}
		_, err = w.Write(out)
		return true, err
	default:
		return false, nil
	}
}

// banner prints a one-line status message the way the web UI showed its
// ok/error banners.
func banner(w io.Writer, ok bool, msg string) {
	mark := okFmt("✓")
	if !ok {
		mark = errFmt("✗")
	}
	fmt.Fprintf(w, "%s %s\n", mark, msg)
}
