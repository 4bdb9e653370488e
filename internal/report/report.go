// Package report renders analysis results for the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/phermsdorf/fb-contrib/pkg/detect"
	"github.com/phermsdorf/fb-contrib/pkg/fbcontrib"
)

// Format selects a rendering.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// Write renders the result in the requested format.
func Write(w io.Writer, result *fbcontrib.Result, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatTable:
		return writeTable(w, result)
	case FormatText, "":
		return writeText(w, result)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// writeText prints one line per finding:
// SourceFile:line ClassName.method CATEGORY
func writeText(w io.Writer, result *fbcontrib.Result) error {
	for _, f := range result.Findings {
		if _, err := fmt.Fprintf(w, "%s %s.%s %s\n",
			location(f), f.ClassName, f.MethodName, f.Category); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, result *fbcontrib.Result) error {
	payload := struct {
		*fbcontrib.Result
		Timestamp string `json:"timestamp"`
	}{
		Result:    result,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func writeTable(w io.Writer, result *fbcontrib.Result) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.Off},
			},
		}),
	)
	table.Header([]string{"Location", "Class", "Method", "Category", "Priority"})
	for _, f := range result.Findings {
		table.Append([]string{
			location(f), f.ClassName, f.MethodName, f.Category, f.Priority.String(),
		})
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d finding(s) in %d class(es)\n",
		result.Stats.Findings, result.Stats.ClassesAnalyzed)
	return err
}

func location(f detect.Finding) string {
	file := f.SourceFile
	if file == "" {
		file = f.ClassName
	}
	if f.Line > 0 {
		return file + ":" + strconv.Itoa(f.Line)
	}
	return file
}
