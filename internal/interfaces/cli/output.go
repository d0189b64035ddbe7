package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
)

// view is the human-readable rendering of a result: optional leading lines
// followed by an optional table. JSON output encodes the result itself.
type view struct {
	lines  []string
	header []string
	rows   [][]string
}

// PrintResult writes data in the selected output format.
func PrintResult(cmd *cobra.Command, data interface{}, v view) error {
	format := FormatTableOutput
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}
	out := cmd.OutOrStdout()

	if format == FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	for _, l := range v.lines {
		fmt.Fprintln(out, l)
	}
	if len(v.header) == 0 {
		return nil
	}
	if len(v.lines) > 0 {
		fmt.Fprintln(out)
	}
	if format == FormatText {
		fmt.Fprint(out, FormatTable(v.header, v.rows))
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header(v.header)
	for _, row := range v.rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}

// FormatTable renders headers and rows as plain aligned columns.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(headers)-1 {
				sb.WriteString(cell)
			} else {
				sb.WriteString(padRight(cell, widths[i]))
			}
		}
		sb.WriteString("\n")
	}
	writeRow(headers)
	sep := make([]string, len(headers))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// propertyHeaders returns the short codes of the six properties.
func propertyHeaders() []string {
	h := make([]string, 0, material.NumProperties)
	for _, p := range material.Properties {
		h = append(h, p.Code())
	}
	return h
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatValue(r material.Record, p material.Property) string {
	v, ok := r.Value(p)
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// formatDeviation renders a deviation colored by its closeness band.
func formatDeviation(d material.PropertyDeviation) string {
	s := fmt.Sprintf("%+.1f", d.Deviation)
	if d.Percent {
		s += "%"
	}
	switch d.Closeness {
	case material.ClosenessVeryClose:
		return color.GreenString(s)
	case material.ClosenessClose:
		return color.CyanString(s)
	case material.ClosenessSomewhat:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}
