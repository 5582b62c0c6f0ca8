package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aluiziolira/campaign-insights/models"
	"github.com/aluiziolira/campaign-insights/pipeline"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

const separator = "--------------------------------------------------"

func printSummary(w io.Writer, result *models.Result) {
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Run complete")
	fmt.Fprintf(w, "  Run ID:        %s\n", result.RunID)
	fmt.Fprintf(w, "  Source:        %s\n", result.Source)
	fmt.Fprintf(w, "  Rows cleaned:  %d\n", result.RowCount)
	fmt.Fprintf(w, "  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	if result.SnapshotPath != "" {
		fmt.Fprintf(w, "  Snapshot:      %s\n", result.SnapshotPath)
	}
	fmt.Fprintln(w, separator)

	for _, table := range result.Summaries {
		fmt.Fprintln(w)
		fmt.Fprint(w, renderTable(table))
	}
}

// renderTable lays out one summary as an aligned text table. Missing means
// are shown as "-".
func renderTable(table models.SummaryTable) string {
	headers := append([]string{table.GroupBy, "Count"}, table.Metrics...)

	rows := make([][]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		cells := []string{row.Key, strconv.Itoa(row.Count)}
		for _, metric := range table.Metrics {
			if v, ok := row.Values[metric]; ok {
				cells = append(cells, strconv.FormatFloat(v, 'f', 4, 64))
			} else {
				cells = append(cells, "-")
			}
		}
		rows = append(rows, cells)
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(table.Name))
	sb.WriteString("\n")
	writeRow(&sb, headerStyle, widths, headers)

	total := len(widths) - 1
	for _, w := range widths {
		total += w + 2
	}
	sb.WriteString(strings.Repeat("-", total))
	sb.WriteString("\n")

	for _, row := range rows {
		writeRow(&sb, cellStyle, widths, row)
	}
	if len(rows) == 0 {
		sb.WriteString("(no rows)\n")
	}
	return sb.String()
}

func writeRow(sb *strings.Builder, style lipgloss.Style, widths []int, cells []string) {
	for i, cell := range cells {
		// width includes the horizontal padding
		sb.WriteString(style.Width(widths[i] + 2).Render(cell))
		if i < len(cells)-1 {
			sb.WriteString("|")
		}
	}
	sb.WriteString("\n")
}

// printRowErrors lists collected row failures so the analyst can fix the
// extract in one pass.
func printRowErrors(w io.Writer, err error) {
	var rowErrs *pipeline.RowErrors
	if !errors.As(err, &rowErrs) {
		return
	}
	fmt.Fprintf(w, "%d malformed rows:\n", rowErrs.Total)
	for _, rowErr := range rowErrs.Errors {
		fmt.Fprintf(w, "  %v\n", rowErr)
	}
	if hidden := rowErrs.Total - len(rowErrs.Errors); hidden > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", hidden)
	}
}
