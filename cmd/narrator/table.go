package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/book-expert/narration-pipeline/internal/pipeline"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}

	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}

		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}

		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}

	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderResult(result pipeline.Result) string {
	var b strings.Builder

	b.WriteString(renderTable(
		[]string{"Run", "Total", "Generated", "Skipped", "Failed"},
		[][]string{{
			result.RunID,
			strconv.Itoa(result.Total),
			strconv.Itoa(result.Generated),
			strconv.Itoa(result.Skipped),
			strconv.Itoa(result.Failed),
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	b.WriteString("\n")

	if len(result.GeneratedIDs) > 0 {
		fmt.Fprintf(&b, "Generated: %s\n", strings.Join(result.GeneratedIDs, ", "))
	}

	writeErrors(&b, result.Errors)

	if result.Interrupted {
		b.WriteString("Run interrupted before completion.\n")
	}

	return b.String()
}

func renderReport(report pipeline.Report) string {
	var b strings.Builder

	b.WriteString(renderTable(
		[]string{"Run", "Checked", "Ready", "Missing", "Repaired", "Unrepaired"},
		[][]string{{
			report.RunID,
			strconv.Itoa(report.Checked),
			strconv.Itoa(report.Ready),
			strconv.Itoa(report.Missing),
			strconv.Itoa(report.Repaired),
			strconv.Itoa(len(report.FailedRepairs)),
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	b.WriteString("\n")

	if report.NeedsAttention() {
		rows := make([][]string, 0, len(report.FailedRepairs))
		for _, failed := range report.FailedRepairs {
			rows = append(rows, []string{
				failed.ID, string(failed.Kind), failed.Title, failed.Date.String(),
				failed.Key, strconv.Itoa(failed.Attempts), failed.LastError,
			})
		}

		b.WriteString("CRITICAL: scheduled content without narration\n")
		b.WriteString(renderTable(
			[]string{"ID", "Kind", "Title", "Date", "Key", "Attempts", "Last error"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		))
		b.WriteString("\n")
	}

	writeErrors(&b, report.Errors)

	return b.String()
}

func writeErrors(b *strings.Builder, errs []string) {
	if len(errs) == 0 {
		return
	}

	b.WriteString("Errors:\n")

	for _, message := range errs {
		fmt.Fprintf(b, "  - %s\n", message)
	}
}

// resumeCommand is the command line that continues a bulk run.
func resumeCommand(batchSize, start int, force bool) string {
	command := fmt.Sprintf("narrator regenerate-all --batch-size %d --start %d", batchSize, start)
	if force {
		command += " --force"
	}

	return command
}
