package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/formbot-io/formbot/execution"
)

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printMessage(msg string) {
	fmt.Println(msg)
}

// detailRow is one label/value line in a detail view, such as
// `executions get` output.
type detailRow struct {
	label string
	value string
}

func printDetails(rows []detailRow) {
	renderDetails(os.Stdout, rows)
}

func renderDetails(w io.Writer, rows []detailRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, row := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", row.label, row.value)
	}
	tw.Flush()
}

func printTable(headers []string, rows [][]string) {
	renderTable(os.Stdout, headers, rows)
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// executionRows shapes execution logs for the list table. Timestamps
// are rendered as "-" until the execution reaches that stage.
func executionRows(execs []execution.ExecutionLog) [][]string {
	rows := make([][]string, 0, len(execs))
	for _, exec := range execs {
		rows = append(rows, []string{
			exec.ID.String(),
			string(exec.Status),
			fmt.Sprintf("%t", exec.IsDryRun),
			formatTimestamp(exec.StartedAt),
			formatTimestamp(exec.CompletedAt),
		})
	}
	return rows
}

// stepRows shapes an execution's step log for the detail table.
func stepRows(records []execution.StepRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			fmt.Sprintf("%d", record.Step),
			record.Status,
			record.FormType,
			record.PageURL,
		})
	}
	return rows
}

func formatTimestamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func confirmAction(prompt string, skipConfirm bool) bool {
	if skipConfirm {
		return true
	}

	fmt.Printf("%s [y/N]: ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes"
	}
	return false
}
