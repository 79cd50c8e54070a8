package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/formbot-io/formbot/execution"
)

func TestExecutionRows(t *testing.T) {
	started := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	completed := started.Add(45 * time.Second)
	id := uuid.New()

	rows := executionRows([]execution.ExecutionLog{
		{ID: id, Status: execution.StatusSuccess, StartedAt: &started, CompletedAt: &completed},
		{ID: uuid.New(), Status: execution.StatusPending, IsDryRun: true},
	})

	assert.Len(t, rows, 2)
	assert.Equal(t, []string{id.String(), "success", "false", "2025-03-14 09:30:00", "2025-03-14 09:30:45"}, rows[0])
	// Pending executions have no timestamps yet.
	assert.Equal(t, "-", rows[1][3])
	assert.Equal(t, "-", rows[1][4])
	assert.Equal(t, "true", rows[1][2])
}

func TestStepRows(t *testing.T) {
	rows := stepRows([]execution.StepRecord{
		{Step: 1, Status: execution.StepSubmitted, FormType: "login", PageURL: "https://example.com/login"},
		{Step: 2, Status: execution.StepDryRunComplete, FormType: "profile", PageURL: "https://example.com/profile"},
	})

	assert.Equal(t, [][]string{
		{"1", "submitted", "login", "https://example.com/login"},
		{"2", "dry_run_complete", "profile", "https://example.com/profile"},
	}, rows)
}

func TestRenderDetails(t *testing.T) {
	var buf bytes.Buffer
	renderDetails(&buf, []detailRow{
		{"Status", "running"},
		{"Dry run", "false"},
	})

	out := buf.String()
	assert.Contains(t, out, "Status:")
	assert.Contains(t, out, "running")
	// Values line up in a single column.
	assert.Contains(t, out, "Dry run: false")
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	renderTable(&buf, []string{"STEP", "STATUS"}, [][]string{{"1", "submitted"}})

	out := buf.String()
	assert.Contains(t, out, "STEP")
	assert.Contains(t, out, "submitted")
}
