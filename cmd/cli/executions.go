package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formbot-io/formbot/execution"
)

func newExecutionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executions",
		Short: "Start and inspect task executions",
	}

	cmd.AddCommand(newExecutionsRunCmd())
	cmd.AddCommand(newExecutionsGetCmd())
	cmd.AddCommand(newExecutionsListCmd())
	cmd.AddCommand(newExecutionsCancelCmd())
	return cmd
}

func newExecutionsRunCmd() *cobra.Command {
	var taskID string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a task execution",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			body, err := client.Post("/api/v1/execute", map[string]interface{}{
				"task_id": taskID,
				"dry_run": dryRun,
			})
			if err != nil {
				return err
			}

			if flagJSON {
				var raw json.RawMessage
				json.Unmarshal(body, &raw)
				printJSON(raw)
				return nil
			}

			var resp struct {
				ExecutionID string `json:"execution_id"`
				Status      string `json:"status"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			printMessage(fmt.Sprintf("Execution %s started (%s)", resp.ExecutionID, resp.Status))
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "Task ID (required)")
	cmd.MarkFlagRequired("task-id")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Fill forms but never submit the final step")
	return cmd
}

func newExecutionsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <execution-id>",
		Short: "Show one execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			body, err := client.Get("/api/v1/executions/"+args[0], nil)
			if err != nil {
				return err
			}

			if flagJSON {
				var raw json.RawMessage
				json.Unmarshal(body, &raw)
				printJSON(raw)
				return nil
			}

			var exec execution.ExecutionLog
			if err := json.Unmarshal(body, &exec); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			details := []detailRow{
				{"ID", exec.ID.String()},
				{"Task", exec.TaskID.String()},
				{"Status", string(exec.Status)},
				{"Dry run", fmt.Sprintf("%t", exec.IsDryRun)},
			}
			if exec.ErrorMessage != "" {
				details = append(details, detailRow{"Error", exec.ErrorMessage})
			}
			printDetails(details)
			if len(exec.StepsLog) > 0 {
				printMessage("\nSteps:")
				printTable([]string{"STEP", "STATUS", "FORM TYPE", "URL"}, stepRows(exec.StepsLog))
			}
			return nil
		},
	}
	return cmd
}

func newExecutionsListCmd() *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions of a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			body, err := client.Get(fmt.Sprintf("/api/v1/tasks/%s/executions", taskID), nil)
			if err != nil {
				return err
			}

			if flagJSON {
				var raw json.RawMessage
				json.Unmarshal(body, &raw)
				printJSON(raw)
				return nil
			}

			var execs []execution.ExecutionLog
			if err := json.Unmarshal(body, &execs); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			headers := []string{"ID", "STATUS", "DRY RUN", "STARTED AT", "COMPLETED AT"}
			printTable(headers, executionRows(execs))
			printMessage(fmt.Sprintf("\n%d executions", len(execs)))
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "Task ID (required)")
	cmd.MarkFlagRequired("task-id")
	return cmd
}

func newExecutionsCancelCmd() *cobra.Command {
	var skipConfirm bool

	cmd := &cobra.Command{
		Use:   "cancel <execution-id>",
		Short: "Cancel a running execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmAction(fmt.Sprintf("Cancel execution %s?", args[0]), skipConfirm) {
				printMessage("Aborted")
				return nil
			}

			client, err := getClient()
			if err != nil {
				return err
			}

			if _, err := client.Post(fmt.Sprintf("/api/v1/executions/%s/cancel", args[0]), nil); err != nil {
				return err
			}

			printMessage("Cancellation requested")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}
