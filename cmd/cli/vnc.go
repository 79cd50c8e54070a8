package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newVNCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vnc",
		Short: "Manage virtual display sessions",
	}

	cmd.AddCommand(newVNCActivateCmd())
	cmd.AddCommand(newVNCResumeCmd())
	cmd.AddCommand(newVNCStopCmd())
	cmd.AddCommand(newVNCSessionsCmd())
	return cmd
}

func newVNCActivateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate <session-id>",
		Short: "Activate the viewer for a reserved display session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			body, err := client.Post("/api/v1/vnc/activate", map[string]interface{}{
				"session_id": args[0],
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
				ViewerURL string `json:"viewer_url"`
				WSPort    int    `json:"ws_port"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			printMessage("Viewer: " + resp.ViewerURL)
			return nil
		},
	}
	return cmd
}

func newVNCResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume an execution paused for manual intervention",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			if _, err := client.Post("/api/v1/vnc/resume", map[string]interface{}{
				"session_id": args[0],
			}); err != nil {
				return err
			}

			printMessage("Session resumed")
			return nil
		},
	}
	return cmd
}

func newVNCStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <session-id>",
		Short: "Stop a display session and free its slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			if _, err := client.Post("/api/v1/vnc/stop", map[string]interface{}{
				"session_id": args[0],
			}); err != nil {
				return err
			}

			printMessage("Session stopped")
			return nil
		},
	}
	return cmd
}

func newVNCSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Show display pool utilization",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			body, err := client.Get("/api/v1/vnc/sessions", nil)
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
				Active int `json:"active"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			printMessage(fmt.Sprintf("Active display sessions: %d", resp.Active))
			return nil
		},
	}
	return cmd
}
