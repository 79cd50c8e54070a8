package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var stealth bool

	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Start AI form analysis of a page",
		Long:  "Starts form analysis in the background. Progress and the final document arrive on the analysis broadcast channel.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			body, err := client.Post("/api/v1/analyze", map[string]interface{}{
				"url":     args[0],
				"stealth": stealth,
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
				AnalysisID string `json:"analysis_id"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			printMessage(fmt.Sprintf("Analysis %s started", resp.AnalysisID))
			return nil
		},
	}

	cmd.Flags().BoolVar(&stealth, "stealth", false, "Load the page with anti-automation-detection scripts")
	return cmd
}
