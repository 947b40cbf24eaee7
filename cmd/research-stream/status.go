// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-stream/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the engine's summary status file",
	Long: `Status reads the summary file the engine rewrites on every flush and
prints it in a human-readable form. Use --json for the raw document.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("summary", "", "summary status file (overrides config)")
	statusCmd.Flags().Bool("json", false, "print the raw JSON document")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("summary")
	if path == "" {
		path = viper.GetString("sink.summary_path")
	}
	if path == "" {
		path = "data/research_stream_summary.json"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading summary file %s: %w", path, err)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		fmt.Println(string(data))
		return nil
	}

	var sum types.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return fmt.Errorf("parsing summary file %s: %w", path, err)
	}

	fmt.Printf("Status:            %s\n", sum.MonitoringStatus)
	fmt.Printf("Last updated:      %s\n", sum.LastUpdated)
	fmt.Printf("Total papers:      %d\n", sum.TotalPapers)
	fmt.Printf("Papers in buffer:  %d\n", sum.PapersInBuffer)
	fmt.Printf("Uptime:            %.1fh\n", sum.ConnectionHealth.UptimeHours)
	fmt.Printf("Failures:          %d\n", sum.ConnectionHealth.Failures)
	fmt.Printf("Total retries:     %d\n", sum.ConnectionHealth.TotalRetries)
	if sum.ConnectionHealth.LastSuccessfulFetch != "" {
		fmt.Printf("Last fetch:        %s\n", sum.ConnectionHealth.LastSuccessfulFetch)
	}
	return nil
}
