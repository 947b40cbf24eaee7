// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-stream/internal/feed"
)

var scoreCmd = &cobra.Command{
	Use:   "score [text]",
	Short: "Print the relevance score for a text",
	Long: `Score runs the static keyword-weight table over the given text and
prints the resulting relevance score. Useful for tuning the table without
touching the network.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		fmt.Printf("%.2f\n", feed.DefaultScorer().Score(text))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
