// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-stream CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the research-stream CLI.
var rootCmd = &cobra.Command{
	Use:   "research-stream",
	Short: "Streaming ingestion of research publication feeds",
	Long: `research-stream continuously polls publication feeds (arXiv categories,
bioRxiv RSS), deduplicates entries, and appends them as JSONL records to an
output file alongside a live summary status file.

The run command starts the ingestion engine; status inspects the summary
file; archive indexes the JSONL output into a searchable SQLite database.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-stream.yaml or ~/.config/research-stream/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-stream")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-stream"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_STREAM")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
