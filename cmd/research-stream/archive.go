// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-stream/internal/archive"
	"github.com/pdiddy/research-stream/pkg/types"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage the record archive (index, query, export)",
	Long: `Archive maintains a SQLite database with FTS5 full-text search built
from the engine's JSONL output. Use subcommands to index new records, query
them, or export the archive.`,
}

// --- index subcommand ---

var archiveIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the JSONL output file into the archive",
	Long: `Index reads the engine's append-only record file and inserts records
into the archive database. Indexing is incremental: lines already processed
are skipped on subsequent runs.`,
	RunE: runArchiveIndex,
}

func runArchiveIndex(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	input, _ := cmd.Flags().GetString("input")
	if input == "" {
		input = viper.GetString("sink.output_path")
	}
	if input == "" {
		input = "data/research_stream.jsonl"
	}

	summary, err := store.Index(context.Background(), input)
	if err != nil {
		return err
	}

	fmt.Printf("indexed: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Skipped, summary.Failed)
	return nil
}

// --- query subcommand ---

var archiveQueryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Query the archive with full-text search and filters",
	Long: `Query searches the archive using FTS5 full-text search over titles and
abstracts, structured filters (source, minimum relevance score), or a
combination of both.`,
	RunE: runArchiveQuery,
}

func runArchiveQuery(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide search text, --source, or --min-score")
	}

	results, err := store.Query(context.Background(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatQueryOutput(results, jsonOutput)
}

func formatQueryOutput(results []archive.QueryResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-60s  %-14s  %-6s  %s\n",
		"Rank", "Title", "Source", "Score", "ID")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for i, r := range results {
		fmt.Fprintf(os.Stdout, "%-4d  %-60s  %-14s  %-6.2f  %s\n",
			i+1, truncate(r.Title, 60), truncate(r.Source, 14), r.RelevanceScore, r.ID)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var archiveExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the archive to YAML or JSON",
	Long: `Export writes the full archive (or a filtered subset) to export.yaml or
export.json in the archive directory. Supports the same filter flags as
query for partial exports.`,
	RunE: runArchiveExport,
}

func runArchiveExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(context.Background(), opts)
	case "json":
		path, err = store.ExportJSON(context.Background(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}

	fmt.Println("Exported to", path)
	return nil
}

// --- shared helpers ---

// truncate shortens s to at most n bytes with an ellipsis, backing up to a
// rune boundary so a multi-byte character is never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func openArchive(cmd *cobra.Command) (*archive.Store, error) {
	archiveDir, _ := cmd.Flags().GetString("archive-dir")
	if archiveDir == "" {
		archiveDir = viper.GetString("archive.archive_dir")
	}
	if archiveDir == "" {
		archiveDir = "data/archive"
	}
	maxResults, _ := cmd.Flags().GetInt("max-results")

	return archive.NewStore(types.ArchiveConfig{
		ArchiveDir: archiveDir,
		MaxResults: maxResults,
	})
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) archive.QueryOptions {
	source, _ := cmd.Flags().GetString("source")
	minScore, _ := cmd.Flags().GetFloat64("min-score")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	return archive.QueryOptions{
		Query:      strings.Join(args, " "),
		Source:     source,
		MinScore:   minScore,
		MaxResults: maxResults,
	}
}

func init() {
	for _, c := range []*cobra.Command{archiveIndexCmd, archiveQueryCmd, archiveExportCmd} {
		c.Flags().String("archive-dir", "", "archive directory (default: data/archive)")
	}

	archiveIndexCmd.Flags().String("input", "", "JSONL record file to index (default: sink output path)")

	for _, c := range []*cobra.Command{archiveQueryCmd, archiveExportCmd} {
		c.Flags().String("source", "", "filter by source tag (e.g. arxiv_cs.AI, biorxiv)")
		c.Flags().Float64("min-score", 0, "filter by minimum relevance score")
		c.Flags().Int("max-results", 0, "maximum number of results")
	}
	archiveQueryCmd.Flags().Bool("json", false, "output results as JSON")
	archiveExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	archiveCmd.AddCommand(archiveIndexCmd, archiveQueryCmd, archiveExportCmd)
	rootCmd.AddCommand(archiveCmd)
}
