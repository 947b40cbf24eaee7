// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-stream/internal/feed"
	"github.com/pdiddy/research-stream/internal/ingest"
	"github.com/pdiddy/research-stream/internal/monitor"
	"github.com/pdiddy/research-stream/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the streaming ingestion engine",
	Long: `Run polls the configured feeds until interrupted. New records are
deduplicated against the existing output file, buffered in memory, and
flushed periodically as JSONL. A SIGINT triggers one final flush before a
clean exit; transient feed failures are retried with capped exponential
backoff and never stop the engine.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSlice("arxiv-category", nil, "arXiv categories to poll (overrides config)")
	runCmd.Flags().Bool("biorxiv", true, "poll the bioRxiv RSS feed")
	runCmd.Flags().String("output", "", "append-only JSONL output file (overrides config)")
	runCmd.Flags().String("summary", "", "summary status file (overrides config)")
	runCmd.Flags().Duration("flush-interval", 0, "buffer flush cadence (overrides config)")

	viper.SetDefault("poll.timeout", 30*time.Second)
	viper.SetDefault("poll.user_agent", "research-stream/0.1")
	viper.SetDefault("poll.arxiv_categories", []string{"cs.AI", "q-bio.NC"})
	viper.SetDefault("poll.arxiv_interval", 30*time.Second)
	viper.SetDefault("poll.enable_biorxiv", true)
	viper.SetDefault("poll.biorxiv_interval", 120*time.Second)
	viper.SetDefault("poll.max_results", 50)
	viper.SetDefault("poll.requests_per_second", 0.5)
	viper.SetDefault("sink.output_path", "data/research_stream.jsonl")
	viper.SetDefault("sink.summary_path", "data/research_stream_summary.json")
	viper.SetDefault("sink.flush_interval", 60*time.Second)
	viper.SetDefault("sink.max_write_attempts", 5)
	viper.SetDefault("supervisor.backoff_base", time.Second)
	viper.SetDefault("supervisor.backoff_max", 300*time.Second)
	viper.SetDefault("supervisor.max_retries", 10)
	viper.SetDefault("supervisor.restart_delay", 30*time.Second)
	viper.SetDefault("monitor.enabled", false)
	viper.SetDefault("monitor.addr", ":9105")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := engineConfig(cmd)

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	client := &http.Client{Timeout: cfg.Poll.Timeout}
	scorer := feed.DefaultScorer()
	limiter := rate.NewLimiter(rate.Limit(cfg.Poll.RequestsPerSecond), 1)

	var sources []feed.Source
	for _, cat := range cfg.Poll.ArxivCategories {
		sources = append(sources, feed.NewArxivSource(cat, client, limiter, scorer, cfg.Poll))
	}
	if cfg.Poll.EnableBiorxiv {
		sources = append(sources, feed.NewBiorxivSource(client, scorer, cfg.Poll))
	}

	metrics := monitor.NewMetrics()
	engine, err := ingest.NewEngine(cfg, sources, metrics, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Monitor.Enabled {
		server := monitor.NewServer(cfg.Monitor.Addr, metrics, engine.Summary)
		go func() {
			if err := server.Serve(ctx); err != nil {
				logger.Warn("monitor server failed", zap.Error(err))
			}
		}()
		logger.Info("monitor listening", zap.String("addr", cfg.Monitor.Addr))
	}

	return engine.Run(ctx)
}

// engineConfig assembles the engine configuration from viper defaults, the
// config file, environment, and flag overrides.
func engineConfig(cmd *cobra.Command) types.EngineConfig {
	cfg := types.EngineConfig{
		Poll: types.PollConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("poll.timeout"),
				UserAgent: viper.GetString("poll.user_agent"),
			},
			ArxivCategories:   viper.GetStringSlice("poll.arxiv_categories"),
			ArxivInterval:     viper.GetDuration("poll.arxiv_interval"),
			EnableBiorxiv:     viper.GetBool("poll.enable_biorxiv"),
			BiorxivInterval:   viper.GetDuration("poll.biorxiv_interval"),
			MaxResults:        viper.GetInt("poll.max_results"),
			RequestsPerSecond: viper.GetFloat64("poll.requests_per_second"),
		},
		Sink: types.SinkConfig{
			OutputPath:       viper.GetString("sink.output_path"),
			SummaryPath:      viper.GetString("sink.summary_path"),
			FlushInterval:    viper.GetDuration("sink.flush_interval"),
			MaxWriteAttempts: viper.GetInt("sink.max_write_attempts"),
		},
		Supervisor: types.SupervisorConfig{
			BackoffBase:  viper.GetDuration("supervisor.backoff_base"),
			BackoffMax:   viper.GetDuration("supervisor.backoff_max"),
			MaxRetries:   viper.GetInt("supervisor.max_retries"),
			RestartDelay: viper.GetDuration("supervisor.restart_delay"),
		},
		Monitor: types.MonitorConfig{
			Enabled: viper.GetBool("monitor.enabled"),
			Addr:    viper.GetString("monitor.addr"),
		},
	}

	if cats, _ := cmd.Flags().GetStringSlice("arxiv-category"); len(cats) > 0 {
		cfg.Poll.ArxivCategories = cats
	}
	if cmd.Flags().Changed("biorxiv") {
		cfg.Poll.EnableBiorxiv, _ = cmd.Flags().GetBool("biorxiv")
	}
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		cfg.Sink.OutputPath = out
	}
	if sum, _ := cmd.Flags().GetString("summary"); sum != "" {
		cfg.Sink.SummaryPath = sum
	}
	if iv, _ := cmd.Flags().GetDuration("flush-interval"); iv > 0 {
		cfg.Sink.FlushInterval = iv
	}

	return cfg
}
