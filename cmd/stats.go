package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/logwarden/internal/analyzer"
	"github.com/bimmerbailey/logwarden/internal/config"
	"github.com/bimmerbailey/logwarden/internal/output"
	"github.com/bimmerbailey/logwarden/internal/pipeline"
)

var statsCmd = &cobra.Command{
	Use:   "stats [flags] [type=]<file>...",
	Short: "Show template statistics",
	Long: `Display a statistical summary of parsed log files: record counts per
template, time range, sources and top messages. Lines that no pattern
matched are clustered into candidate templates with a suggested regex, so
missing parsing rules are easy to spot.

Examples:
  logwarden stats -t authlog /var/log/auth.log
  logwarden stats --format json -t authlog /var/log/auth.log
  logwarden stats --window 5m --since 2h -t authlog auth.log`,
	RunE: runStats,
}

func init() {
	statsFlags(statsCmd)
	rootCmd.AddCommand(statsCmd)
}

func statsFlags(cmd *cobra.Command) {
	addInputFlags(cmd)
	cmd.Flags().Int("top", 10, "number of top messages to show")
	cmd.Flags().Int("clusters", 10, "number of unmatched-line clusters to show (0 disables)")
	cmd.Flags().String("window", "", "time window for trend analysis (e.g., 5m, 1h)")
}

func runStats(cmd *cobra.Command, args []string) error {
	topN, _ := cmd.Flags().GetInt("top")
	clusters, _ := cmd.Flags().GetInt("clusters")
	windowStr, _ := cmd.Flags().GetString("window")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	inputs, err := resolveInputs(cmd, args, cfg)
	if err != nil {
		return err
	}
	tr, err := timeRange(cmd)
	if err != nil {
		return err
	}

	var window time.Duration
	if windowStr != "" {
		window, err = config.ParseDuration(windowStr)
		if err != nil {
			return fmt.Errorf("invalid --window value: %w", err)
		}
		if window <= 0 {
			return fmt.Errorf("window duration must be positive")
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p := pipeline.New(cfg)
	batch, err := p.Parse(ctx, inputs)
	if err != nil {
		return err
	}

	anlz := analyzer.New(p.Parser().Registry().Templates())
	records, err := anlz.Filter(batch.Records, analyzer.FilterOptions{Since: tr.Since, Until: tr.Until})
	if err != nil {
		return err
	}

	stats := anlz.TemplateStats(records, topN)
	if clusters > 0 {
		stats.Clusters = analyzer.ClusterLines(batch.Unmatched(), clusters)
	}

	format := output.ParseFormat(viper.GetString("format"))
	w := output.New(cmd.OutOrStdout(), format)

	var windows []analyzer.TimeWindowStats
	if window > 0 {
		windows = anlz.AnalyzeByWindow(records, window)
	}

	if format == output.FormatJSON {
		return w.WriteJSON(struct {
			analyzer.Stats
			Files   []pipeline.FileReport      `json:"files"`
			Overall analyzer.Rate              `json:"overall"`
			Windows []analyzer.TimeWindowStats `json:"windows,omitempty"`
		}{stats, batch.Files, analyzer.OverallRate(batch.Rates()), windows})
	}

	if err := w.WriteRates(batch.Rates(), analyzer.OverallRate(batch.Rates())); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout())
	if err := w.WriteStats(stats); err != nil {
		return err
	}
	if window > 0 {
		fmt.Fprintln(cmd.OutOrStdout())
		if len(windows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No timestamp information available for window analysis.")
			return nil
		}
		return w.WriteWindows(windows)
	}
	return nil
}
