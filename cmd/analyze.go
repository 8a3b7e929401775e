package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/logwarden/internal/alert"
	"github.com/bimmerbailey/logwarden/internal/analyzer"
	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/config"
	"github.com/bimmerbailey/logwarden/internal/output"
	"github.com/bimmerbailey/logwarden/internal/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] [type=]<file>...",
	Short: "Detect anomalies in log files",
	Long: `Run the full detection pipeline: parse every input, flag records that
match template rules or carry numeric outliers, then look for rare
sequences of templates. Findings go to the enabled alert channels and a
report is printed at the end.

Examples:
  logwarden analyze -t authlog /var/log/auth.log
  logwarden analyze authlog=/var/log/auth.log windowslog=events.json
  logwarden analyze --since 24h --n 4 -t authlog /var/log/auth.log
  logwarden analyze --watch --metrics-addr :9464 -t authlog /var/log/auth.log`,
	RunE: runAnalyze,
}

func init() {
	analyzeFlags(analyzeCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func analyzeFlags(cmd *cobra.Command) {
	addInputFlags(cmd)
	cmd.Flags().Int("n", 0, "n-gram length (overrides sequence.n)")
	cmd.Flags().Int("min-frequency", 0, "n-grams seen fewer times are anomalous (overrides sequence.min_frequency)")
	cmd.Flags().BoolP("watch", "w", false, "re-run whenever an input file changes")
	cmd.Flags().Duration("debounce", pipeline.DefaultDebounce, "quiet period before a watch re-run")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics to this textfile after every run")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while watching")
	cmd.Flags().Bool("metrics-doc", false, "print the exported metrics and exit")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	watch, _ := cmd.Flags().GetBool("watch")
	debounce, _ := cmd.Flags().GetDuration("debounce")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	metricsDoc, _ := cmd.Flags().GetBool("metrics-doc")

	metrics := pipeline.NewMetrics()
	if metricsDoc {
		fmt.Fprint(cmd.OutOrStdout(), metrics.Documentation())
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applySequenceFlags(cmd, cfg)

	inputs, err := resolveInputs(cmd, args, cfg)
	if err != nil {
		return err
	}
	tr, err := timeRange(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.Default()
	format := output.ParseFormat(viper.GetString("format"))

	// Alert text shares stdout with the report only in text mode.
	alertOut := cmd.OutOrStdout()
	if format != output.FormatText {
		alertOut = cmd.ErrOrStderr()
	}
	manager, err := alert.FromConfig(ctx, cfg.Alerting, alert.Settings{
		Stdout:    alertOut,
		Logger:    logger,
		Files:     inputPaths(inputs),
		TimeRange: describeRange(tr),
		OnFailure: metrics.AlertFailed,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Warn("closing alert channels", "error", err)
		}
	}()

	p := pipeline.New(cfg,
		pipeline.WithSink(manager),
		pipeline.WithTimeRange(tr),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(logger),
	)

	writer := output.New(cmd.OutOrStdout(), format).
		WithColor(output.ShouldColorize(output.ParseColorMode(cfg.Alerting.Console.Color), cmd.OutOrStdout()))

	report := func(rep *pipeline.Report, runErr error) {
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", runErr)
		}
		if rep != nil {
			if err := writeReport(writer, rep, !slices.Contains(manager.Channels(), "console")); err != nil {
				logger.Warn("writing report", "error", err)
			}
		}
		if metricsFile != "" {
			if err := metrics.WriteToTextfile(metricsFile); err != nil {
				logger.Warn("writing metrics", "error", err)
			}
		}
	}

	if !watch {
		rep, err := p.Run(ctx, inputs)
		report(rep, nil)
		return err
	}

	if metricsAddr != "" {
		stop := serveMetrics(metricsAddr, metrics, logger)
		defer stop()
	}
	return p.Watch(ctx, inputs, pipeline.WatchOptions{Debounce: debounce, OnRun: report})
}

func applySequenceFlags(cmd *cobra.Command, cfg *config.Config) {
	if n, _ := cmd.Flags().GetInt("n"); n > 0 {
		cfg.Sequence.N = n
	}
	if m, _ := cmd.Flags().GetInt("min-frequency"); m > 0 {
		cfg.Sequence.MinFrequency = m
	}
}

// writeReport prints the run outcome. Findings are listed only when no
// console channel already printed them.
func writeReport(w *output.Writer, rep *pipeline.Report, listFindings bool) error {
	if w.Format() == output.FormatJSON {
		if rep.Findings == nil {
			rep.Findings = []anomaly.Finding{}
		}
		return w.WriteJSON(rep)
	}

	if err := w.WriteRates(fileRates(rep), rep.Overall); err != nil {
		return err
	}
	for _, f := range rep.Files {
		if f.Error != "" {
			w.Printf("skipped %s: %s\n", f.Path, f.Error)
		}
	}
	if rep.OutOfRange > 0 {
		w.Printf("%d records outside the time range were ignored\n", rep.OutOfRange)
	}
	if listFindings {
		w.Printf("\n")
		if err := w.WriteFindings(rep.Findings); err != nil {
			return err
		}
	}
	w.WriteSummary(rep.Records, rep.Counts)
	return nil
}

func describeRange(tr config.TimeRange) string {
	if tr.IsZero() {
		return ""
	}
	from, to := "beginning", "now"
	if !tr.Since.IsZero() {
		from = tr.Since.Format(time.RFC3339)
	}
	if !tr.Until.IsZero() {
		to = tr.Until.Format(time.RFC3339)
	}
	return from + " to " + to
}

// serveMetrics exposes the registry over HTTP until the returned function
// is called.
func serveMetrics(addr string, m *pipeline.Metrics, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "addr", addr, "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func fileRates(rep *pipeline.Report) []analyzer.Rate {
	rates := make([]analyzer.Rate, len(rep.Files))
	for i, f := range rep.Files {
		rates[i] = f.Rate
	}
	return rates
}
