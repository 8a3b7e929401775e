package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/logwarden/internal/config"
)

var (
	cfgFile string
	envFile string

	nowFunc = time.Now
)

var rootCmd = &cobra.Command{
	Use:   "logwarden",
	Short: "Template-based log anomaly detection",
	Long: `logwarden parses heterogeneous log files into structured records,
assigns every record a template id, and flags anomalies: lines matching
configured rules, numeric outliers, and rare sequences of templates.

Findings are printed and can be delivered to email, Kafka, Redis,
PostgreSQL, or explained by a local Ollama model.

Examples:
  logwarden analyze -t authlog /var/log/auth.log
  logwarden analyze authlog=/var/log/auth.log windowslog=events.json
  logwarden parse --grep "Failed" -t authlog /var/log/auth.log
  logwarden stats -t authlog /var/log/auth.log*
  logwarden generate --kind syslog --count 1000 > sample.log`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(viper.GetBool("verbose")))
	},
}

// Execute is called by main.main(). It runs the root command with a context
// that is cancelled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.logwarden.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Error loading env file:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".logwarden")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LOGWARDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Error reading config file:", err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("format", "text")
	v.SetDefault("verbose", false)
	v.SetDefault("timestamp_formats", []string{
		"2006-01-02T15:04:05Z07:00",  // RFC3339
		"2006-01-02 15:04:05",        // Common datetime
		"02/Jan/2006:15:04:05 -0700", // Apache/Nginx
	})

	v.SetDefault("point_anomalies.iqr_factor", 1.5)
	v.SetDefault("sequence.n", 3)
	v.SetDefault("sequence.min_frequency", 2)

	v.SetDefault("alerting.channels.console", true)
	v.SetDefault("alerting.console.color", "auto")
	v.SetDefault("alerting.email.smtp_port", 587)
	v.SetDefault("alerting.email.use_tls", true)
	v.SetDefault("alerting.kafka.balancer", "leastbytes")
	v.SetDefault("alerting.kafka.write_timeout", "10s")
	v.SetDefault("alerting.redis.stream", "logwarden:findings")
	v.SetDefault("alerting.postgres.table", "logwarden_findings")
	v.SetDefault("alerting.ollama.host", "http://localhost:11434")
	v.SetDefault("alerting.ollama.model", "llama3.2")
	v.SetDefault("alerting.ollama.timeout", "60s")
	v.SetDefault("alerting.ollama.prompt", "explain")
	v.SetDefault("alerting.redaction.enabled", true)

	// Registered so AutomaticEnv can fill them from LOGWARDEN_* variables.
	for _, key := range []string{
		"alerting.email.username",
		"alerting.email.password",
		"alerting.redis.password",
		"alerting.postgres.dsn",
	} {
		v.SetDefault(key, "")
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig decodes and validates the merged configuration.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// addInputFlags registers the flags shared by commands that read log files.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("log-type", "t", "", "log type for arguments without a type= prefix")
	cmd.Flags().String("since", "", "only include records since timestamp (RFC3339 or relative like '1h')")
	cmd.Flags().String("until", "", "only include records until timestamp (RFC3339 or relative like '1h')")
}

// resolveInputs expands the command arguments, or the configured inputs
// when there are none.
func resolveInputs(cmd *cobra.Command, args []string, cfg *config.Config) ([]config.Input, error) {
	if len(args) == 0 {
		if len(cfg.Inputs) == 0 {
			return nil, fmt.Errorf("no input files (pass paths or set inputs in the config)")
		}
		return config.ExpandConfigured(cfg.Inputs)
	}
	logType, _ := cmd.Flags().GetString("log-type")
	return config.ExpandInputs(args, logType)
}

// timeRange parses --since and --until.
func timeRange(cmd *cobra.Command) (config.TimeRange, error) {
	since, _ := cmd.Flags().GetString("since")
	until, _ := cmd.Flags().GetString("until")
	return config.ParseTimeRange(since, until, nowFunc())
}

func inputPaths(inputs []config.Input) []string {
	paths := make([]string, len(inputs))
	for i, in := range inputs {
		paths[i] = in.Path
	}
	return paths
}
