package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/logwarden/internal/analyzer"
	"github.com/bimmerbailey/logwarden/internal/output"
	"github.com/bimmerbailey/logwarden/internal/pipeline"
	"github.com/bimmerbailey/logwarden/internal/record"
)

var parseCmd = &cobra.Command{
	Use:   "parse [flags] [type=]<file>...",
	Short: "Parse log files into records",
	Long: `Parse log files with the configured log types and print the resulting
records, followed by the parse rate of every file.

Supports regex filtering, template id selection and time windows.

Examples:
  logwarden parse -t authlog /var/log/auth.log
  logwarden parse --grep "Failed|Invalid" -t authlog /var/log/auth.log
  logwarden parse --template T3 --format table -t authlog auth.log
  logwarden parse --count windowslog=events.json`,
	RunE: runParse,
}

func init() {
	parseFlags(parseCmd)
	rootCmd.AddCommand(parseCmd)
}

func parseFlags(cmd *cobra.Command) {
	addInputFlags(cmd)
	cmd.Flags().StringP("grep", "g", "", "regex matched against the raw line (or the message)")
	cmd.Flags().BoolP("invert", "V", false, "invert --grep (show non-matching records)")
	cmd.Flags().StringSlice("template", nil, "only records with these template ids")
	cmd.Flags().BoolP("count", "c", false, "only print the number of matching records")
	cmd.Flags().Bool("no-rates", false, "do not print parse rates")
}

func runParse(cmd *cobra.Command, args []string) error {
	pattern, _ := cmd.Flags().GetString("grep")
	invert, _ := cmd.Flags().GetBool("invert")
	templates, _ := cmd.Flags().GetStringSlice("template")
	countOnly, _ := cmd.Flags().GetBool("count")
	noRates, _ := cmd.Flags().GetBool("no-rates")

	if invert && pattern == "" {
		return fmt.Errorf("--invert requires --grep")
	}

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

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p := pipeline.New(cfg)
	batch, err := p.Parse(ctx, inputs)
	if err != nil {
		return err
	}

	records, err := analyzer.New(p.Parser().Registry().Templates()).Filter(batch.Records, analyzer.FilterOptions{
		Pattern:     pattern,
		TemplateIDs: templates,
		Since:       tr.Since,
		Until:       tr.Until,
		Invert:      invert,
	})
	if err != nil {
		return fmt.Errorf("invalid --grep pattern: %w", err)
	}

	format := output.ParseFormat(viper.GetString("format"))
	w := output.New(cmd.OutOrStdout(), format)

	if countOnly {
		if format == output.FormatJSON {
			return w.WriteJSON(map[string]int{"count": len(records)})
		}
		fmt.Fprintln(cmd.OutOrStdout(), len(records))
		return nil
	}

	if format == output.FormatJSON {
		if records == nil {
			records = []record.Record{}
		}
		return w.WriteJSON(struct {
			Records []record.Record       `json:"records"`
			Files   []pipeline.FileReport `json:"files"`
			Overall analyzer.Rate         `json:"overall"`
		}{records, batch.Files, analyzer.OverallRate(batch.Rates())})
	}

	if err := w.WriteRecords(records); err != nil {
		return err
	}
	if noRates {
		return nil
	}
	rw := output.New(cmd.ErrOrStderr(), format)
	for _, f := range batch.Files {
		if f.Error != "" {
			rw.Printf("skipped %s: %s\n", f.Path, f.Error)
		}
	}
	return rw.WriteRates(batch.Rates(), analyzer.OverallRate(batch.Rates()))
}
