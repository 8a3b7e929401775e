package prompt

import (
	"fmt"
	"strings"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/llm/ollama"
)

// Build constructs the system and user messages for pt.
//
// Returns ErrMissingField if opts.Finding has no rule.
func Build(pt PromptType, opts BuildOptions) ([]ollama.Message, error) {
	if opts.Finding.Rule == "" {
		return nil, missingField("Finding.Rule")
	}

	var sb strings.Builder
	switch pt {
	case TypeRemediate:
		sb.WriteString("Suggest next steps for the following finding:\n\n")
	default:
		sb.WriteString("Explain the following finding:\n\n")
	}
	appendFinding(&sb, opts.Finding)
	appendRunContext(&sb, opts)

	return []ollama.Message{
		{Role: "system", Content: systemPrompt(pt)},
		{Role: "user", Content: sb.String()},
	}, nil
}

func appendFinding(sb *strings.Builder, f anomaly.Finding) {
	fmt.Fprintf(sb, "Rule: %s\n", f.Rule)
	fmt.Fprintf(sb, "Severity: %s\n", strings.ToUpper(string(f.Severity)))
	if src := f.Source(); src != "" {
		fmt.Fprintf(sb, "Source file: %s\n", src)
	}

	switch d := f.Details.(type) {
	case anomaly.Flagged:
		if d.Rule != "" {
			fmt.Fprintf(sb, "Matched rule: %s\n", d.Rule)
		}
		if d.Field != "" {
			fmt.Fprintf(sb, "Outlier: %s = %v\n", d.Field, d.Value)
		}
		fmt.Fprintf(sb, "Message: %s\n", d.Record.Message)
		if d.Record.Raw != "" && d.Record.Raw != d.Record.Message {
			fmt.Fprintf(sb, "Raw line: %s\n", d.Record.Raw)
		}
	case anomaly.Contextual:
		fmt.Fprintf(sb, "Template sequence: %s (starting at position %d)\n", strings.Join(d.NGram, " -> "), d.Position)
		sb.WriteString("Messages:\n")
		for _, m := range d.Messages {
			fmt.Fprintf(sb, "  - %s\n", m)
		}
	default:
		fmt.Fprintf(sb, "Details: %s\n", f.DetailsText())
	}
	sb.WriteString("\n")
}

func appendRunContext(sb *strings.Builder, opts BuildOptions) {
	var notes []string
	if opts.TimeRange != "" {
		notes = append(notes, fmt.Sprintf("Time range: %s", opts.TimeRange))
	}
	if len(opts.Files) == 1 {
		notes = append(notes, fmt.Sprintf("Input file: %s", opts.Files[0]))
	} else if len(opts.Files) > 1 {
		notes = append(notes, fmt.Sprintf("Input files (%d): %s", len(opts.Files), strings.Join(opts.Files, ", ")))
	}
	if len(notes) > 0 {
		sb.WriteString("Note: ")
		sb.WriteString(strings.Join(notes, "; "))
		sb.WriteString(".\n")
	}
}
