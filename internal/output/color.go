package output

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
)

// severityStyle is the escape sequence printed before each severity.
var severityStyle = map[anomaly.Severity]string{
	anomaly.SeverityHigh:   ansiBold + "\033[31m", // bold red
	anomaly.SeverityMedium: "\033[33m",            // yellow
	anomaly.SeverityLow:    "\033[36m",            // cyan
}

// ColorMode is the console.color setting.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // colour when writing to a terminal
	ColorAlways                  // colour even when piped
	ColorNever
)

// ParseColorMode converts "auto", "always" or "never" to a ColorMode,
// defaulting to auto.
func ParseColorMode(s string) ColorMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always":
		return ColorAlways
	case "never":
		return ColorNever
	default:
		return ColorAuto
	}
}

// ShouldColorize reports whether output to w gets ANSI colours. In auto mode
// that means w is a terminal and NO_COLOR is unset.
func ShouldColorize(mode ColorMode, w io.Writer) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorAuto:
		if _, set := os.LookupEnv("NO_COLOR"); set {
			return false
		}
		f, ok := w.(*os.File)
		return ok && term.IsTerminal(int(f.Fd()))
	default:
		return false
	}
}

// ColorizeSeverity wraps text in the colour for sev. Unknown severities are
// returned unchanged.
func ColorizeSeverity(sev anomaly.Severity, text string) string {
	style, ok := severityStyle[sev]
	if !ok {
		return text
	}
	return style + text + ansiReset
}
