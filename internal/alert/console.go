package alert

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/output"
)

// Console prints findings as a short block of text:
//
//	ALERT [HIGH]
//	Time: 2026-03-01 10:00:00
//	Rule: Template Anomaly
//	Details: {...}
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewConsole returns a console sink writing to w. Colour follows mode; auto
// colours only when w is a terminal.
func NewConsole(w io.Writer, mode output.ColorMode) *Console {
	return &Console{w: w, color: output.ShouldColorize(mode, w)}
}

// SendAlert writes f.
func (c *Console) SendAlert(_ context.Context, f anomaly.Finding) error {
	header := fmt.Sprintf("ALERT [%s]", strings.ToUpper(string(f.Severity)))
	if c.color {
		header = output.ColorizeSeverity(f.Severity, header)
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Time: %s\n", f.Time.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Rule: %s\n", f.Rule)
	fmt.Fprintf(&b, "Details: %s\n\n", f.DetailsText())

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.w, b.String()); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}
