package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimmerbailey/logwarden/internal/alert"
	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/config"
	"github.com/bimmerbailey/logwarden/internal/parser"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const syslogPrefix = `^(?P<timestamp>\w{3}\s+\d+\s+\d{2}:\d{2}:\d{2}) (?P<host>\S+) `

func testConfig() *config.Config {
	return &config.Config{
		Parsing: map[string]config.LogType{
			"authlog": {
				Format: config.FormatRegex,
				Patterns: []string{
					syslogPrefix + `sshd\[(?P<pid>\d+)\]: Failed password for (?P<user>\S+) from (?P<ip>\S+)`,
					syslogPrefix + `sshd\[(?P<pid>\d+)\]: Accepted password for (?P<user>\S+) from (?P<ip>\S+)`,
					syslogPrefix + `CRON\[(?P<pid>\d+)\]: (?P<message>.+)$`,
					syslogPrefix + `sudo: (?P<user>\S+) : (?P<message>.+)$`,
				},
			},
			"windowslog": {
				Format:      config.FormatJSON,
				KeysMapping: map[string]string{"event_id": "EventID", "user": "User", "computer": "Computer"},
			},
		},
		PointAnomalies: config.PointRules{TemplateRules: []string{"Failed password"}},
		Sequence:       config.SequenceConfig{N: 3, MinFrequency: 2},
	}
}

// authLines has 8 parseable lines and 2 malformed ones. Without the failed
// login the template sequence is T1 T2 T1 T2 T1 T2 T4, so the only rare
// 3-gram is (T1, T2, T4) at position 4.
var authLines = []string{
	"Jan  5 10:00:00 web1 sshd[100]: Accepted password for alice from 10.0.0.1 port 22",
	"Jan  5 10:00:01 web1 CRON[200]: pam_unix(cron:session): session opened for user root",
	"this line matches nothing",
	"Jan  5 10:00:02 web1 sshd[101]: Accepted password for alice from 10.0.0.1 port 22",
	"Jan  5 10:00:03 web1 CRON[201]: pam_unix(cron:session): session opened for user root",
	"Jan  5 10:00:04 web1 sshd[102]: Failed password for root from 203.0.113.9 port 22",
	"Jan  5 10:00:05 web1 sshd[103]: Accepted password for alice from 10.0.0.1 port 22",
	"",
	"Jan  5 10:00:06 web1 CRON[202]: pam_unix(cron:session): session opened for user root",
	"garbage garbage",
	"Jan  5 10:00:07 web1 sudo: alice : TTY=pts/0 ; COMMAND=/bin/cat /etc/shadow",
}

func writeFile(t *testing.T, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

type collector struct {
	mu       sync.Mutex
	findings []anomaly.Finding
}

func (c *collector) SendAlert(_ context.Context, f anomaly.Finding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findings = append(c.findings, f)
	return nil
}

func newPipeline(cfg *config.Config, sink alert.Sink, opts ...Option) *Pipeline {
	opts = append([]Option{WithSink(sink), WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(cfg, opts...)
}

func TestRunEndToEnd(t *testing.T) {
	path := writeFile(t, "auth.log", authLines)
	sink := &collector{}
	p := newPipeline(testConfig(), sink)

	rep, err := p.Run(context.Background(), []config.Input{{Path: path, LogType: "authlog"}})
	require.NoError(t, err)

	require.Len(t, rep.Files, 1)
	assert.Equal(t, 10, rep.Files[0].Lines)
	assert.Equal(t, 8, rep.Files[0].Parsed)
	assert.InDelta(t, 80.0, rep.Files[0].Percent, 1e-9)
	assert.Equal(t, 8, rep.Records)

	require.Len(t, sink.findings, 2)
	assert.Equal(t, rep.Findings, sink.findings)

	tmpl := sink.findings[0]
	assert.Equal(t, anomaly.RuleTemplate, tmpl.Rule)
	assert.Equal(t, anomaly.SeverityHigh, tmpl.Severity)
	assert.Equal(t, fixedNow, tmpl.Time)
	flagged := tmpl.Details.(anomaly.Flagged)
	assert.Equal(t, "Failed password", flagged.Rule)
	assert.Equal(t, "root", flagged.Record.Text("user"))

	ctx := sink.findings[1]
	assert.Equal(t, anomaly.RuleContextual, ctx.Rule)
	assert.Equal(t, anomaly.SeverityLow, ctx.Severity)
	details := ctx.Details.(anomaly.Contextual)
	assert.Equal(t, []string{"T1", "T2", "T4"}, details.NGram)
	assert.Equal(t, 4, details.Position)
	assert.Equal(t, path, details.Source)
	require.Len(t, details.Messages, 3)
	assert.Contains(t, details.Messages[0], "Accepted password")
	assert.Equal(t, "alice : TTY=pts/0 ; COMMAND=/bin/cat /etc/shadow", details.Messages[2])

	assert.Equal(t, map[string]int{anomaly.RuleTemplate: 1, anomaly.RuleContextual: 1}, rep.Counts)
}

func TestRunAttributeAnomalies(t *testing.T) {
	cfg := testConfig()
	cfg.PointAnomalies = config.PointRules{AttributeFields: []string{"PID"}}
	lines := []string{
		"Jan  5 10:00:00 web1 sshd[100]: Accepted password for a from 10.0.0.1",
		"Jan  5 10:00:01 web1 sshd[101]: Accepted password for b from 10.0.0.1",
		"Jan  5 10:00:02 web1 sshd[102]: Accepted password for c from 10.0.0.1",
		"Jan  5 10:00:03 web1 sshd[103]: Accepted password for d from 10.0.0.1",
		"Jan  5 10:00:04 web1 sshd[104]: Accepted password for e from 10.0.0.1",
		"Jan  5 10:00:05 web1 CRON[99999]: session opened",
	}
	sink := &collector{}
	p := newPipeline(cfg, sink)

	rep, err := p.Run(context.Background(), []config.Input{{Path: writeFile(t, "auth.log", lines), LogType: "authlog"}})
	require.NoError(t, err)

	require.Equal(t, 1, rep.Counts[anomaly.RuleAttribute])
	f := rep.Findings[0]
	assert.Equal(t, anomaly.SeverityMedium, f.Severity)
	flagged := f.Details.(anomaly.Flagged)
	assert.Equal(t, "PID", flagged.Field)
	assert.Equal(t, 99999.0, flagged.Value)
}

func TestRunSequenceKeepsUnflaggedRecordsOfFlaggedTemplate(t *testing.T) {
	cfg := testConfig()
	cfg.PointAnomalies = config.PointRules{AttributeFields: []string{"pid"}}
	// Templates: T1 T2 T1 T2 T1 T2 T3 T1 T2. Only the last CRON line is an
	// outlier; the other CRON lines stay in the sequence.
	lines := []string{
		"Jan  5 10:00:00 web1 sshd[100]: Accepted password for a from 10.0.0.1",
		"Jan  5 10:00:01 web1 CRON[104]: session opened",
		"Jan  5 10:00:02 web1 sshd[101]: Accepted password for b from 10.0.0.1",
		"Jan  5 10:00:03 web1 CRON[105]: session opened",
		"Jan  5 10:00:04 web1 sshd[102]: Accepted password for c from 10.0.0.1",
		"Jan  5 10:00:05 web1 CRON[106]: session opened",
		"Jan  5 10:00:06 web1 sudo: alice : COMMAND=/bin/ls",
		"Jan  5 10:00:07 web1 sshd[103]: Accepted password for d from 10.0.0.1",
		"Jan  5 10:00:08 web1 CRON[99999]: session opened",
	}
	sink := &collector{}
	p := newPipeline(cfg, sink)

	rep, err := p.Run(context.Background(), []config.Input{{Path: writeFile(t, "auth.log", lines), LogType: "authlog"}})
	require.NoError(t, err)

	require.Equal(t, 1, rep.Counts[anomaly.RuleAttribute])
	assert.Equal(t, 99999.0, rep.Findings[0].Details.(anomaly.Flagged).Value)

	var windows [][]string
	var positions []int
	for _, f := range rep.Findings {
		if f.Rule != anomaly.RuleContextual {
			continue
		}
		c := f.Details.(anomaly.Contextual)
		windows = append(windows, c.NGram)
		positions = append(positions, c.Position)
	}
	assert.Equal(t, [][]string{{"T1", "T2", "T3"}, {"T2", "T3", "T1"}}, windows)
	assert.Equal(t, []int{4, 5}, positions)
}

func TestRunFileFailuresAreNotFatal(t *testing.T) {
	good := writeFile(t, "auth.log", authLines)
	badJSON := writeFile(t, "events.json", []string{`[{"EventID": 4625,`})
	sink := &collector{}
	metrics := NewMetrics()
	p := newPipeline(testConfig(), sink, WithMetrics(metrics))

	rep, err := p.Run(context.Background(), []config.Input{
		{Path: badJSON, LogType: "windowslog"},
		{Path: good, LogType: "nosuchtype"},
		{Path: filepath.Join(t.TempDir(), "missing.log"), LogType: "authlog"},
		{Path: good, LogType: "authlog"},
	})
	require.NoError(t, err)
	require.Len(t, rep.Files, 4)

	assert.ErrorIs(t, rep.Files[0].Err, parser.ErrFormatViolation)
	assert.ErrorIs(t, rep.Files[1].Err, parser.ErrUnknownLogType)
	assert.Error(t, rep.Files[2].Err)
	assert.NoError(t, rep.Files[3].Err)
	assert.NotEmpty(t, rep.Files[0].Error)
	assert.Equal(t, 8, rep.Records)
	assert.Len(t, sink.findings, 2)

	out := filepath.Join(t.TempDir(), "logwarden.prom")
	require.NoError(t, metrics.WriteToTextfile(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `logwarden_records_parsed_total{log_type="authlog"} 8`)
	assert.Contains(t, text, `logwarden_lines_skipped_total{log_type="authlog"} 2`)
	assert.Contains(t, text, `logwarden_file_failures_total{reason="format_violation"} 1`)
	assert.Contains(t, text, `logwarden_file_failures_total{reason="unknown_log_type"} 1`)
	assert.Contains(t, text, `logwarden_file_failures_total{reason="io"} 1`)
	assert.Contains(t, text, `logwarden_findings_total{rule="Template Anomaly",severity="high"} 1`)
	assert.Contains(t, text, "logwarden_runs_total 1")
}

func TestRunTimeRange(t *testing.T) {
	path := writeFile(t, "auth.log", authLines)
	since := time.Date(2026, 1, 5, 10, 0, 5, 0, time.UTC)
	p := newPipeline(testConfig(), alert.Discard, WithTimeRange(config.TimeRange{Since: since}))

	rep, err := p.Run(context.Background(), []config.Input{{Path: path, LogType: "authlog"}})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Records)
	assert.Equal(t, 5, rep.OutOfRange)
	assert.Empty(t, rep.Findings)
}

func TestRunIsDeterministic(t *testing.T) {
	path := writeFile(t, "auth.log", authLines)
	inputs := []config.Input{{Path: path, LogType: "authlog"}}

	first, err := newPipeline(testConfig(), alert.Discard).Run(context.Background(), inputs)
	require.NoError(t, err)
	second, err := newPipeline(testConfig(), alert.Discard).Run(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, first.Findings, second.Findings)
}

func TestRunCancelled(t *testing.T) {
	path := writeFile(t, "auth.log", authLines)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := newPipeline(testConfig(), alert.Discard).Run(ctx, []config.Input{{Path: path, LogType: "authlog"}})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, rep)
	assert.Empty(t, rep.Findings)
}

func TestRunSinkThroughManager(t *testing.T) {
	path := writeFile(t, "auth.log", authLines)
	sink := &collector{}
	m := alert.NewManager(alert.WithChannel("test", sink), alert.WithSeverities(anomaly.SeverityHigh))

	rep, err := newPipeline(testConfig(), m).Run(context.Background(), []config.Input{{Path: path, LogType: "authlog"}})
	require.NoError(t, err)
	assert.Len(t, rep.Findings, 2)
	require.Len(t, sink.findings, 1)
	assert.Equal(t, anomaly.RuleTemplate, sink.findings[0].Rule)
}

func TestParseBatchUnmatched(t *testing.T) {
	path := writeFile(t, "auth.log", authLines)
	b, err := newPipeline(testConfig(), alert.Discard).Parse(context.Background(), []config.Input{{Path: path, LogType: "authlog"}})
	require.NoError(t, err)
	assert.Len(t, b.Records, 8)
	assert.Equal(t, []string{"this line matches nothing", "garbage garbage"}, b.Unmatched())
	assert.Len(t, b.Rates(), 1)
}

func TestMetricsDocumentation(t *testing.T) {
	doc := NewMetrics().Documentation()
	assert.Contains(t, doc, "logwarden_records_parsed_total")
	assert.Contains(t, doc, "histogram")
}

func TestWatchRerunsOnChange(t *testing.T) {
	path := writeFile(t, "auth.log", authLines[:2])
	p := newPipeline(testConfig(), alert.Discard)

	reports := make(chan *Report, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, []config.Input{{Path: path, LogType: "authlog"}}, WatchOptions{
			Debounce: 20 * time.Millisecond,
			OnRun: func(r *Report, err error) {
				if err == nil {
					reports <- r
				}
			},
		})
	}()

	select {
	case r := <-reports:
		assert.Equal(t, 2, r.Records)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial run")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(authLines[3] + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case r := <-reports:
		assert.Equal(t, 3, r.Records)
	case <-time.After(5 * time.Second):
		t.Fatal("no re-run after write")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop")
	}
}
