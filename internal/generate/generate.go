// Package generate writes synthetic log files for trying out the detectors.
// Output is deterministic for a given seed: the same options always produce
// the same bytes.
package generate

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/bimmerbailey/logwarden/internal/config"
)

// Kind selects the generated file layout.
type Kind string

const (
	KindSyslog    Kind = "syslog"
	KindJSON      Kind = "json"
	KindJSONArray Kind = "json-array"
	KindCSV       Kind = "csv"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindSyslog, KindJSON, KindJSONArray, KindCSV}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q (must be syslog, json, json-array or csv)", s)
}

// Extension returns the usual file extension for k.
func (k Kind) Extension() string {
	switch k {
	case KindJSON, KindJSONArray:
		return ".json"
	case KindCSV:
		return ".csv"
	default:
		return ".log"
	}
}

// Options controls a Generator.
type Options struct {
	Kind  Kind
	Count int
	Seed  uint64
	// Start is the first record's time; zero means 2026-01-01 00:00 UTC.
	Start time.Time
	// Interval separates consecutive records; zero means 10s.
	Interval time.Duration
	// AnomalyRate and MalformedRate are probabilities in [0, 1].
	AnomalyRate   float64
	MalformedRate float64
}

// Summary counts what Write produced.
type Summary struct {
	Kind      Kind `json:"kind"`
	Records   int  `json:"records"`
	Anomalies int  `json:"anomalies"`
	Malformed int  `json:"malformed"`
}

// Generator produces synthetic log content.
type Generator struct {
	opts      Options
	faker     *gofakeit.Faker
	users     []string
	ips       []string
	hosts     []string
	computers []string
	summary   Summary
}

// New creates a Generator. The faker is seeded from opts.Seed.
func New(opts Options) *Generator {
	if opts.Kind == "" {
		opts.Kind = KindSyslog
	}
	if opts.Start.IsZero() {
		opts.Start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	faker := gofakeit.New(opts.Seed)
	g := &Generator{opts: opts, faker: faker, summary: Summary{Kind: opts.Kind}}
	for i := 0; i < 5; i++ {
		g.users = append(g.users, strings.ToLower(faker.Username()))
		g.ips = append(g.ips, faker.IPv4Address())
		g.computers = append(g.computers, fmt.Sprintf("WS-%03d", faker.Number(1, 999)))
	}
	g.hosts = []string{"web1", "web2", "db1"}
	return g
}

// Write writes opts.Count records to w.
func (g *Generator) Write(w io.Writer) (Summary, error) {
	var err error
	switch g.opts.Kind {
	case KindSyslog:
		err = g.writeSyslog(w)
	case KindJSON:
		err = g.writeJSONLines(w)
	case KindJSONArray:
		err = g.writeJSONArray(w)
	case KindCSV:
		err = g.writeCSV(w)
	default:
		err = fmt.Errorf("unknown kind %q", g.opts.Kind)
	}
	return g.summary, err
}

func (g *Generator) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	return float64(g.faker.Number(0, 9999)) < p*10000
}

func (g *Generator) at(i int) time.Time {
	return g.opts.Start.Add(time.Duration(i) * g.opts.Interval)
}

func (g *Generator) pick(from []string) string {
	return g.faker.RandomString(from)
}

// malformed returns a line that no configured template matches.
func (g *Generator) malformed() string {
	g.summary.Malformed++
	return fmt.Sprintf("-- %s %s --", g.faker.UUID(), g.pick([]string{"truncated", "garbled", "???"}))
}

func (g *Generator) writeSyslog(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < g.opts.Count; i++ {
		var line string
		if g.chance(g.opts.MalformedRate) {
			line = g.malformed()
		} else {
			line = g.syslogLine(i)
			g.summary.Records++
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (g *Generator) syslogLine(i int) string {
	ts := g.at(i).Format(time.Stamp)
	host := g.pick(g.hosts)
	pid := g.faker.Number(1000, 5000)
	user := g.pick(g.users)
	ip := g.pick(g.ips)

	if g.chance(g.opts.AnomalyRate) {
		g.summary.Anomalies++
		switch g.faker.Number(0, 2) {
		case 0:
			return fmt.Sprintf("%s %s sshd[%d]: Failed password for root from %s port %d ssh2",
				ts, host, pid, g.faker.IPv4Address(), g.faker.Number(30000, 60000))
		case 1:
			return fmt.Sprintf("%s %s kernel: Out of memory: Killed process %d (%s)",
				ts, host, pid, g.pick([]string{"java", "postgres", "node"}))
		default:
			return fmt.Sprintf("%s %s CRON[%d]: pam_unix(cron:session): session opened for user %s",
				ts, host, g.faker.Number(900000, 999999), user)
		}
	}

	// Regular traffic cycles through login, cron open, cron close and sudo.
	switch i % 4 {
	case 0:
		return fmt.Sprintf("%s %s sshd[%d]: Accepted password for %s from %s port %d ssh2",
			ts, host, pid, user, ip, g.faker.Number(30000, 60000))
	case 1:
		return fmt.Sprintf("%s %s CRON[%d]: pam_unix(cron:session): session opened for user %s", ts, host, pid, user)
	case 2:
		return fmt.Sprintf("%s %s CRON[%d]: pam_unix(cron:session): session closed for user %s", ts, host, pid, user)
	default:
		return fmt.Sprintf("%s %s sudo: %s : TTY=pts/%d ; PWD=/home/%s ; USER=root ; COMMAND=%s",
			ts, host, user, g.faker.Number(0, 3), user,
			g.pick([]string{"/usr/bin/systemctl status nginx", "/usr/bin/apt update", "/bin/journalctl -n 50"}))
	}
}

type windowsEvent struct {
	EventID     int    `json:"EventID"`
	TimeCreated string `json:"TimeCreated"`
	User        string `json:"User"`
	Computer    string `json:"Computer"`
	IPAddress   string `json:"IpAddress"`
	ProcessID   int    `json:"ProcessId"`
}

var regularEvents = []int{4624, 4672, 4634}

func (g *Generator) windowsEvent(i int) windowsEvent {
	ev := windowsEvent{
		EventID:     regularEvents[i%len(regularEvents)],
		TimeCreated: g.at(i).Format(time.RFC3339),
		User:        g.pick(g.users),
		Computer:    g.pick(g.computers),
		IPAddress:   g.pick(g.ips),
		ProcessID:   g.faker.Number(400, 9000),
	}
	if g.chance(g.opts.AnomalyRate) {
		g.summary.Anomalies++
		switch g.faker.Number(0, 2) {
		case 0:
			ev.EventID = 4625
			ev.User = "Administrator"
			ev.IPAddress = g.faker.IPv4Address()
		case 1:
			ev.EventID = 1102
		default:
			ev.ProcessID = g.faker.Number(3000000, 4000000)
		}
	}
	return ev
}

func (g *Generator) writeJSONLines(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < g.opts.Count; i++ {
		var line string
		if g.chance(g.opts.MalformedRate) {
			line = g.malformed()
		} else {
			b, err := json.Marshal(g.windowsEvent(i))
			if err != nil {
				return err
			}
			line = string(b)
			g.summary.Records++
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// writeJSONArray writes one array. Malformed entries become bare strings,
// which the parser skips as non-object elements.
func (g *Generator) writeJSONArray(w io.Writer) error {
	items := make([]any, 0, g.opts.Count)
	for i := 0; i < g.opts.Count; i++ {
		if g.chance(g.opts.MalformedRate) {
			items = append(items, g.malformed())
			continue
		}
		items = append(items, g.windowsEvent(i))
		g.summary.Records++
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

var csvHeader = []string{"timestamp", "event_id", "user", "computer", "bytes", "duration_ms", "note"}

// writeCSV writes a header and one row per record. Malformed rows carry
// only the unmapped note column, which the parser counts as unmatched.
func (g *Generator) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i := 0; i < g.opts.Count; i++ {
		if g.chance(g.opts.MalformedRate) {
			g.summary.Malformed++
			row := make([]string, len(csvHeader))
			row[len(row)-1] = g.pick([]string{"truncated", "garbled"})
			if err := cw.Write(row); err != nil {
				return err
			}
			continue
		}
		ev := g.windowsEvent(i)
		bytes := g.faker.Number(200, 20000)
		duration := g.faker.Price(5, 250)
		if ev.ProcessID > 1000000 {
			bytes = ev.ProcessID * 10
		}
		row := []string{
			g.at(i).Format(time.DateTime),
			strconv.Itoa(ev.EventID),
			ev.User,
			ev.Computer,
			strconv.Itoa(bytes),
			strconv.FormatFloat(duration, 'f', 2, 64),
			"",
		}
		if err := cw.Write(row); err != nil {
			return err
		}
		g.summary.Records++
	}
	cw.Flush()
	return cw.Error()
}

// LogType returns the log type name and parsing rules that read what k
// generates.
func (k Kind) LogType() (string, config.LogType) {
	switch k {
	case KindJSON, KindJSONArray:
		return "windowslog", config.LogType{
			Format: config.FormatJSON,
			KeysMapping: map[string]string{
				"event_id":   "EventID",
				"timestamp":  "TimeCreated",
				"user":       "User",
				"computer":   "Computer",
				"ip":         "IpAddress",
				"process_id": "ProcessId",
			},
		}
	case KindCSV:
		return "events_csv", config.LogType{
			Format:    config.FormatCSV,
			Delimiter: ",",
			KeysMapping: map[string]string{
				"timestamp":   "timestamp",
				"event_id":    "event_id",
				"user":        "user",
				"computer":    "computer",
				"bytes":       "bytes",
				"duration_ms": "duration_ms",
			},
		}
	default:
		const prefix = `^(?P<timestamp>\w{3}\s+\d+ \d{2}:\d{2}:\d{2}) (?P<host>\S+) `
		return "authlog", config.LogType{
			Format: config.FormatRegex,
			Patterns: []string{
				prefix + `sshd\[(?P<pid>\d+)\]: Accepted password for (?P<user>\S+) from (?P<ip>\S+) port (?P<port>\d+)`,
				prefix + `sshd\[(?P<pid>\d+)\]: Failed password for (?P<user>\S+) from (?P<ip>\S+) port (?P<port>\d+)`,
				prefix + `CRON\[(?P<pid>\d+)\]: pam_unix\(cron:session\): session (?P<action>opened|closed) for user (?P<user>\S+)`,
				prefix + `sudo: (?P<user>\S+) : TTY=(?P<tty>\S+) ; PWD=(?P<pwd>\S+) ; USER=(?P<target>\S+) ; COMMAND=(?P<command>.+)$`,
				prefix + `kernel: Out of memory: Killed process (?P<pid>\d+) \((?P<process>[^)]+)\)`,
			},
		}
	}
}

// PointRules returns detector rules that catch the anomalies k injects.
func (k Kind) PointRules() config.PointRules {
	switch k {
	case KindJSON, KindJSONArray:
		return config.PointRules{
			TemplateRules:   []string{"Event 4625", "Event 1102"},
			AttributeFields: []string{"process_id"},
		}
	case KindCSV:
		return config.PointRules{
			TemplateRules:   []string{"Event 4625", "Event 1102"},
			AttributeFields: []string{"bytes"},
		}
	default:
		return config.PointRules{
			TemplateRules:   []string{"Failed password for root", "Out of memory"},
			AttributeFields: []string{"pid"},
		}
	}
}

// SampleConfig returns a configuration that analyzes files of kind k.
func SampleConfig(k Kind) config.Config {
	name, lt := k.LogType()
	return config.Config{
		Parsing:        map[string]config.LogType{name: lt},
		PointAnomalies: k.PointRules(),
		Sequence:       config.SequenceConfig{N: 3, MinFrequency: 2},
	}
}
