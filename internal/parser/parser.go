// Package parser turns raw log lines, JSON documents and CSV tables into
// structured records.
//
// Each log type is configured with one of three formats: an ordered list of
// regular expressions (first match wins, named groups become fields), a JSON
// key mapping, or a CSV column mapping. Regex matches are assigned stable
// template ids ("T1", "T2", ...) through a Registry owned by the Parser;
// JSON and CSV records get "E<event_id>" ids instead.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/bimmerbailey/logwarden/internal/config"
	"github.com/bimmerbailey/logwarden/internal/record"
	"github.com/valyala/fastjson"
)

// ErrFormatViolation marks a file whose overall structure is broken, such as
// a malformed JSON array. Only that file is abandoned.
var ErrFormatViolation = errors.New("format violation")

// ErrUnknownLogType is returned for a file whose log type has no parsing
// rules. Callers treat it as a configuration gap, not a failure.
var ErrUnknownLogType = errors.New("unknown log type")

const maxLineSize = 1024 * 1024

// Parser reads and parses log files into structured records.
type Parser struct {
	types            map[string]*logType
	registry         *Registry
	logger           *slog.Logger
	now              func() time.Time
	timestampFormats []string
	json             fastjson.ParserPool
}

type logType struct {
	name      string
	cfg       config.LogType
	patterns  []pattern
	timestamp config.TimestampConvention
	message   config.MessageStyle
}

type pattern struct {
	text string
	re   *regexp.Regexp
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for skip diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the clock used to fill in the year of syslog
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithTimestampFormats adds Go time layouts tried after the ISO layouts.
func WithTimestampFormats(layouts []string) Option {
	return func(p *Parser) {
		p.timestampFormats = append(p.timestampFormats, layouts...)
	}
}

// FileResult is the outcome of parsing one file.
type FileResult struct {
	Path    string
	LogType string
	Records []record.Record
	// Lines counts the non-blank units considered: lines, CSV data rows or
	// JSON array elements.
	Lines   int
	Skipped int
	// Unmatched keeps up to MaxUnmatchedSamples skipped lines, in order.
	Unmatched []string
}

// MaxUnmatchedSamples caps FileResult.Unmatched.
const MaxUnmatchedSamples = 1000

func (res *FileResult) skip(line string) {
	res.Skipped++
	if len(res.Unmatched) < MaxUnmatchedSamples {
		res.Unmatched = append(res.Unmatched, line)
	}
}

// New creates a Parser for the given log types. Template ids are drawn from
// reg; a nil reg gets a fresh Registry. Invalid patterns are logged and
// skipped.
func New(types map[string]config.LogType, reg *Registry, opts ...Option) *Parser {
	if reg == nil {
		reg = NewRegistry()
	}
	p := &Parser{
		types:    make(map[string]*logType, len(types)),
		registry: reg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	for name, cfg := range types {
		lt := &logType{
			name:      name,
			cfg:       cfg,
			timestamp: cfg.TimestampFor(name),
			message:   cfg.MessageFor(name),
		}
		for _, text := range cfg.Patterns {
			re, err := regexp.Compile(text)
			if err != nil {
				p.logger.Warn("skipping invalid pattern", "log_type", name, "pattern", text, "error", err)
				continue
			}
			lt.patterns = append(lt.patterns, pattern{text: text, re: re})
		}
		p.types[strings.ToLower(name)] = lt
	}

	return p
}

// Registry returns the template registry shared by every parse call.
func (p *Parser) Registry() *Registry {
	return p.registry
}

func (p *Parser) logType(name string) (*logType, bool) {
	lt, ok := p.types[strings.ToLower(name)]
	if !ok {
		p.logger.Debug("unknown log type", "log_type", name)
	}
	return lt, ok
}

// ParseLine parses a single line. The boolean is false when the line is
// skipped: no pattern matched, the JSON did not decode, or the log type is
// unknown. CSV needs a header and is only parsed per file.
func (p *Parser) ParseLine(line, logTypeName, path string) (record.Record, bool) {
	lt, ok := p.logType(logTypeName)
	if !ok {
		return record.Record{}, false
	}
	return p.parseLine(lt, line, path, 0)
}

func (p *Parser) parseLine(lt *logType, line, path string, lineNum int) (record.Record, bool) {
	trimmed := strings.TrimSpace(line)

	switch lt.cfg.Format {
	case config.FormatRegex:
		return p.parseRegexLine(lt, trimmed, path, lineNum)
	case config.FormatJSON:
		return p.parseJSONLine(lt, trimmed, path, lineNum)
	default:
		return record.Record{}, false
	}
}

func (p *Parser) parseRegexLine(lt *logType, line, path string, lineNum int) (record.Record, bool) {
	for _, pat := range lt.patterns {
		loc := pat.re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}

		rec := record.Record{
			TemplateID: p.registry.ID(pat.text),
			Source:     path,
			Raw:        line,
			Line:       lineNum,
			Fields:     make(map[string]record.Value),
		}

		var message string
		for i, name := range pat.re.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			v := record.Null()
			if start, end := loc[2*i], loc[2*i+1]; start >= 0 {
				v = record.String(line[start:end])
			}
			switch name {
			case record.FieldMessage:
				message = v.String()
			case record.FieldTimestamp:
				rec.Timestamp = p.NormalizeTimestamp(v, lt.timestamp)
			default:
				rec.Fields[name] = v
			}
		}

		rec.Message = message
		if rec.Message == "" {
			rec.Message = line
		}
		rec.Message = SynthesizeMessage(rec, lt.message, path)
		return rec, true
	}
	return record.Record{}, false
}

// ParseFile opens a file and parses all records from it. Files ending in
// .gz or .zst are decompressed on the fly. A log type without parsing rules
// yields no records and no error.
func (p *Parser) ParseFile(path, logTypeName string) ([]record.Record, error) {
	res, err := p.ParseFileResult(path, logTypeName)
	if errors.Is(err, ErrUnknownLogType) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// ParseFileResult is ParseFile with line accounting. Unlike ParseFile it
// reports ErrUnknownLogType.
func (p *Parser) ParseFileResult(path, logTypeName string) (FileResult, error) {
	if _, ok := p.logType(logTypeName); !ok {
		p.logger.Warn("no parsing rules for log type, file ignored", "log_type", logTypeName, "path", path)
		return FileResult{Path: path, LogType: logTypeName}, fmt.Errorf("%s: %w %q", path, ErrUnknownLogType, logTypeName)
	}
	rc, err := OpenInput(path)
	if err != nil {
		return FileResult{Path: path, LogType: logTypeName}, err
	}
	defer rc.Close()

	return p.ParseReader(rc, path, logTypeName)
}

// ParseReader parses everything readable from r. path is only recorded as
// the records' source.
func (p *Parser) ParseReader(r io.Reader, path, logTypeName string) (FileResult, error) {
	res := FileResult{Path: path, LogType: logTypeName}

	lt, ok := p.logType(logTypeName)
	if !ok {
		return res, fmt.Errorf("%w %q", ErrUnknownLogType, logTypeName)
	}

	var err error
	switch lt.cfg.Format {
	case config.FormatCSV:
		err = p.parseCSV(lt, r, &res)
	case config.FormatJSON:
		err = p.parseJSONFile(lt, r, &res)
	default:
		err = p.parseLines(lt, r, &res)
	}
	if err != nil {
		return FileResult{Path: path, LogType: logTypeName}, fmt.Errorf("parse %s: %w", path, err)
	}

	p.logger.Debug("parsed file", "path", path, "log_type", logTypeName,
		"records", len(res.Records), "skipped", res.Skipped)
	return res, nil
}

func (p *Parser) parseLines(lt *logType, r io.Reader, res *FileResult) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		p.collectLine(lt, scanner.Text(), lineNum, res)
	}
	return scanner.Err()
}

func (p *Parser) collectLine(lt *logType, line string, lineNum int, res *FileResult) {
	if strings.TrimSpace(line) == "" {
		return
	}
	res.Lines++
	rec, ok := p.parseLine(lt, line, res.Path, lineNum)
	if !ok {
		res.skip(line)
		p.logger.Debug("skipping unparsable line", "path", res.Path, "line", lineNum)
		return
	}
	res.Records = append(res.Records, rec)
}

// buildMapped finishes a record from key-mapped fields (JSON and CSV).
func (p *Parser) buildMapped(lt *logType, fields map[string]record.Value, path, raw string, lineNum int) record.Record {
	rec := record.Record{
		Source: path,
		Raw:    raw,
		Line:   lineNum,
		Fields: fields,
	}
	if v, ok := fields[record.FieldMessage]; ok {
		delete(fields, record.FieldMessage)
		if !v.IsNull() {
			rec.Message = v.String()
		}
	}
	if v, ok := fields[record.FieldTimestamp]; ok {
		delete(fields, record.FieldTimestamp)
		rec.Timestamp = p.NormalizeTimestamp(v, lt.timestamp)
	}
	rec.TemplateID = eventTemplateID(fields)
	rec.Message = SynthesizeMessage(rec, lt.message, path)
	return rec
}
