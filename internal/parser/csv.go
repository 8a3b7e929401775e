package parser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/bimmerbailey/logwarden/internal/record"
)

const utf8BOM = "\ufeff"

func (p *Parser) parseCSV(lt *logType, r io.Reader, res *FileResult) error {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && string(bom) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.Comma = lt.cfg.CSVDelimiter()
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Lines++
				res.Skipped++
				p.logger.Debug("skipping malformed csv row", "path", res.Path, "line", perr.Line, "error", perr.Err)
				continue
			}
			return err
		}
		if blankRow(row) {
			continue
		}
		res.Lines++
		line, _ := cr.FieldPos(0)

		fields := mapRow(row, columns, lt.cfg.KeysMapping)
		if allNull(fields) {
			res.skip(strings.Join(row, string(cr.Comma)))
			continue
		}
		res.Records = append(res.Records, p.buildMapped(lt, fields, res.Path, strings.Join(row, string(cr.Comma)), line))
	}
}

// mapRow resolves mapped fields against the normalized header. An empty
// mapping keeps every column under its normalized name. Cells are trimmed and
// empty cells are null.
func mapRow(row []string, columns map[string]int, mapping map[string]string) map[string]record.Value {
	cell := func(i int) record.Value {
		if i < 0 || i >= len(row) {
			return record.Null()
		}
		v := strings.TrimSpace(row[i])
		if v == "" {
			return record.Null()
		}
		return record.String(v)
	}

	if len(mapping) == 0 {
		fields := make(map[string]record.Value, len(columns))
		for name, i := range columns {
			fields[name] = cell(i)
		}
		return fields
	}

	fields := make(map[string]record.Value, len(mapping))
	for field, column := range mapping {
		i, ok := columns[strings.ToLower(strings.TrimSpace(column))]
		if !ok {
			i = -1
		}
		fields[field] = cell(i)
	}
	return fields
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func allNull(fields map[string]record.Value) bool {
	for _, v := range fields {
		if !v.IsNull() {
			return false
		}
	}
	return true
}
