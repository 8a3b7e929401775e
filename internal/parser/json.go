package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/bimmerbailey/logwarden/internal/record"
	"github.com/valyala/fastjson"
)

func (p *Parser) parseJSONLine(lt *logType, line, path string, lineNum int) (record.Record, bool) {
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		return record.Record{}, false
	}

	jp := p.json.Get()
	defer p.json.Put(jp)

	v, err := jp.Parse(line)
	if err != nil {
		p.logger.Debug("invalid json line", "path", path, "line", lineNum, "error", err)
		return record.Record{}, false
	}
	obj, err := v.Object()
	if err != nil {
		return record.Record{}, false
	}
	return p.buildMapped(lt, mapObject(obj, lt.cfg.KeysMapping), path, line, lineNum), true
}

// parseJSONFile reads a whole JSON array when the content starts with '['
// and falls back to one object per line otherwise.
func (p *Parser) parseJSONFile(lt *logType, r io.Reader, res *FileResult) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("[")) {
		return p.parseLines(lt, bytes.NewReader(data), res)
	}

	jp := p.json.Get()
	defer p.json.Put(jp)

	v, err := jp.ParseBytes(trimmed)
	if err != nil {
		return fmt.Errorf("%w: malformed json array: %v", ErrFormatViolation, err)
	}
	items, err := v.Array()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFormatViolation, err)
	}

	for i, item := range items {
		res.Lines++
		obj, err := item.Object()
		if err != nil {
			res.skip(item.String())
			p.logger.Debug("skipping non-object array element", "path", res.Path, "index", i)
			continue
		}
		rec := p.buildMapped(lt, mapObject(obj, lt.cfg.KeysMapping), res.Path, item.String(), i+1)
		res.Records = append(res.Records, rec)
	}
	return nil
}

// mapObject resolves every mapped field against obj: an exact key first,
// then the first key that matches case-insensitively in document order.
// Unresolved fields are null. An empty mapping keeps every top-level key.
func mapObject(obj *fastjson.Object, mapping map[string]string) map[string]record.Value {
	if len(mapping) == 0 {
		fields := make(map[string]record.Value, obj.Len())
		obj.Visit(func(key []byte, v *fastjson.Value) {
			name := string(key)
			if _, seen := fields[name]; !seen {
				fields[name] = jsonValue(v)
			}
		})
		return fields
	}

	fields := make(map[string]record.Value, len(mapping))
	for field, key := range mapping {
		fields[field] = record.Null()
		if v := obj.Get(key); v != nil {
			fields[field] = jsonValue(v)
			continue
		}
		found := false
		obj.Visit(func(k []byte, v *fastjson.Value) {
			if !found && strings.EqualFold(string(k), key) {
				fields[field] = jsonValue(v)
				found = true
			}
		})
	}
	return fields
}

func jsonValue(v *fastjson.Value) record.Value {
	switch v.Type() {
	case fastjson.TypeNull:
		return record.Null()
	case fastjson.TypeString:
		return record.String(string(v.GetStringBytes()))
	case fastjson.TypeNumber:
		return record.Number(v.GetFloat64())
	case fastjson.TypeTrue:
		return record.String("true")
	case fastjson.TypeFalse:
		return record.String("false")
	default:
		return record.String(v.String())
	}
}
