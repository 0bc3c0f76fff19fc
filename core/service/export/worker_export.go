// Package export projects stored parse results into CSV columns selected by
// JSON paths such as "ai_extract_crm.extracted_data.email[*]".
package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// DefaultJoinSep joins multiple values in one cell.
const DefaultJoinSep = " | "

// utf8BOM lets spreadsheet tools detect UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Column is one output column.
type Column struct {
	Header string
	Path   string
}

// DefaultColumns is used when no column file is given.
var DefaultColumns = []Column{
	{"from", "meta.from"},
	{"subject", "meta.subject"},
	{"date", "meta.date"},
	{"method", "ai_extract_crm.extracted_by"},
	{"first_name", "ai_extract_crm.extracted_data.first_name"},
	{"last_name", "ai_extract_crm.extracted_data.last_name"},
	{"email", "ai_extract_crm.extracted_data.email[*]"},
	{"phone", "ai_extract_crm.extracted_data.customer_phone"},
	{"company", "ai_extract_crm.extracted_data.company[*]"},
	{"website", "ai_extract_crm.extracted_data.website[*]"},
	{"tags", "ai_extract_crm.extracted_data.tags[*]"},
	{"intent", "ai_predict_intention.intent"},
	{"web_summary", "ai_web.summary[*]"},
}

// =============================================================================
// Column configuration
// =============================================================================

// ParseColumns reads a YAML mapping of header to path, or a list of paths
// used as their own headers. Mapping order is kept.
func ParseColumns(data []byte) ([]Column, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("columns: empty document")
	}

	node := root.Content[0]
	var cols []Column
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			cols = append(cols, Column{Header: node.Content[i].Value, Path: node.Content[i+1].Value})
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			cols = append(cols, Column{Header: item.Value, Path: item.Value})
		}
	default:
		return nil, fmt.Errorf("columns: expected mapping or list")
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("columns: no columns defined")
	}
	return cols, nil
}

// LoadColumns reads ParseColumns input from path.
func LoadColumns(path string) ([]Column, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	return ParseColumns(data)
}

// =============================================================================
// Path evaluation
// =============================================================================

type segment struct {
	key   string
	index string // "", "*" or a number
}

func tokenize(path string) []segment {
	var segs []segment
	for _, raw := range strings.Split(path, ".") {
		seg := segment{key: raw}
		if open := strings.Index(raw, "["); open >= 0 && strings.HasSuffix(raw, "]") {
			seg.key = raw[:open]
			seg.index = raw[open+1 : len(raw)-1]
		}
		segs = append(segs, seg)
	}
	return segs
}

// Values returns every value reached by path. Missing keys yield nil
// entries. "[*]" flattens lists, "[N]" picks one element.
func Values(record map[string]any, path string) []any {
	current := []any{record}
	for _, seg := range tokenize(path) {
		next := make([]any, 0, len(current))
		for _, v := range current {
			if m, ok := v.(map[string]any); ok {
				next = append(next, m[seg.key])
			} else {
				next = append(next, nil)
			}
		}
		current = applyIndex(next, seg.index)
	}
	return current
}

func applyIndex(values []any, index string) []any {
	switch index {
	case "":
		return values
	case "*":
		var out []any
		for _, v := range values {
			if list, ok := v.([]any); ok {
				out = append(out, list...)
			} else {
				out = append(out, v)
			}
		}
		return out
	}

	i, err := strconv.Atoi(index)
	if err != nil {
		return values
	}
	out := make([]any, 0, len(values))
	for _, v := range values {
		if list, ok := v.([]any); ok && i >= 0 && i < len(list) {
			out = append(out, list[i])
		} else {
			out = append(out, nil)
		}
	}
	return out
}

// Cell renders the values at path as one string. Nil values are dropped,
// lists are flattened one level and joined with sep.
func Cell(record map[string]any, path, sep string) string {
	var vals []any
	for _, v := range Values(record, path) {
		if v != nil {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return ""
	}
	if len(vals) == 1 && isPrimitive(vals[0]) {
		return stringify(vals[0])
	}

	var parts []string
	for _, v := range vals {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				if item != nil {
					parts = append(parts, stringify(item))
				}
			}
			continue
		}
		parts = append(parts, stringify(v))
	}
	return strings.Join(parts, sep)
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, int, int64:
		return true
	}
	return false
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// =============================================================================
// CSV
// =============================================================================

// Rows projects records into string rows in column order.
func Rows(records []map[string]any, cols []Column, sep string) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = Cell(rec, c.Path, sep)
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteCSV writes a BOM, the header line and one line per record.
func WriteCSV(w io.Writer, records []map[string]any, cols []Column, sep string) error {
	if sep == "" {
		sep = DefaultJoinSep
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(bw)
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Header
	}
	if err := cw.Write(headers); err != nil {
		return err
	}
	if err := cw.WriteAll(Rows(records, cols, sep)); err != nil {
		return err
	}
	return bw.Flush()
}

// =============================================================================
// Record loading
// =============================================================================

// ReadRecords decodes JSON objects from r. Both a single object or array
// per file and newline-delimited objects are accepted.
func ReadRecords(r io.Reader) ([]map[string]any, error) {
	dec := json.NewDecoder(r)
	var out []map[string]any
	for {
		var v any
		if err := dec.Decode(&v); errors.Is(err, io.EOF) {
			return out, nil
		} else if err != nil {
			return out, fmt.Errorf("decode record: %w", err)
		}
		switch x := v.(type) {
		case map[string]any:
			out = append(out, x)
		case []any:
			for _, item := range x {
				if m, ok := item.(map[string]any); ok {
					out = append(out, m)
				}
			}
		}
	}
}

// ReadDir loads every *.json and *.jsonl file in dir, sorted by name.
// Files that fail to decode are reported through skip and left out.
func ReadDir(dir string, skip func(path string, err error)) ([]map[string]any, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".json" || ext == ".jsonl") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var records []map[string]any
	for _, name := range names {
		path := filepath.Join(dir, name)
		recs, err := readFile(path)
		if err != nil {
			if skip != nil {
				skip(path, err)
			}
			continue
		}
		records = append(records, recs...)
	}
	return records, nil
}

func readFile(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRecords(f)
}
