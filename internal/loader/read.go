package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Format is an input file encoding.
type Format string

const (
	FormatAuto  Format = "auto"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatXLSX  Format = "xlsx"
)

// Record is one input row keyed by lowercase column name. Empty and null
// values are omitted.
type Record map[string]string

// visitFunc receives each record with its 1-based position in the file.
type visitFunc func(pos int, rec Record) error

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatCSV, FormatJSON, FormatJSONL, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("loader: unsupported format %q", s)
	}
}

// DetectFormat resolves FormatAuto from the file extension, defaulting to CSV.
func DetectFormat(path string, f Format) Format {
	if f != "" && f != FormatAuto {
		return f
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

func readFile(ctx context.Context, path string, f Format, visit visitFunc) error {
	if f == FormatXLSX {
		return readXLSX(ctx, path, visit)
	}

	file, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "loader: open %s", path)
	}
	defer file.Close() //nolint:errcheck

	switch f {
	case FormatJSON:
		return readJSON(ctx, file, visit)
	case FormatJSONL:
		return readJSONL(ctx, file, visit)
	default:
		return readCSV(ctx, file, visit)
	}
}

func readCSV(ctx context.Context, r io.Reader, visit visitFunc) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "loader: read csv header")
	}
	header = normalizeHeader(header)

	for pos := 1; ; pos++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "loader: read csv")
		}
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrapf(err, "loader: read csv row %d", pos)
		}
		if err := visit(pos, zipRecord(header, row)); err != nil {
			return err
		}
	}
}

// readJSON streams a top-level array of objects.
func readJSON(ctx context.Context, r io.Reader, visit visitFunc) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "loader: read json")
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return eris.New("loader: json input must be an array of objects")
	}

	for pos := 1; dec.More(); pos++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "loader: read json")
		}
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return eris.Wrapf(err, "loader: decode json element %d", pos)
		}
		if err := visit(pos, objectRecord(obj)); err != nil {
			return err
		}
	}
	return nil
}

func readJSONL(ctx context.Context, r io.Reader, visit visitFunc) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	pos := 0
	for line := 1; sc.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "loader: read jsonl")
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return eris.Wrapf(err, "loader: decode jsonl line %d", line)
		}
		pos++
		if err := visit(pos, objectRecord(obj)); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return eris.Wrap(err, "loader: read jsonl")
	}
	return nil
}

// readXLSX reads the first sheet; the first row is the header.
func readXLSX(ctx context.Context, path string, visit visitFunc) error {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return eris.Wrap(err, "loader: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return eris.Errorf("loader: xlsx %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	var header []string
	pos := 0
	for i, row := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "loader: read xlsx")
		}
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if i == 0 {
			header = normalizeHeader(cells)
			continue
		}
		rec := zipRecord(header, cells)
		if len(rec) == 0 {
			continue
		}
		pos++
		if err := visit(pos, rec); err != nil {
			return err
		}
	}
	return nil
}

func normalizeHeader(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		c = strings.TrimPrefix(c, "\ufeff")
		out[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return out
}

func zipRecord(header, row []string) Record {
	rec := make(Record, len(header))
	for i, key := range header {
		if key == "" || i >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			rec[key] = v
		}
	}
	return rec
}

func objectRecord(obj map[string]any) Record {
	rec := make(Record, len(obj))
	for k, v := range obj {
		key := strings.ToLower(strings.TrimSpace(k))
		var s string
		switch t := v.(type) {
		case nil:
			continue
		case string:
			s = strings.TrimSpace(t)
		case json.Number:
			s = t.String()
		case bool:
			s = strconv.FormatBool(t)
		default:
			// Nested values such as an attribution path array are kept as JSON.
			b, err := json.Marshal(t)
			if err != nil {
				continue
			}
			s = string(b)
		}
		if s != "" {
			rec[key] = s
		}
	}
	return rec
}
