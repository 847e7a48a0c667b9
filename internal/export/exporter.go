package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ca-srg/leakscope/internal/record"
	"github.com/ca-srg/leakscope/internal/scoring"
)

// Columns is the fixed header of every export. Saved spreadsheet templates
// depend on this order.
var Columns = []string{"No", "Source", "Risk", "Email", "Username", "Password", "Phone", "Name", "Context"}

// NotAvailable fills identifier cells the record does not carry.
const NotAvailable = "N/A"

const highlightSeparator = " ... "

// utf8BOM makes spreadsheet tools detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ExportError reports a result set that could not be serialized.
type ExportError struct {
	Row int
	Err error
}

func (e *ExportError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("export row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("export: %v", e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Row is one flattened record with the risk of the group it came from.
// Risk is empty when the result set was not correlated.
type Row struct {
	Record record.Record
	Risk   string
}

// Rows flattens rs into export order: records as ranked, or group members in
// group order.
func Rows(rs *record.ResultSet) []Row {
	if rs == nil {
		return nil
	}
	if !rs.Correlated {
		rows := make([]Row, 0, len(rs.Records))
		for _, rec := range rs.Records {
			rows = append(rows, Row{Record: rec})
		}
		return rows
	}

	rows := make([]Row, 0, rs.Len())
	for _, g := range rs.Groups {
		risk := g.Risk.String()
		for _, m := range g.Members {
			rows = append(rows, Row{Record: m, Risk: risk})
		}
	}
	return rows
}

// Export serializes rs as CSV. An empty or nil result set yields the header only.
func Export(rs *record.ResultSet) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, rs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the CSV artifact for rs to w.
func Write(w io.Writer, rs *record.ResultSet) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return &ExportError{Err: err}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return &ExportError{Err: err}
	}
	for i, row := range Rows(rs) {
		if err := cw.Write(cells(i+1, row)); err != nil {
			return &ExportError{Row: i + 1, Err: err}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return &ExportError{Err: err}
	}
	return nil
}

// Decode reads a result set previously written as JSON.
func Decode(r io.Reader) (*record.ResultSet, error) {
	var rs record.ResultSet
	if err := json.NewDecoder(r).Decode(&rs); err != nil {
		return nil, fmt.Errorf("decode result set: %w", err)
	}
	return &rs, nil
}

func cells(n int, row Row) []string {
	rec := row.Record
	password := rec.Get(record.FieldPassword)
	if password == "" {
		password = rec.Get(record.FieldPasswordHash)
	}
	return []string{
		strconv.Itoa(n),
		cell(rec.Source),
		cell(row.Risk),
		identifier(rec.Get(record.FieldEmail)),
		identifier(rec.Get(record.FieldUsername)),
		identifier(password),
		identifier(rec.Get(record.FieldPhone)),
		identifier(rec.Get(record.FieldName)),
		cell(contextOf(rec)),
	}
}

func identifier(v string) string {
	if strings.TrimSpace(v) == "" {
		return NotAvailable
	}
	return cell(v)
}

// contextOf prefers the record's own context, then its highlights without
// marks, then a summary of its identity and profile fields.
func contextOf(rec record.Record) string {
	if c := rec.Get(record.FieldContext); c != "" {
		return c
	}
	if len(rec.Highlights) == 0 {
		return record.SummaryContext(rec.Fields)
	}
	parts := make([]string, 0, len(rec.Highlights))
	for _, h := range rec.Highlights {
		h = strings.ReplaceAll(h, scoring.MarkOpen, "")
		h = strings.ReplaceAll(h, scoring.MarkClose, "")
		parts = append(parts, h)
	}
	return strings.Join(parts, highlightSeparator)
}

// cell repairs invalid UTF-8 and neutralizes leading characters that
// spreadsheet tools would evaluate as a formula.
func cell(v string) string {
	if !utf8.ValidString(v) {
		v = strings.ToValidUTF8(v, "�")
	}
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + v
	}
	return v
}
