package csv

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
)

// Table is an in-memory CSV document: an optional header and data rows.
//
//	t := csv.NewTable("name", "age")
//	_ = t.AddRow("Alice", "30")
//	rec, _ := t.Record(0)
//	age, _ := rec.GetByName("age")
//
// Column operations keep the header and every row aligned. They return a
// *UsageError wrapping ErrInvalidIndex for out-of-range indexes.
type Table struct {
	hasHeader bool
	header    []string
	rows      [][]string
	opts      Options
}

// Record represents a single row of a Table.
// It provides access to field values by index or by header name.
type Record struct {
	fields  []string
	headers []string
}

// NewTable creates an empty table. With a header the table renders it.
func NewTable(header ...string) *Table {
	opts := DefaultOptions()
	opts.HasHeader = len(header) > 0
	return &Table{
		hasHeader: opts.HasHeader,
		header:    slices.Clone(header),
		opts:      opts,
	}
}

// NewTableFrom creates a table from existing rows. Without a header, one is
// synthesized from the first row's field positions ("0", "1", ...) and
// opts.HasHeader decides whether it is rendered. Rows are validated unless
// opts.IgnoreErrors is set.
func NewTableFrom(header []string, rows [][]string, opts Options) (*Table, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	t := &Table{
		hasHeader: opts.HasHeader,
		header:    slices.Clone(header),
		rows:      rows,
		opts:      opts,
	}
	if len(t.header) == 0 && len(rows) > 0 {
		t.header = positionalHeader(len(rows[0]))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func positionalHeader(n int) []string {
	h := make([]string, n)
	for i := range h {
		h[i] = strconv.Itoa(i)
	}
	return h
}

// HasHeader reports whether the header is part of the rendered document.
func (t *Table) HasHeader() bool {
	return t.hasHeader
}

// Header returns a copy of the column names.
func (t *Table) Header() []string {
	return slices.Clone(t.header)
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	return len(t.header)
}

// CountRows returns the number of data rows. The header is not counted.
func (t *Table) CountRows() int {
	return len(t.rows)
}

// Rows returns the data rows. The slices are shared with the table.
func (t *Table) Rows() [][]string {
	return t.rows
}

// Row returns the row at index (0 = first data row).
// Returns (nil, false) if the index is out of bounds.
func (t *Table) Row(index int) ([]string, bool) {
	if index < 0 || index >= len(t.rows) {
		return nil, false
	}
	return t.rows[index], true
}

// Record returns the row at index as a Record.
func (t *Table) Record(index int) (Record, bool) {
	row, ok := t.Row(index)
	if !ok {
		return Record{}, false
	}
	return Record{fields: row, headers: t.header}, true
}

// Records returns all data rows as Record values.
func (t *Table) Records() []Record {
	records := make([]Record, len(t.rows))
	for i, row := range t.rows {
		records[i] = Record{fields: row, headers: t.header}
	}
	return records
}

// Value returns the field of row index in column name.
func (t *Table) Value(index int, name string) (string, error) {
	row, ok := t.Row(index)
	if !ok {
		return "", usage("Value", ErrInvalidIndex)
	}
	col := slices.Index(t.header, name)
	if col < 0 {
		return "", usage("Value", fmt.Errorf("%w: no column %q", ErrNoColumns, name))
	}
	if col >= len(row) {
		return "", &ParseError{StartLine: index + 1, Line: index + 1, Column: col + 1, Err: ErrFieldCount}
	}
	return row[col], nil
}

// Map returns row index keyed by the header.
func (t *Table) Map(index int) (map[string]string, error) {
	row, ok := t.Row(index)
	if !ok {
		return nil, usage("Map", ErrInvalidIndex)
	}
	if len(t.header) == 0 {
		return nil, usage("Map", ErrNoColumns)
	}
	return zipRow(t.header, row), nil
}

// Maps returns every row keyed by the header.
func (t *Table) Maps() ([]map[string]string, error) {
	if len(t.header) == 0 && len(t.rows) > 0 {
		return nil, usage("Maps", ErrNoColumns)
	}
	maps := make([]map[string]string, len(t.rows))
	for i, row := range t.rows {
		maps[i] = zipRow(t.header, row)
	}
	return maps, nil
}

// AddRow appends a row. Unless IgnoreErrors is set its length must match
// the column count.
func (t *Table) AddRow(fields ...string) error {
	if len(fields) == 0 {
		return &ParseError{StartLine: len(t.rows) + 1, Line: len(t.rows) + 1, Column: 1, Err: ErrEmptyRow}
	}
	if !t.opts.IgnoreErrors && len(t.header) > 0 && len(fields) != len(t.header) {
		return &ParseError{
			StartLine: len(t.rows) + 1,
			Line:      len(t.rows) + 1,
			Column:    min(len(fields), len(t.header)) + 1,
			Err:       fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(fields), len(t.header)),
		}
	}
	t.rows = append(t.rows, fields)
	return nil
}

// AddColumn inserts a column named name at index; a negative index
// appends. value, if non-nil, produces the field for each existing row.
func (t *Table) AddColumn(name string, index int, value func(row int) string) error {
	if name == "" {
		return usage("AddColumn", errors.New("column name required"))
	}
	if index < 0 {
		index = len(t.header)
	}
	if index > len(t.header) {
		return usage("AddColumn", ErrInvalidIndex)
	}
	t.header = slices.Insert(t.header, index, name)
	for i, row := range t.rows {
		field := ""
		if value != nil {
			field = value(i)
		}
		t.rows[i] = slices.Insert(row, min(index, len(row)), field)
	}
	return nil
}

// RemoveColumn deletes the column at index. The last column cannot be
// removed.
func (t *Table) RemoveColumn(index int) error {
	if index < 0 || index >= len(t.header) {
		return usage("RemoveColumn", ErrInvalidIndex)
	}
	if len(t.header) == 1 {
		return usage("RemoveColumn", errors.New("cannot remove the last column"))
	}
	t.header = slices.Delete(t.header, index, index+1)
	for i, row := range t.rows {
		if index < len(row) {
			t.rows[i] = slices.Delete(row, index, index+1)
		}
	}
	return nil
}

// MoveColumn moves the column at from to position to, shifting the
// columns in between.
func (t *Table) MoveColumn(from, to int) error {
	n := len(t.header)
	if from < 0 || from >= n || to < 0 || to >= n {
		return usage("MoveColumn", ErrInvalidIndex)
	}
	if from == to {
		return nil
	}
	moveIndex(t.header, from, to)
	for _, row := range t.rows {
		if from < len(row) && to < len(row) {
			moveIndex(row, from, to)
		}
	}
	return nil
}

func moveIndex(data []string, from, to int) {
	v := data[from]
	if from < to {
		copy(data[from:to], data[from+1:to+1])
	} else {
		copy(data[to+1:from+1], data[to:from])
	}
	data[to] = v
}

// SwapColumns exchanges the columns at a and b.
func (t *Table) SwapColumns(a, b int) error {
	n := len(t.header)
	if a < 0 || a >= n || b < 0 || b >= n {
		return usage("SwapColumns", ErrInvalidIndex)
	}
	t.header[a], t.header[b] = t.header[b], t.header[a]
	for _, row := range t.rows {
		if a < len(row) && b < len(row) {
			row[a], row[b] = row[b], row[a]
		}
	}
	return nil
}

// ReorderColumns moves column i to position order[i]. order must be a
// permutation of the column indexes.
func (t *Table) ReorderColumns(order []int) error {
	if !isPermutation(order, len(t.header)) {
		return usage("ReorderColumns", ErrInvalidIndex)
	}
	t.header = reorder(t.header, order)
	for i, row := range t.rows {
		if len(row) == len(order) {
			t.rows[i] = reorder(row, order)
		}
	}
	return nil
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}

func reorder(data []string, order []int) []string {
	out := make([]string, len(data))
	for i, v := range data {
		out[order[i]] = v
	}
	return out
}

// CreateHeaders replaces the header with positional names derived from
// the first row.
func (t *Table) CreateHeaders() error {
	if len(t.rows) == 0 {
		return usage("CreateHeaders", ErrNoData)
	}
	t.header = positionalHeader(len(t.rows[0]))
	return nil
}

// Validate checks that the table has columns and that every row matches
// the column count. With IgnoreErrors only empty rows are reported.
func (t *Table) Validate() error {
	for i, row := range t.rows {
		if len(row) == 0 {
			return &ParseError{StartLine: i + 1, Line: i + 1, Column: 1, Err: ErrEmptyRow}
		}
	}
	if t.opts.IgnoreErrors {
		return nil
	}
	if len(t.header) == 0 && len(t.rows) > 0 {
		return usage("Validate", ErrNoColumns)
	}
	for i, row := range t.rows {
		if len(row) != len(t.header) {
			return &ParseError{
				StartLine: i + 1,
				Line:      i + 1,
				Column:    min(len(row), len(t.header)) + 1,
				Err:       fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(row), len(t.header)),
			}
		}
	}
	return nil
}

// Clear removes every row, and the header too if includingHeader is set.
func (t *Table) Clear(includingHeader bool) {
	if includingHeader {
		t.header = nil
	}
	t.rows = nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		rows[i] = slices.Clone(row)
	}
	return &Table{
		hasHeader: t.hasHeader,
		header:    slices.Clone(t.header),
		rows:      rows,
		opts:      t.opts,
	}
}

// CSV renders the table back to a CSV string using the options it was
// created or parsed with. The header is included when HasHeader is set.
//
// Example:
//
//	t := csv.NewTable("name", "age")
//	_ = t.AddRow("Alice", "30")
//	s, _ := t.CSV()
//	// s: name,age\r\nAlice,30\r\n
func (t *Table) CSV() (string, error) {
	var buf bytes.Buffer
	if _, err := t.WriteTo(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteTo writes the table to w as CSV. It implements io.WriterTo.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	opts := t.opts
	opts.Header = nil
	opts.LeaveOpen = true
	opts.FieldsPerRecord = 0
	if t.opts.IgnoreErrors {
		opts.FieldsPerRecord = -1
	}

	cw := &countingWriter{w: w}
	wr, err := NewWriter(cw, opts)
	if err != nil {
		return 0, err
	}
	if t.hasHeader && len(t.header) > 0 {
		if err := wr.WriteHeader(t.header...); err != nil {
			return cw.n, err
		}
	}
	if err := wr.WriteRows(t.rows...); err != nil {
		return cw.n, err
	}
	return cw.n, wr.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Get gets the field value at the specified index.
// Returns (value, false) if the index is out of bounds.
func (r Record) Get(index int) (string, bool) {
	if index < 0 || index >= len(r.fields) {
		return "", false
	}
	return r.fields[index], true
}

// GetByName gets the field value by header name.
// Returns (value, false) if the name is not a column.
func (r Record) GetByName(name string) (string, bool) {
	for i, header := range r.headers {
		if header == name {
			return r.Get(i)
		}
	}
	return "", false
}

// Fields returns a copy of the field values.
func (r Record) Fields() []string {
	return slices.Clone(r.fields)
}

// Len returns the number of fields in the record.
func (r Record) Len() int {
	return len(r.fields)
}
