// Package csv reads and writes CSV data from strings, streams and files.
//
// Quoting follows RFC 4180 conventions: a field containing the delimiter, the
// quote, CR or LF is wrapped in quotes on write, and embedded quotes are
// doubled. Reading accepts LF and CRLF line endings.
//
// # Parsing APIs
//
// The package provides three ways in:
//
//   - Parse(string, Options) - Parses a whole document held in memory
//   - ParseReader(io.Reader, Options) - Parses a whole document from a stream
//   - NewReader(io.Reader, Options) - Reads row by row through a fixed buffer
//
// Use Parse for documents that are already strings. Use ParseReader for files
// and network streams that fit in memory once parsed. Use NewReader when the
// data should never be fully materialized.
//
// # Example usage with Parse:
//
//	table, err := csv.Parse("name,age\nAlice,30\nBob,25", csv.DefaultOptions())
//	if err != nil {
//	    // handle error
//	}
//	rec, _ := table.Record(0)
//	name, _ := rec.GetByName("name") // "Alice"
//
// # Example usage with NewReader:
//
//	file, err := os.Open("data.csv")
//	if err != nil {
//	    // handle error
//	}
//	r, err := csv.NewReader(file, csv.DefaultOptions())
//	if err != nil {
//	    // handle error
//	}
//	defer r.Close() // closes file too
//
//	if _, err := r.ReadHeader(); err != nil {
//	    // handle error
//	}
//	for row, err := range r.Rows() {
//	    // ...
//	}
//
// # Errors
//
// Problems with the data arrive as *ParseError (or *FieldError from object
// mapping); IsDataError reports them. Calling an operation in the wrong state
// returns a *UsageError; IsUsageError reports those. Anything else is an I/O
// failure from the underlying source or sink.
//
// # Thread Safety
//
// Package-level functions are safe for concurrent use. A Reader, Writer or
// Table must not be used by more than one goroutine at a time.
package csv

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"

	"go.uber.org/zap"

	"github.com/shapestone/csvstream/internal/tokenizer"
)

// Parse parses a whole CSV document into a Table.
//
// With HasHeader set the first row becomes the header; otherwise positional
// column names "0".."n-1" are synthesized. Offset and Limit select the data
// rows that are kept. The whole input is still validated after the limit is
// reached.
//
// Example:
//
//	table, err := csv.Parse("name,age\nAlice,30\nBob,25", csv.DefaultOptions())
//	// table.Header(): [name age]
//	// table.CountRows(): 2
func Parse(input string, opts Options) (*Table, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if input == "" {
		return nil, opts.Metrics.observe(noData())
	}

	c := newCollector(opts, "csv.parser")
	tok := tokenizer.New(input, opts.tokenizer())
	for {
		row, ok := tok.Next()
		if !ok {
			break
		}
		if tok.Unterminated() {
			pe := &ParseError{StartLine: tok.StartLine(), Line: tok.Line(), Column: len(row), Err: ErrUnterminatedQuote}
			if !opts.IgnoreErrors {
				return nil, opts.Metrics.observe(pe)
			}
			c.tolerate("unterminated_quote", pe)
		}
		if err := c.add(row, tok.StartLine(), tok.Line()); err != nil {
			return nil, opts.Metrics.observe(err)
		}
	}
	return c.table(), nil
}

// ParseReader parses a whole CSV document from r into a Table.
// See ParseReaderContext.
func ParseReader(r io.Reader, opts Options) (*Table, error) {
	return ParseReaderContext(context.Background(), r, opts)
}

// ParseReaderContext parses a whole CSV document from r into a Table. Rows
// are read through the bounded buffer, so no single row may exceed
// BufferSize. Reading stops as soon as Limit rows have been kept.
//
// r is closed afterwards unless opts.LeaveOpen is set.
func ParseReaderContext(ctx context.Context, r io.Reader, opts Options) (*Table, error) {
	rd, err := NewReader(r, opts)
	if err != nil {
		return nil, err
	}
	return parseRows(ctx, rd, opts)
}

// parseRows collects the rows of rd into a Table and closes rd.
func parseRows(ctx context.Context, rd *Reader, opts Options) (*Table, error) {
	defer rd.Close()

	c := newCollector(opts, "csv.parser")
	if opts.HasHeader && opts.Header == nil {
		header, err := rd.ReadHeaderContext(ctx)
		if err != nil {
			return nil, err
		}
		c.header = header
	}

	for !c.satisfied() {
		row, err := rd.ReadRowContext(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		c.keep(row)
	}
	if c.seen == 0 && c.header == nil && opts.Header == nil {
		return nil, rd.fail(noData())
	}
	return c.table(), nil
}

// ParseHeader returns the first newline-terminated row of input. ok is
// false, with no error, when input holds no such row.
func ParseHeader(input string, opts Options) (header []string, ok bool, err error) {
	if err := opts.Validate(); err != nil {
		return nil, false, err
	}
	header, ok = tokenizer.FirstRow(input, opts.tokenizer())
	return header, ok, nil
}

// ParseHeaderReader reads only the first newline-terminated row of r. ok is
// false, with no error, when the source holds no such row.
//
// r is closed afterwards unless opts.LeaveOpen is set.
func ParseHeaderReader(ctx context.Context, r io.Reader, opts Options) (header []string, ok bool, err error) {
	opts.Header = nil
	rd, err := NewReader(r, opts)
	if err != nil {
		return nil, false, err
	}
	return headerRow(ctx, rd)
}

// headerRow reads the first newline-terminated row of rd and closes rd.
func headerRow(ctx context.Context, rd *Reader) (header []string, ok bool, err error) {
	defer rd.Close()

	span, err := rd.sc.Scan(ctx, '\n')
	if err != nil {
		return nil, false, rd.scanError(err)
	}
	if !span.Found {
		return nil, false, nil
	}
	header, err = rd.ReadHeaderContext(ctx)
	if err != nil {
		return nil, false, err
	}
	return header, true, nil
}

// CountRows counts the data rows of input by scanning only quotes and
// newlines. With HasHeader set, the header is not counted, so
// CountRows(x) equals Parse(x).CountRows() for valid input. Empty input
// fails with ErrNoData.
func CountRows(input string, opts Options) (int, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}
	if input == "" {
		return 0, opts.Metrics.observe(noData())
	}
	return dataRows(tokenizer.CountRows(input, byte(opts.Quote)), opts), nil
}

// CountRowsReader counts the data rows of r like CountRows, including the
// ErrNoData failure for an empty source. Memory use is bounded by BufferSize.
//
// r is closed afterwards unless opts.LeaveOpen is set.
func CountRowsReader(ctx context.Context, r io.Reader, opts Options) (int, error) {
	rd, err := NewReader(r, opts)
	if err != nil {
		return 0, err
	}
	return countRows(ctx, rd, opts)
}

// countRows counts the data rows left in rd and closes rd.
func countRows(ctx context.Context, rd *Reader, opts Options) (int, error) {
	defer rd.Close()

	n, err := rd.countLines(ctx)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, rd.fail(noData())
	}
	return dataRows(n, opts), nil
}

func noData() *ParseError {
	return &ParseError{StartLine: 1, Line: 1, Column: 1, Err: ErrNoData}
}

func dataRows(n int, opts Options) int {
	if opts.HasHeader && opts.Header == nil && n > 0 {
		return n - 1
	}
	return n
}

// Enumerate iterates over the raw rows of input, header included, without
// field count validation. An unterminated quote is yielded as an error
// unless IgnoreErrors is set.
func Enumerate(input string, opts Options) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		if err := opts.Validate(); err != nil {
			yield(nil, err)
			return
		}
		tok := tokenizer.New(input, opts.tokenizer())
		for {
			row, ok := tok.Next()
			if !ok {
				return
			}
			if tok.Unterminated() && !opts.IgnoreErrors {
				yield(row, &ParseError{StartLine: tok.StartLine(), Line: tok.Line(), Column: len(row), Err: ErrUnterminatedQuote})
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// EnumerateReader iterates over the raw rows of r like Enumerate. The source
// is opened when iteration starts and closed when it ends, unless
// opts.LeaveOpen is set.
func EnumerateReader(ctx context.Context, r io.Reader, opts Options) iter.Seq2[[]string, error] {
	opts.Header = nil
	opts.FieldsPerRecord = -1
	return func(yield func([]string, error) bool) {
		rd, err := NewReader(r, opts)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rd.Close()
		for row, err := range rd.RowsContext(ctx) {
			if !yield(row, err) {
				return
			}
		}
	}
}

// Validate checks if the input string is valid CSV under opts.
//
// Example:
//
//	err := csv.Validate("a,b\n1,2\n", csv.DefaultOptions())
//	// err == nil
func Validate(input string, opts Options) error {
	_, err := Parse(input, opts)
	return err
}

// Format renders rows as a CSV document. With opts.Header set and
// HasHeader true the header line comes first.
func Format(rows [][]string, opts Options) (string, error) {
	var sb strings.Builder
	opts.LeaveOpen = true
	w, err := NewWriter(&sb, opts)
	if err != nil {
		return "", err
	}
	if err := w.WriteRows(rows...); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// collector gathers data rows into a Table, applying the header, column
// count, offset and limit rules.
type collector struct {
	opts    Options
	log     *zap.Logger
	header  []string
	columns int
	width   int // field count of the first data row
	seen    int // data rows seen, kept or not
	rows    [][]string
}

func newCollector(opts Options, component string) *collector {
	c := &collector{
		opts:    opts,
		log:     opts.logger().With(zap.String("component", component)),
		columns: opts.FieldsPerRecord,
	}
	if opts.Header != nil {
		c.header = append([]string(nil), opts.Header...)
		if c.columns == 0 {
			c.columns = len(c.header)
		}
	}
	return c
}

// add treats the first row as the header when one is expected, validates
// data rows and keeps the selected ones.
func (c *collector) add(row []string, start, end int) error {
	if c.opts.HasHeader && c.header == nil {
		if c.columns > 0 && len(row) != c.columns {
			if err := c.mismatch(row, start, end); err != nil {
				return err
			}
		}
		c.header = row
		if c.columns == 0 {
			c.columns = len(row)
		}
		return nil
	}

	switch {
	case c.columns == 0:
		c.columns = len(row)
	case c.columns > 0 && len(row) != c.columns:
		if err := c.mismatch(row, start, end); err != nil {
			return err
		}
	}
	c.opts.Metrics.rowRead()
	c.keep(row)
	return nil
}

func (c *collector) mismatch(row []string, start, end int) error {
	pe := &ParseError{
		StartLine: start,
		Line:      end,
		Column:    min(len(row), c.columns) + 1,
		Err:       ErrFieldCount,
	}
	if !c.opts.IgnoreErrors {
		return pe
	}
	c.tolerate("field_count", pe)
	return nil
}

func (c *collector) tolerate(reason string, err error) {
	c.log.Warn("tolerated malformed row", zap.String("reason", reason), zap.Error(err))
	c.opts.Metrics.tolerate(reason)
}

// keep retains row if it falls inside the offset/limit window.
func (c *collector) keep(row []string) {
	if c.seen == 0 {
		c.width = len(row)
	}
	if c.seen >= c.opts.Offset && !c.satisfied() {
		c.rows = append(c.rows, row)
	}
	c.seen++
}

func (c *collector) satisfied() bool {
	return c.opts.Limit > 0 && len(c.rows) >= c.opts.Limit
}

func (c *collector) table() *Table {
	header := c.header
	if header == nil && c.seen > 0 {
		header = positionalHeader(c.width)
	}
	return &Table{
		hasHeader: c.opts.HasHeader,
		header:    header,
		rows:      c.rows,
		opts:      c.opts,
	}
}
