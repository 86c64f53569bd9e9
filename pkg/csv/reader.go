package csv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"github.com/shapestone/csvstream/internal/chunked"
	"github.com/shapestone/csvstream/internal/tokenizer"
)

// Reader reads rows from a byte stream through a fixed-size buffer.
//
// Every operation has a Context variant. The context is only consulted when
// the buffer has to be refilled; a cancelled Reader is closed and every later
// call returns ErrClosed.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	opts Options
	src  io.Reader
	sc   *chunked.Scanner
	tok  tokenizer.Options
	dec  *encoding.Decoder
	log  *zap.Logger

	header  []string
	columns int // expected fields per row: >0 fixed, 0 not yet known, <0 unchecked
	line    int // line where the last consumed row ended
	rows    int
	closed  bool
}

// NewReader creates a Reader over r. Unless opts.LeaveOpen is set, Close
// closes r when it implements io.Closer.
//
// Example:
//
//	r, err := csv.NewReader(file, csv.DefaultOptions())
//	if err != nil {
//	    // handle error
//	}
//	defer r.Close()
//	header, _ := r.ReadHeader()
//	for row, err := range r.Rows() {
//	    // ...
//	}
func NewReader(r io.Reader, opts Options) (*Reader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	sc, err := chunked.New(r, opts.scanner())
	if err != nil {
		return nil, fmt.Errorf("csv: open reader: %w", err)
	}

	rd := &Reader{
		opts:    opts,
		src:     r,
		sc:      sc,
		tok:     opts.tokenizer(),
		columns: opts.FieldsPerRecord,
		log: opts.logger().With(
			zap.String("component", "csv.reader"),
			zap.String("session", uuid.NewString()),
		),
	}
	if opts.Encoding != nil {
		rd.dec = opts.Encoding.NewDecoder()
	}
	if opts.Header != nil {
		rd.header = append([]string(nil), opts.Header...)
		if rd.columns == 0 {
			rd.columns = len(rd.header)
		}
	}
	sc.OnRefill = func(n int) {
		rd.log.Debug("buffer refilled", zap.Int("bytes", n), zap.Int("buffered", sc.Buffered()))
		opts.Metrics.refilled(n)
	}

	rd.log.Debug("reader opened",
		zap.Int("buffer_size", opts.bufferSize()),
		zap.Int("chunk_size", opts.chunkSize()),
	)
	return rd, nil
}

// ReadHeader reads the next row as the header and fixes the column count.
func (r *Reader) ReadHeader() ([]string, error) {
	return r.ReadHeaderContext(context.Background())
}

// ReadHeaderContext is ReadHeader with a context for the refill.
func (r *Reader) ReadHeaderContext(ctx context.Context) ([]string, error) {
	if err := r.check("ReadHeader"); err != nil {
		return nil, err
	}
	if r.header != nil {
		return nil, r.fail(usage("ReadHeader", ErrHeaderAlreadySet))
	}

	row, start, err := r.readLine(ctx)
	if errors.Is(err, io.EOF) {
		return nil, r.fail(&ParseError{StartLine: r.line + 1, Line: r.line + 1, Column: 1, Err: ErrNoData})
	}
	if err != nil {
		return nil, err
	}
	if r.columns > 0 && len(row) != r.columns {
		if err := r.mismatch(row, start); err != nil {
			return nil, err
		}
	}

	r.header = row
	if r.columns == 0 {
		r.columns = len(row)
	}
	r.log.Debug("header read", zap.Strings("header", row))
	return append([]string(nil), row...), nil
}

// SkipHeader reads the header and discards it.
func (r *Reader) SkipHeader() error {
	return r.SkipHeaderContext(context.Background())
}

// SkipHeaderContext is SkipHeader with a context for the refill.
func (r *Reader) SkipHeaderContext(ctx context.Context) error {
	_, err := r.ReadHeaderContext(ctx)
	return err
}

// ReadRow reads the next row. It returns io.EOF at the end of the data.
//
// A row whose field count differs from the column count is returned together
// with a *ParseError wrapping ErrFieldCount. With IgnoreErrors set the row is
// returned without the error. Either way the row is consumed.
func (r *Reader) ReadRow() ([]string, error) {
	return r.ReadRowContext(context.Background())
}

// ReadRowContext is ReadRow with a context for the refill.
func (r *Reader) ReadRowContext(ctx context.Context) ([]string, error) {
	if err := r.check("ReadRow"); err != nil {
		return nil, err
	}
	row, start, err := r.readLine(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case r.columns == 0:
		r.columns = len(row)
	case r.columns > 0 && len(row) != r.columns:
		if err := r.mismatch(row, start); err != nil {
			return row, err
		}
	}

	r.rows++
	r.opts.Metrics.rowRead()
	return row, nil
}

// PeekField returns the first field of the next row without consuming
// anything. ok is false when the row holds a single field, since then no
// field delimiter precedes the row end. It returns io.EOF at the end of the
// data.
func (r *Reader) PeekField() (field string, ok bool, err error) {
	return r.PeekFieldContext(context.Background())
}

// PeekFieldContext is PeekField with a context for the refill.
func (r *Reader) PeekFieldContext(ctx context.Context) (field string, ok bool, err error) {
	if err := r.check("PeekField"); err != nil {
		return "", false, err
	}
	span, err := r.sc.Scan(ctx, byte(r.opts.Comma), '\n')
	if err != nil {
		return "", false, r.scanError(err)
	}
	if len(span.Data) == 0 {
		return "", false, io.EOF
	}
	if !span.Found || span.Stop == '\n' {
		return "", false, nil
	}

	fields, _ := tokenizer.ParseRow(string(span.Data), r.tok)
	field, err = r.decode(fields[0])
	if err != nil {
		return "", false, r.fail(err)
	}
	return field, true, nil
}

// CountRows counts the rows left in the source and then rewinds to where
// it started. The source must be seekable.
func (r *Reader) CountRows() (int, error) {
	return r.CountRowsContext(context.Background())
}

// CountRowsContext is CountRows with a context for the refills.
func (r *Reader) CountRowsContext(ctx context.Context) (int, error) {
	if err := r.check("CountRows"); err != nil {
		return 0, err
	}
	if !r.sc.CanRestore() {
		return 0, r.fail(usage("CountRows", ErrNotSeekable))
	}

	mark := r.sc.Position()
	n, err := r.countLines(ctx)
	if err != nil {
		if r.sc.Err() == nil {
			_ = r.sc.Restore(mark)
		}
		return 0, err
	}
	if err := r.sc.Restore(mark); err != nil {
		return 0, r.fail(fmt.Errorf("csv: restore position: %w", err))
	}
	r.log.Debug("rows counted", zap.Int("rows", n))
	return n, nil
}

func (r *Reader) countLines(ctx context.Context) (int, error) {
	n := 0
	for {
		span, err := r.sc.Scan(ctx, '\n')
		if err != nil {
			return 0, r.scanError(err)
		}
		if len(span.Data) == 0 {
			return n, nil
		}
		r.sc.Commit()
		n++
	}
}

// ReadMap reads the next row as a map keyed by the header. Fields beyond
// the header are dropped; missing fields are absent from the map.
func (r *Reader) ReadMap() (map[string]string, error) {
	return r.ReadMapContext(context.Background())
}

// ReadMapContext is ReadMap with a context for the refill.
func (r *Reader) ReadMapContext(ctx context.Context) (map[string]string, error) {
	if err := r.check("ReadMap"); err != nil {
		return nil, err
	}
	if r.header == nil {
		return nil, r.fail(usage("ReadMap", ErrNoColumns))
	}
	row, err := r.ReadRowContext(ctx)
	if err != nil {
		return nil, err
	}
	return zipRow(r.header, row), nil
}

// Rows returns an iterator over the remaining rows. Iteration stops after
// the first error, which is yielded.
func (r *Reader) Rows() iter.Seq2[[]string, error] {
	return r.RowsContext(context.Background())
}

// RowsContext is Rows with a context for the refills.
func (r *Reader) RowsContext(ctx context.Context) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		for {
			row, err := r.ReadRowContext(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(row, err) || err != nil {
				return
			}
		}
	}
}

// Maps returns an iterator over the remaining rows as header-keyed maps.
func (r *Reader) Maps() iter.Seq2[map[string]string, error] {
	return r.MapsContext(context.Background())
}

// MapsContext is Maps with a context for the refills.
func (r *Reader) MapsContext(ctx context.Context) iter.Seq2[map[string]string, error] {
	return func(yield func(map[string]string, error) bool) {
		for {
			m, err := r.ReadMapContext(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(m, err) || err != nil {
				return
			}
		}
	}
}

// Header returns a copy of the header, or nil if none is known.
func (r *Reader) Header() []string {
	if r.header == nil {
		return nil
	}
	return append([]string(nil), r.header...)
}

// ColumnCount returns the number of columns, or 0 if not yet known.
func (r *Reader) ColumnCount() int {
	if r.header != nil {
		return len(r.header)
	}
	return max(r.columns, 0)
}

// SetColumnCount fixes the expected number of fields per row for data
// without a header. A negative n disables the check.
func (r *Reader) SetColumnCount(n int) error {
	if err := r.check("SetColumnCount"); err != nil {
		return err
	}
	if r.header != nil {
		return r.fail(usage("SetColumnCount", ErrHeaderAlreadySet))
	}
	r.columns = n
	return nil
}

// AtEnd reports whether every row has been read. It may read from the
// source to find out. A failed read reports false and is left for the next
// read operation to return, so it is counted once.
func (r *Reader) AtEnd() bool {
	if r.closed {
		return true
	}
	if r.sc.AtEnd() {
		return true
	}
	span, err := r.sc.Scan(context.Background(), '\n')
	return err == nil && len(span.Data) == 0
}

// Line returns the line where the last consumed row ended (1-indexed).
func (r *Reader) Line() int {
	return r.line
}

// Close releases the buffer and closes the source unless LeaveOpen is set.
// Close is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.sc.Release()
	r.log.Debug("reader closed", zap.Int("rows", r.rows), zap.Int("line", r.line))

	if c, ok := r.src.(io.Closer); ok && !r.opts.LeaveOpen {
		if err := c.Close(); err != nil {
			return r.opts.Metrics.observe(fmt.Errorf("csv: close source: %w", err))
		}
	}
	return nil
}

func (r *Reader) check(op string) error {
	if r.closed {
		return r.opts.Metrics.observe(usage(op, ErrClosed))
	}
	return nil
}

// readLine consumes the next row and tokenizes it. start is the line where
// the row began.
func (r *Reader) readLine(ctx context.Context) (row []string, start int, err error) {
	span, err := r.sc.Scan(ctx, '\n')
	if err != nil {
		return nil, 0, r.scanError(err)
	}
	if len(span.Data) == 0 {
		return nil, 0, io.EOF
	}
	r.sc.Commit()

	start = r.line + 1
	r.line += bytes.Count(span.Data, []byte{'\n'})
	if !span.Found {
		r.line++
	}

	row, unterminated := tokenizer.ParseRow(string(span.Data), r.tok)
	if unterminated {
		pe := &ParseError{StartLine: start, Line: r.line, Column: len(row), Err: ErrUnterminatedQuote}
		if !r.opts.IgnoreErrors {
			return nil, start, r.fail(pe)
		}
		r.tolerate("unterminated_quote", pe)
	}
	for i, f := range row {
		if row[i], err = r.decode(f); err != nil {
			return nil, start, r.fail(err)
		}
	}
	return row, start, nil
}

// mismatch reports a field count error, or logs and swallows it in
// ignore-errors mode.
func (r *Reader) mismatch(row []string, start int) error {
	pe := &ParseError{
		StartLine: start,
		Line:      r.line,
		Column:    min(len(row), r.columns) + 1,
		Err:       fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(row), r.columns),
	}
	if !r.opts.IgnoreErrors {
		return r.fail(pe)
	}
	r.tolerate("field_count", pe)
	return nil
}

func (r *Reader) tolerate(reason string, err error) {
	r.log.Warn("tolerated malformed row", zap.String("reason", reason), zap.Error(err))
	r.opts.Metrics.tolerate(reason)
}

func (r *Reader) decode(field string) (string, error) {
	if r.dec == nil {
		return field, nil
	}
	s, err := r.dec.String(field)
	if err != nil {
		return "", fmt.Errorf("csv: decode field: %w", err)
	}
	return s, nil
}

// scanError translates scanner failures. Cancellation closes the reader.
func (r *Reader) scanError(err error) error {
	switch {
	case errors.Is(err, chunked.ErrBufferFull):
		return r.fail(&ParseError{
			StartLine: r.line + 1,
			Line:      r.line + 1,
			Column:    1,
			Err:       fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, r.opts.bufferSize()),
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.log.Debug("reader cancelled", zap.Error(err))
		_ = r.Close()
		return r.fail(fmt.Errorf("csv: read: %w", err))
	case errors.Is(err, chunked.ErrReleased):
		return r.fail(usage("read", ErrClosed))
	default:
		return r.fail(fmt.Errorf("csv: read: %w", err))
	}
}

func (r *Reader) fail(err error) error {
	return r.opts.Metrics.observe(err)
}

// zipRow pairs header names with row fields.
func zipRow(header, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(row) {
			m[name] = row[i]
		}
	}
	return m
}
