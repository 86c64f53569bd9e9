package csv

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
)

// Writer writes rows as CSV lines. Each line is handed to the underlying
// writer in a single Write call; wrap it in a bufio.Writer to batch them.
//
// A cancelled context closes the Writer, and its sink unless LeaveOpen is
// set.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	opts Options
	dst  io.Writer
	enc  *encoding.Encoder
	log  *zap.Logger

	header        []string
	headerWritten bool
	columns       int // expected fields per row: >0 fixed, 0 not yet known, <0 unchecked
	line          int // lines written
	rows          int
	closed        bool
	buf           []byte
}

// NewWriter creates a Writer over w. Unless opts.LeaveOpen is set, Close
// closes w when it implements io.Closer.
func NewWriter(w io.Writer, opts Options) (*Writer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	wr := &Writer{
		opts:    opts,
		dst:     w,
		columns: opts.FieldsPerRecord,
		log: opts.logger().With(
			zap.String("component", "csv.writer"),
			zap.String("session", uuid.NewString()),
		),
		buf: make([]byte, 0, 256),
	}
	if opts.Encoding != nil {
		wr.enc = opts.Encoding.NewEncoder()
	}
	if opts.Header != nil && wr.columns == 0 {
		wr.columns = len(opts.Header)
	}
	wr.log.Debug("writer opened", zap.Bool("crlf", opts.UseCRLF))
	return wr, nil
}

// WriteHeader writes the header line and fixes the column count. With no
// arguments it writes Options.Header.
func (w *Writer) WriteHeader(header ...string) error {
	return w.WriteHeaderContext(context.Background(), header...)
}

// WriteHeaderContext is WriteHeader with a context checked before the write.
func (w *Writer) WriteHeaderContext(ctx context.Context, header ...string) error {
	if err := w.check("WriteHeader"); err != nil {
		return err
	}
	if w.headerWritten {
		return w.fail(usage("WriteHeader", ErrHeaderAlreadyWritten))
	}
	if len(header) == 0 {
		if w.opts.Header == nil {
			return w.fail(usage("WriteHeader", ErrNoHeader))
		}
		header = w.opts.Header
	}
	if err := w.writeRow(ctx, header); err != nil {
		return err
	}
	w.header = append([]string(nil), header...)
	w.headerWritten = true
	return nil
}

// WriteRows writes each row as one line. The configured header is written
// first if HasHeader is set and it has not been written yet.
func (w *Writer) WriteRows(rows ...[]string) error {
	return w.WriteRowsContext(context.Background(), rows...)
}

// WriteRowsContext is WriteRows with a context checked before each line.
func (w *Writer) WriteRowsContext(ctx context.Context, rows ...[]string) error {
	if err := w.check("WriteRows"); err != nil {
		return err
	}
	if err := w.autoHeader(ctx); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.writeRow(ctx, row); err != nil {
			return err
		}
		w.rows++
	}
	return nil
}

// WriteMap writes one row with its fields ordered by the header. Names
// missing from m are written as empty fields.
func (w *Writer) WriteMap(m map[string]string) error {
	return w.WriteMapContext(context.Background(), m)
}

// WriteMapContext is WriteMap with a context checked before the write.
func (w *Writer) WriteMapContext(ctx context.Context, m map[string]string) error {
	if err := w.check("WriteMap"); err != nil {
		return err
	}
	header := w.header
	if header == nil {
		header = w.opts.Header
	}
	if header == nil {
		return w.fail(usage("WriteMap", ErrNoHeader))
	}
	row := make([]string, len(header))
	for i, name := range header {
		row[i] = m[name]
	}
	return w.WriteRowsContext(ctx, row)
}

// WriteEmptyLine writes a bare line terminator.
func (w *Writer) WriteEmptyLine() error {
	return w.WriteEmptyLineContext(context.Background())
}

// WriteEmptyLineContext is WriteEmptyLine with a context checked before the write.
func (w *Writer) WriteEmptyLineContext(ctx context.Context) error {
	if err := w.check("WriteEmptyLine"); err != nil {
		return err
	}
	w.buf = append(w.buf[:0], w.opts.lineEnding()...)
	return w.writeLine(ctx, w.buf)
}

// Header returns a copy of the written header, or nil.
func (w *Writer) Header() []string {
	if w.header == nil {
		return nil
	}
	return append([]string(nil), w.header...)
}

// Line returns the number of lines written.
func (w *Writer) Line() int {
	return w.line
}

// Close closes the underlying writer unless LeaveOpen is set.
// Close is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.log.Debug("writer closed", zap.Int("rows", w.rows), zap.Int("lines", w.line))

	if c, ok := w.dst.(io.Closer); ok && !w.opts.LeaveOpen {
		if err := c.Close(); err != nil {
			return w.fail(fmt.Errorf("csv: close sink: %w", err))
		}
	}
	return nil
}

func (w *Writer) autoHeader(ctx context.Context) error {
	if w.headerWritten || !w.opts.HasHeader || w.opts.Header == nil {
		return nil
	}
	return w.WriteHeaderContext(ctx)
}

// writeRow validates and encodes row, then writes it as one line.
func (w *Writer) writeRow(ctx context.Context, row []string) error {
	lineno := w.line + 1
	if len(row) == 0 {
		return w.fail(&ParseError{StartLine: lineno, Line: lineno, Column: 1, Err: ErrEmptyRow})
	}

	switch {
	case w.columns == 0:
		w.columns = len(row)
	case w.columns > 0 && len(row) != w.columns:
		pe := &ParseError{
			StartLine: lineno,
			Line:      lineno,
			Column:    min(len(row), w.columns) + 1,
			Err:       fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(row), w.columns),
		}
		if !w.opts.IgnoreErrors {
			return w.fail(pe)
		}
		w.tolerate("field_count", pe)
	}
	return w.writeFields(ctx, row)
}

// writeFields encodes row and writes it as one line without checking the
// column count.
func (w *Writer) writeFields(ctx context.Context, row []string) error {
	lineno := w.line + 1
	line, lossy, err := appendRow(w.buf[:0], row, byte(w.opts.Comma), byte(w.opts.Quote), w.opts.IgnoreErrors)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.StartLine, pe.Line = lineno, lineno
		}
		return w.fail(err)
	}
	for _, col := range lossy {
		w.tolerate("quote_required", &ParseError{StartLine: lineno, Line: lineno, Column: col + 1, Err: ErrQuoteRequired})
	}
	w.buf = append(line, w.opts.lineEnding()...)
	return w.writeLine(ctx, w.buf)
}

func (w *Writer) writeLine(ctx context.Context, line []byte) error {
	if err := ctx.Err(); err != nil {
		w.log.Debug("writer cancelled", zap.Error(err))
		_ = w.Close()
		return w.fail(fmt.Errorf("csv: write: %w", err))
	}
	if w.enc != nil {
		encoded, err := w.enc.Bytes(line)
		if err != nil {
			return w.fail(fmt.Errorf("csv: encode line %d: %w", w.line+1, err))
		}
		line = encoded
	}
	n, err := w.dst.Write(line)
	if err != nil {
		return w.fail(fmt.Errorf("csv: write line %d: %w", w.line+1, err))
	}
	if n < len(line) {
		return w.fail(fmt.Errorf("csv: write line %d: %w", w.line+1, io.ErrShortWrite))
	}
	w.line++
	w.opts.Metrics.rowWritten()
	return nil
}

func (w *Writer) check(op string) error {
	if w.closed {
		return w.fail(usage(op, ErrClosed))
	}
	return nil
}

func (w *Writer) tolerate(reason string, err error) {
	w.log.Warn("tolerated invalid row", zap.String("reason", reason), zap.Error(err))
	w.opts.Metrics.tolerate(reason)
}

func (w *Writer) fail(err error) error {
	return w.opts.Metrics.observe(err)
}
