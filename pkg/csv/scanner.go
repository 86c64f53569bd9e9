package csv

import (
	"context"
	"errors"
	"io"
)

// Scanner provides a bufio.Scanner style loop over the rows of a stream.
// Unlike ParseReader it reads one row at a time through the bounded buffer,
// so memory use does not grow with the input.
//
// Example usage:
//
//	file, _ := os.Open("data.csv")
//
//	scanner := csv.NewScanner(file).SetHasHeaders(true)
//	defer scanner.Close()
//	for scanner.Scan() {
//	    record := scanner.Record()
//	    name, _ := record.GetByName("name")
//	    fmt.Println(name)
//	}
//	if err := scanner.Err(); err != nil {
//	    // handle error
//	}
type Scanner struct {
	src         io.Reader
	opts        Options
	ctx         context.Context
	rd          *Reader
	reuseRecord bool
	record      Record
	err         error
	done        bool
}

// NewScanner creates a Scanner with DefaultOptions, except that the first
// row is not treated as a header. Use SetHasHeaders(true) to change that.
func NewScanner(r io.Reader) *Scanner {
	opts := DefaultOptions()
	opts.HasHeader = false
	return NewScannerOptions(r, opts)
}

// NewScannerOptions creates a Scanner with opts. Options errors are reported
// by the first Scan.
func NewScannerOptions(r io.Reader, opts Options) *Scanner {
	return &Scanner{src: r, opts: opts, ctx: context.Background()}
}

// SetHasHeaders sets whether the first row is read as the header. It has no
// effect once scanning started.
// Returns the Scanner for method chaining.
func (s *Scanner) SetHasHeaders(hasHeaders bool) *Scanner {
	s.opts.HasHeader = hasHeaders
	return s
}

// SetReuseRecord sets whether Record returns the same Record value with
// its fields replaced on every row. Copy a reused Record's fields before
// the next Scan if they must be kept.
// Returns the Scanner for method chaining.
func (s *Scanner) SetReuseRecord(reuse bool) *Scanner {
	s.reuseRecord = reuse
	return s
}

// SetContext sets the context used for the buffer refills.
// Returns the Scanner for method chaining.
func (s *Scanner) SetContext(ctx context.Context) *Scanner {
	s.ctx = ctx
	return s
}

// Scan advances to the next row. It returns false at the end of the data or
// on the first error, after which Err reports the error.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	if s.rd == nil {
		if err := s.open(); err != nil {
			return s.stop(err)
		}
	}
	row, err := s.rd.ReadRowContext(s.ctx)
	if err != nil {
		return s.stop(err)
	}

	if s.reuseRecord {
		s.record.fields = row
		s.record.headers = s.rd.header
	} else {
		s.record = Record{fields: row, headers: s.rd.header}
	}
	return true
}

func (s *Scanner) open() error {
	rd, err := NewReader(s.src, s.opts)
	if err != nil {
		return err
	}
	s.rd = rd
	if s.opts.HasHeader && s.opts.Header == nil {
		if _, err := rd.ReadHeaderContext(s.ctx); err != nil {
			var pe *ParseError
			if errors.As(err, &pe) && errors.Is(pe.Err, ErrNoData) {
				return io.EOF
			}
			return err
		}
	}
	return nil
}

func (s *Scanner) stop(err error) bool {
	s.done = true
	if !errors.Is(err, io.EOF) {
		s.err = err
	}
	return false
}

// Record returns the current row. It is only valid after Scan returned true.
func (s *Scanner) Record() Record {
	if s.record.fields == nil {
		return Record{fields: []string{}, headers: s.Headers()}
	}
	return s.record
}

// Err returns the first error met while scanning, or nil at a clean end.
func (s *Scanner) Err() error {
	return s.err
}

// Headers returns the header, or nil if none was read. It is available
// after the first Scan.
func (s *Scanner) Headers() []string {
	if s.rd == nil {
		return nil
	}
	return s.rd.Header()
}

// Line returns the line where the current row ended.
func (s *Scanner) Line() int {
	if s.rd == nil {
		return 0
	}
	return s.rd.Line()
}

// Close closes the underlying Reader and, unless LeaveOpen is set, the
// source.
func (s *Scanner) Close() error {
	s.done = true
	if s.rd == nil {
		if c, ok := s.src.(io.Closer); ok && !s.opts.LeaveOpen {
			return c.Close()
		}
		return nil
	}
	return s.rd.Close()
}
