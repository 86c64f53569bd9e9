package csv

import (
	"context"
	"fmt"
	"io"
	"os"
)

// The functions in this file open a file and delegate to their stream
// counterparts. The session owns the file: LeaveOpen is ignored and the file
// is closed when the session ends.

// openSource opens a file for reading.
var openSource = func(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// OpenReader opens path for reading. Closing the Reader closes the file.
func OpenReader(path string, opts Options) (*Reader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	f, err := openSource(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	opts.LeaveOpen = false
	r, err := NewReader(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// CreateWriter creates or truncates path for writing. Closing the Writer
// closes the file.
func CreateWriter(path string, opts Options) (*Writer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create %s: %w", path, err)
	}
	opts.LeaveOpen = false
	w, err := NewWriter(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// ParseFile parses the file at path into a Table. See ParseReaderContext.
func ParseFile(ctx context.Context, path string, opts Options) (*Table, error) {
	rd, err := OpenReader(path, opts)
	if err != nil {
		return nil, err
	}
	return parseRows(ctx, rd, opts)
}

// ParseHeaderFile reads the first newline-terminated row of the file at
// path. See ParseHeaderReader.
func ParseHeaderFile(ctx context.Context, path string, opts Options) ([]string, bool, error) {
	opts.Header = nil
	rd, err := OpenReader(path, opts)
	if err != nil {
		return nil, false, err
	}
	return headerRow(ctx, rd)
}

// CountRowsFile counts the data rows of the file at path. See
// CountRowsReader.
func CountRowsFile(ctx context.Context, path string, opts Options) (int, error) {
	rd, err := OpenReader(path, opts)
	if err != nil {
		return 0, err
	}
	return countRows(ctx, rd, opts)
}
