// Package chunked reads delimiter-terminated spans from a byte source through
// a fixed-size buffer that is refilled one chunk at a time.
package chunked

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

const (
	// DefaultBufferSize is the read buffer size used when Config.BufferSize is zero.
	DefaultBufferSize = 80 * 1024
	// DefaultChunkSize is the refill size used when Config.ChunkSize is zero.
	DefaultChunkSize = 4 * 1024
	// MinChunkSize is the smallest accepted refill size.
	MinChunkSize = 4
)

var (
	// ErrBufferFull is returned when the buffer is full and holds no stop byte.
	// The buffer never grows, so the span cannot be read.
	ErrBufferFull = errors.New("chunked: buffer full")
	// ErrShortRead is returned when a source of known length delivers fewer
	// bytes than it reported.
	ErrShortRead = errors.New("chunked: short read")
	// ErrNotSeekable is returned by Restore when the source cannot seek.
	ErrNotSeekable = errors.New("chunked: source is not seekable")
	// ErrInvalidSize is returned by New for unusable buffer or chunk sizes.
	ErrInvalidSize = errors.New("chunked: invalid size")
	// ErrReleased is returned by every operation after Release.
	ErrReleased = errors.New("chunked: scanner released")
)

// Config sizes the scanner buffer.
type Config struct {
	// BufferSize is the fixed buffer capacity. It bounds the longest span.
	BufferSize int
	// ChunkSize is the most bytes requested from the source per refill.
	ChunkSize int
	// Quote is the quote byte. Stop bytes between quotes do not end a span.
	// Zero disables quote tracking.
	Quote byte
}

// Span is one scanned region of the buffer.
type Span struct {
	// Data runs from the consumed cursor up to and including the stop byte.
	// It aliases the buffer and is valid until the next Scan.
	Data []byte
	// Stop is the stop byte that ended the span, if Found.
	Stop byte
	// Found is false when the span ends at the end of the data.
	Found bool
}

// lener is implemented by in-memory sources such as *bytes.Buffer.
type lener interface {
	Len() int
}

// stater is implemented by *os.File.
type stater interface {
	Stat() (fs.FileInfo, error)
}

// Scanner holds the buffer and its two cursors. Bytes before consumed have
// been handed out and committed; bytes between consumed and filled are
// buffered but unread.
//
// A Scanner is not safe for concurrent use.
type Scanner struct {
	src       io.Reader
	buf       []byte
	pooled    bool
	chunkSize int
	quote     byte

	consumed int
	filled   int
	pending  int // end of the last span, applied by Commit

	eof    bool
	length int64 // total source length, -1 if unknown
	pos    int64 // source offset of buf[filled]
	err    error // sticky

	// OnRefill, if set, is called with the byte count of every refill.
	OnRefill func(n int)
}

// New creates a scanner over src.
func New(src io.Reader, cfg Config) (*Scanner, error) {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = min(DefaultChunkSize, cfg.BufferSize)
	}
	if cfg.ChunkSize < MinChunkSize {
		return nil, fmt.Errorf("%w: chunk size %d is below %d", ErrInvalidSize, cfg.ChunkSize, MinChunkSize)
	}
	if cfg.BufferSize < cfg.ChunkSize {
		return nil, fmt.Errorf("%w: buffer size %d is smaller than chunk size %d", ErrInvalidSize, cfg.BufferSize, cfg.ChunkSize)
	}

	s := &Scanner{
		src:       src,
		chunkSize: cfg.ChunkSize,
		quote:     cfg.Quote,
		length:    -1,
	}
	if err := s.detectLength(); err != nil {
		return nil, err
	}
	s.buf, s.pooled = getBuffer(cfg.BufferSize)
	return s, nil
}

// detectLength records the source length when it can be learned without
// reading. A seekable source is rewound to where it was.
func (s *Scanner) detectLength() error {
	if f, ok := s.src.(stater); ok {
		// Pipes, terminals and sockets report a meaningless size.
		info, err := f.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
	}
	switch src := s.src.(type) {
	case io.Seeker:
		cur, err := src.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil
		}
		end, err := src.Seek(0, io.SeekEnd)
		if err != nil {
			return fmt.Errorf("chunked: detect length: %w", err)
		}
		if _, err := src.Seek(cur, io.SeekStart); err != nil {
			return fmt.Errorf("chunked: detect length: %w", err)
		}
		s.pos = cur
		s.length = end
	case lener:
		s.length = int64(src.Len())
	}
	if s.length >= 0 && s.pos >= s.length {
		s.eof = true
	}
	return nil
}

// Scan returns the next span ending at any of stops, without consuming it.
// Call Commit to consume it; otherwise the next Scan returns the same bytes
// again.
//
// The scan tracks the quote state from the consumed cursor, so consumed must
// sit at the start of a field or row. At the end of the data Scan returns the
// remaining bytes with Found false, or an empty span once nothing remains.
//
// ctx is checked only when the buffer has to be refilled. A context error
// makes the scanner unusable.
func (s *Scanner) Scan(ctx context.Context, stops ...byte) (Span, error) {
	if s.err != nil {
		return Span{}, s.err
	}
	s.compact()

	i := 0
	active := true
	for {
		for i < s.filled {
			i = skipWords(s.buf[:s.filled], i, s.quote, stops, active)
			if i >= s.filled {
				break
			}
			c := s.buf[i]
			i++
			if s.quote != 0 && c == s.quote {
				active = !active
				continue
			}
			if active && isStop(c, stops) {
				s.pending = i
				return Span{Data: s.buf[:i], Stop: c, Found: true}, nil
			}
		}

		if s.eof {
			s.pending = s.filled
			if s.filled == 0 {
				return Span{}, nil
			}
			return Span{Data: s.buf[:s.filled]}, nil
		}
		if s.filled == len(s.buf) {
			return Span{}, fmt.Errorf("%w: %d bytes without a stop byte", ErrBufferFull, len(s.buf))
		}
		if err := s.refill(ctx); err != nil {
			return Span{}, err
		}
	}
}

// Commit consumes the span returned by the last Scan.
func (s *Scanner) Commit() {
	s.consumed = s.pending
}

// AtEnd reports whether the source is exhausted and every buffered byte has
// been consumed. For sources of unknown length the end is only known after a
// refill has observed it.
func (s *Scanner) AtEnd() bool {
	return s.eof && s.consumed == s.filled
}

// Buffered returns the number of unconsumed bytes in the buffer.
func (s *Scanner) Buffered() int {
	return s.filled - s.consumed
}

// Position returns the source offset of the consumed cursor.
func (s *Scanner) Position() int64 {
	return s.pos - int64(s.filled-s.consumed)
}

// CanRestore reports whether Restore can succeed.
func (s *Scanner) CanRestore() bool {
	_, ok := s.src.(io.Seeker)
	return ok && s.length >= 0 && s.err == nil
}

// Restore seeks the source to pos, a value returned by Position, and drops
// the buffered bytes.
func (s *Scanner) Restore(pos int64) error {
	if s.err != nil {
		return s.err
	}
	seeker, ok := s.src.(io.Seeker)
	if !ok || s.length < 0 {
		return ErrNotSeekable
	}
	if _, err := seeker.Seek(pos, io.SeekStart); err != nil {
		return s.fail(fmt.Errorf("chunked: restore: %w", err))
	}
	s.consumed, s.filled, s.pending = 0, 0, 0
	s.pos = pos
	s.eof = pos >= s.length
	return nil
}

// Release returns the buffer to the pool. The scanner is unusable afterwards.
func (s *Scanner) Release() {
	if s.buf == nil {
		return
	}
	if s.pooled {
		putBuffer(s.buf)
	}
	s.buf = nil
	s.consumed, s.filled, s.pending = 0, 0, 0
	if s.err == nil {
		s.err = ErrReleased
	}
}

// Err returns the sticky error, if any.
func (s *Scanner) Err() error {
	return s.err
}

// compact moves the unconsumed bytes to the front of the buffer.
func (s *Scanner) compact() {
	if s.consumed == 0 {
		return
	}
	n := copy(s.buf, s.buf[s.consumed:s.filled])
	s.consumed = 0
	s.filled = n
	s.pending = 0
}

// refill reads min(buffer space, chunk size, bytes remaining) from the
// source. A partial chunk read before cancellation is discarded.
func (s *Scanner) refill(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return s.fail(err)
	}

	n := min(len(s.buf)-s.filled, s.chunkSize)
	if s.length >= 0 {
		n = int(min(int64(n), s.length-s.pos))
	}
	if n <= 0 {
		s.eof = true
		return nil
	}

	got, err := io.ReadFull(s.src, s.buf[s.filled:s.filled+n])
	if ctxErr := ctx.Err(); ctxErr != nil {
		return s.fail(ctxErr)
	}
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if s.length >= 0 {
			return s.fail(fmt.Errorf("%w: got %d of %d bytes at offset %d", ErrShortRead, got, n, s.pos))
		}
		s.eof = true
	default:
		return s.fail(fmt.Errorf("chunked: read: %w", err))
	}

	s.filled += got
	s.pos += int64(got)
	if s.length >= 0 && s.pos >= s.length {
		s.eof = true
	}
	if got > 0 && s.OnRefill != nil {
		s.OnRefill(got)
	}
	return nil
}

func (s *Scanner) fail(err error) error {
	s.err = err
	return err
}

func isStop(c byte, stops []byte) bool {
	for _, s := range stops {
		if c == s {
			return true
		}
	}
	return false
}
