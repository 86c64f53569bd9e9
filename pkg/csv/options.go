package csv

import (
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/shapestone/csvstream/internal/chunked"
	"github.com/shapestone/csvstream/internal/tokenizer"
)

// LegacyEncoding is the 8-bit code page used for data exported by older
// desktop software. Set Options.Encoding to it to read or write such files.
var LegacyEncoding encoding.Encoding = charmap.Windows1252

// Options configures CSV reading, writing and whole-document parsing.
// The same struct serves all three so a file can be read back with the
// options it was written with.
type Options struct {
	// Comma is the field delimiter.
	// It must be ASCII and not \r or \n.
	// Default: ','
	Comma rune

	// Quote is the quote delimiter. Zero disables quoting, after which a
	// field that needs quoting cannot be written.
	// Default: '"'
	Quote rune

	// HasHeader controls whether the first row is a header. Used by Parse,
	// CountRows and the writer's automatic header.
	// Default: true
	HasHeader bool

	// Header, if set, is the known header. A Reader with a Header will not
	// read one; a Writer writes it before the first row.
	Header []string

	// FieldsPerRecord is the expected number of fields per record.
	// If positive, each record must have exactly this many fields.
	// If 0, the header or the first record determines the expected count.
	// If negative, no field count validation is performed.
	// Default: 0
	FieldsPerRecord int

	// IgnoreErrors tolerates field count mismatches, unterminated quotes and
	// fields that need quoting while quoting is disabled. Each tolerated
	// failure is logged at warn level.
	// Default: false
	IgnoreErrors bool

	// UseCRLF controls whether to use \r\n (true) or \n (false) as the line
	// terminator when writing. Both are accepted when reading.
	// Default: true
	UseCRLF bool

	// BufferSize is the fixed read buffer size. It bounds the longest row.
	// Default: 81920
	BufferSize int

	// ChunkSize is the most bytes read from the source per refill.
	// It must not exceed BufferSize and must be at least 4.
	// Default: 4096
	ChunkSize int

	// LeaveOpen keeps the underlying reader or writer open on Close.
	// Default: false
	LeaveOpen bool

	// Encoding is the text encoding of the data. Nil means UTF-8, passed
	// through unchanged. Only ASCII-compatible encodings are supported.
	Encoding encoding.Encoding

	// Offset is the number of data rows Parse skips before collecting.
	Offset int

	// Limit is the most data rows Parse collects. Zero means unbounded.
	Limit int

	// Logger receives debug and warning events. Nil disables logging.
	Logger *zap.Logger

	// Metrics receives row, byte and error counts. Nil disables metrics.
	Metrics *Metrics
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		Comma:      ',',
		Quote:      '"',
		HasHeader:  true,
		UseCRLF:    true,
		BufferSize: chunked.DefaultBufferSize,
		ChunkSize:  chunked.DefaultChunkSize,
	}
}

// validDelim reports whether r can be scanned as a single raw byte.
func validDelim(r rune) bool {
	return r > 0 && r < 0x80 && r != '\r' && r != '\n'
}

// Validate checks if the options are valid.
func (o Options) Validate() error {
	if !validDelim(o.Comma) {
		return &OptionsError{Field: "Comma", Message: "invalid delimiter"}
	}
	if o.Quote != 0 && !validDelim(o.Quote) {
		return &OptionsError{Field: "Quote", Message: "invalid quote character"}
	}
	if o.Quote == o.Comma {
		return &OptionsError{Field: "Quote", Message: "quote character same as delimiter"}
	}
	chunk, buffer := o.chunkSize(), o.bufferSize()
	if chunk < chunked.MinChunkSize {
		return &OptionsError{Field: "ChunkSize", Message: "must be at least 4"}
	}
	if buffer < chunk {
		return &OptionsError{Field: "BufferSize", Message: "smaller than ChunkSize"}
	}
	if o.Offset < 0 {
		return &OptionsError{Field: "Offset", Message: "must not be negative"}
	}
	if o.Limit < 0 {
		return &OptionsError{Field: "Limit", Message: "must not be negative"}
	}
	if o.Header != nil {
		if len(o.Header) == 0 {
			return &OptionsError{Field: "Header", Message: "empty header"}
		}
		if o.FieldsPerRecord > 0 && len(o.Header) != o.FieldsPerRecord {
			return &OptionsError{Field: "Header", Message: "length differs from FieldsPerRecord"}
		}
	}
	return nil
}

func (o Options) bufferSize() int {
	if o.BufferSize == 0 {
		return chunked.DefaultBufferSize
	}
	return o.BufferSize
}

func (o Options) chunkSize() int {
	if o.ChunkSize == 0 {
		return min(chunked.DefaultChunkSize, o.bufferSize())
	}
	return o.ChunkSize
}

func (o Options) tokenizer() tokenizer.Options {
	return tokenizer.Options{Comma: byte(o.Comma), Quote: byte(o.Quote)}
}

func (o Options) scanner() chunked.Config {
	return chunked.Config{
		BufferSize: o.bufferSize(),
		ChunkSize:  o.chunkSize(),
		Quote:      byte(o.Quote),
	}
}

func (o Options) lineEnding() string {
	if o.UseCRLF {
		return "\r\n"
	}
	return "\n"
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// OptionsError represents an invalid option configuration.
type OptionsError struct {
	Field   string
	Message string
}

func (e *OptionsError) Error() string {
	return "csv: invalid " + e.Field + ": " + e.Message
}
