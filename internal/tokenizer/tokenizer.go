package tokenizer

// Options configures the tokenizer behavior.
type Options struct {
	// Comma is the field delimiter. Default: ','
	Comma byte
	// Quote is the quote delimiter. Zero disables quoting. Default: '"'
	Quote byte
}

// DefaultOptions returns default tokenizer options.
func DefaultOptions() Options {
	return Options{
		Comma: ',',
		Quote: '"',
	}
}

// noPrev marks the look-behind as empty (start of input, after a field
// delimiter or after a row end).
const noPrev = -1

// Tokenizer produces rows from an in-memory CSV fragment.
//
// It makes a single forward pass with one byte of look-behind. Every quote
// byte toggles whether delimiters are active. When a quote re-enters the
// quoted state directly after another quote, one literal quote is emitted,
// which gives RFC 4180 "" escaping without a separate escape mode.
//
// Input that does not end with '\n' behaves as if one were appended.
type Tokenizer struct {
	input string
	pos   int
	opts  Options

	line         int // newlines consumed so far
	startLine    int // 1-indexed line where the last row started
	unterminated bool
	terminated   bool

	field []byte
}

// New creates a tokenizer over input.
func New(input string, opts Options) *Tokenizer {
	return &Tokenizer{
		input: input,
		opts:  opts,
		field: make([]byte, 0, 64),
	}
}

// Next returns the next row. It returns false once the input is exhausted.
//
// A row always has at least one field. A trailing '\r' before the row's
// terminating '\n' is trimmed from the last field.
func (t *Tokenizer) Next() ([]string, bool) {
	if t.pos >= len(t.input) {
		return nil, false
	}

	t.startLine = t.line + 1
	t.unterminated = false
	t.terminated = false
	t.field = t.field[:0]

	row := make([]string, 0, 8)
	active := true
	prev := noPrev

	for t.pos < len(t.input) {
		c := t.input[t.pos]
		t.pos++
		cur := int(c)

		switch cls := classify(c, t.opts); {
		case cls == classQuote:
			active = !active
			if !active && cur == prev {
				t.field = append(t.field, c)
			}
		case active && cls == classComma:
			row = append(row, string(t.field))
			t.field = t.field[:0]
			cur = noPrev
		case active && cls == classNewline:
			t.line++
			t.trimCR(prev)
			row = append(row, string(t.field))
			t.terminated = true
			return row, true
		default:
			if c == '\n' {
				t.line++
			}
			t.field = append(t.field, c)
		}
		prev = cur
	}

	// End of input without a row-terminating newline.
	if active {
		t.trimCR(prev)
	} else {
		t.unterminated = true
	}
	row = append(row, string(t.field))
	return row, true
}

// trimCR drops a '\r' that directly preceded the row terminator.
func (t *Tokenizer) trimCR(prev int) {
	if prev == '\r' && len(t.field) > 0 {
		t.field = t.field[:len(t.field)-1]
	}
}

// Line returns the 1-indexed line where the last row ended.
func (t *Tokenizer) Line() int {
	if t.terminated {
		return t.line
	}
	return t.line + 1
}

// StartLine returns the 1-indexed line where the last row started.
func (t *Tokenizer) StartLine() int {
	return t.startLine
}

// Unterminated reports whether the last row ended inside an open quote.
func (t *Tokenizer) Unterminated() bool {
	return t.unterminated
}

// Terminated reports whether the last row ended with a real newline rather
// than at the end of the input.
func (t *Tokenizer) Terminated() bool {
	return t.terminated
}

// ParseRow tokenizes exactly one row from fragment. The fragment is the span
// between two scanner cursors; it normally ends with '\n' or with the field
// delimiter, or at the end of the data.
func ParseRow(fragment string, opts Options) (row []string, unterminated bool) {
	t := New(fragment, opts)
	row, ok := t.Next()
	if !ok {
		return []string{""}, false
	}
	return row, t.Unterminated()
}

// FirstRow returns the first newline-terminated row of input.
// It returns false if input contains no row-terminating newline.
func FirstRow(input string, opts Options) ([]string, bool) {
	t := New(input, opts)
	row, ok := t.Next()
	if !ok || !t.Terminated() {
		return nil, false
	}
	return row, true
}

// CountRows counts the rows in input without splitting fields. Only the
// quote state and newlines are inspected. Trailing data after the last
// newline counts as one row.
func CountRows(input string, quote byte) int {
	n := 0
	active := true
	tail := false
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case quote != 0 && c == quote:
			active = !active
			tail = true
		case active && c == '\n':
			n++
			tail = false
		default:
			tail = true
		}
	}
	if tail {
		n++
	}
	return n
}
