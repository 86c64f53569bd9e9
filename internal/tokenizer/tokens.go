// Package tokenizer splits CSV text into rows of fields.
package tokenizer

// class is the role a single input byte plays in the row state machine.
//
// Note: The tokenizer only classifies bytes. Whether a delimiter or newline
// actually ends a field depends on the quote state tracked by the caller.
type class uint8

const (
	// Structural classes
	classComma   class = iota // field delimiter
	classQuote                // quote delimiter
	classNewline              // \n (line terminator)

	// Field content
	classField // any other byte
)

// String returns the name of the class.
func (c class) String() string {
	switch c {
	case classComma:
		return "Comma"
	case classQuote:
		return "Quote"
	case classNewline:
		return "Newline"
	default:
		return "Field"
	}
}

// classify returns the class of b under the given options.
// A zero Quote never matches, which disables quoting.
func classify(b byte, opts Options) class {
	switch {
	case opts.Quote != 0 && b == opts.Quote:
		return classQuote
	case b == opts.Comma:
		return classComma
	case b == '\n':
		return classNewline
	default:
		return classField
	}
}
