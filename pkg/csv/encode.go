package csv

// needsQuoting reports whether value must be quote-wrapped to survive a
// round trip: it contains the delimiter, the quote, CR or LF.
func needsQuoting(value string, comma, quote byte) bool {
	for i := 0; i < len(value); i++ {
		switch c := value[i]; {
		case c == comma, c == '\n', c == '\r':
			return true
		case quote != 0 && c == quote:
			return true
		}
	}
	return false
}

// appendField appends value to dst, quote-wrapped when needed. Embedded
// quotes are doubled. It reports false when the field needed quoting but
// quoting is disabled; the value is then appended as-is.
func appendField(dst []byte, value string, comma, quote byte) ([]byte, bool) {
	if !needsQuoting(value, comma, quote) {
		return append(dst, value...), true
	}
	if quote == 0 {
		return append(dst, value...), false
	}
	dst = append(dst, quote)
	for i := 0; i < len(value); i++ {
		if value[i] == quote {
			dst = append(dst, quote)
		}
		dst = append(dst, value[i])
	}
	return append(dst, quote), true
}

// appendRow encodes one row without its terminator. lossy holds the
// 0-indexed columns that needed quoting while quoting was disabled. Unless
// ignore is set the first such column fails the row.
func appendRow(dst []byte, row []string, comma, quote byte, ignore bool) (out []byte, lossy []int, err error) {
	for i, field := range row {
		if i > 0 {
			dst = append(dst, comma)
		}
		var ok bool
		dst, ok = appendField(dst, field, comma, quote)
		if !ok {
			if !ignore {
				return dst, nil, &ParseError{StartLine: 1, Line: 1, Column: i + 1, Err: ErrQuoteRequired}
			}
			lossy = append(lossy, i)
		}
	}
	return dst, lossy, nil
}

// FormatRow encodes row as a single CSV line, terminator included.
//
// Example:
//
//	line, _ := csv.FormatRow([]string{"a", `say "hi"`}, csv.DefaultOptions())
//	// line: a,"say ""hi"""\r\n
func FormatRow(row []string, opts Options) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	if len(row) == 0 {
		return "", &ParseError{StartLine: 1, Line: 1, Column: 1, Err: ErrEmptyRow}
	}
	line, _, err := appendRow(nil, row, byte(opts.Comma), byte(opts.Quote), opts.IgnoreErrors)
	if err != nil {
		return "", err
	}
	return string(line) + opts.lineEnding(), nil
}
