package csv_test

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/shapestone/csvstream/pkg/csv"
)

func TestParseScenarios(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		modify     func(*csv.Options)
		wantHeader []string
		wantRows   [][]string
	}{
		{
			name:       "header and rows",
			input:      "col1,col2\na,b\nc,d\ne,f\n",
			wantHeader: []string{"col1", "col2"},
			wantRows:   [][]string{{"a", "b"}, {"c", "d"}, {"e", "f"}},
		},
		{
			name:       "offset and limit",
			input:      "col1,col2\na,b\nc,d\ne,f\n",
			modify:     func(o *csv.Options) { o.Offset = 1; o.Limit = 1 },
			wantHeader: []string{"col1", "col2"},
			wantRows:   [][]string{{"c", "d"}},
		},
		{
			name:       "quoted delimiter",
			input:      "a,\"b,c\"\n",
			modify:     func(o *csv.Options) { o.HasHeader = false },
			wantHeader: []string{"0", "1"},
			wantRows:   [][]string{{"a", "b,c"}},
		},
		{
			name:       "doubled quote",
			input:      "a,\"b\"\"c\"\n",
			modify:     func(o *csv.Options) { o.HasHeader = false },
			wantHeader: []string{"0", "1"},
			wantRows:   [][]string{{"a", "b\"c"}},
		},
		{
			name:       "crlf and missing final newline",
			input:      "h1,h2\r\n1,2\r\n3,4",
			wantHeader: []string{"h1", "h2"},
			wantRows:   [][]string{{"1", "2"}, {"3", "4"}},
		},
		{
			name:       "quoted newline",
			input:      "h\n\"line1\nline2\"\n",
			wantHeader: []string{"h"},
			wantRows:   [][]string{{"line1\nline2"}},
		},
		{
			name:       "semicolon",
			input:      "a;b\n1;2\n",
			modify:     func(o *csv.Options) { o.Comma = ';' },
			wantHeader: []string{"a", "b"},
			wantRows:   [][]string{{"1", "2"}},
		},
		{
			name:       "header only",
			input:      "x,y,z\n",
			wantHeader: []string{"x", "y", "z"},
			wantRows:   nil,
		},
		{
			name:       "known header",
			input:      "1,2\n3,4\n",
			modify:     func(o *csv.Options) { o.Header = []string{"a", "b"} },
			wantHeader: []string{"a", "b"},
			wantRows:   [][]string{{"1", "2"}, {"3", "4"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := csv.DefaultOptions()
			if tt.modify != nil {
				tt.modify(&opts)
			}

			check := func(t *testing.T, table *csv.Table) {
				t.Helper()
				if got := table.Header(); !reflect.DeepEqual(got, tt.wantHeader) {
					t.Errorf("Header() = %q, want %q", got, tt.wantHeader)
				}
				if got := table.Rows(); !reflect.DeepEqual(got, tt.wantRows) {
					t.Errorf("Rows() = %q, want %q", got, tt.wantRows)
				}
			}

			t.Run("string", func(t *testing.T) {
				table, err := csv.Parse(tt.input, opts)
				if err != nil {
					t.Fatalf("Parse() error = %v", err)
				}
				check(t, table)
			})

			t.Run("stream", func(t *testing.T) {
				small := opts
				small.BufferSize = 64
				small.ChunkSize = 4
				table, err := csv.ParseReader(iotest.OneByteReader(strings.NewReader(tt.input)), small)
				if err != nil {
					t.Fatalf("ParseReader() error = %v", err)
				}
				check(t, table)
			})
		})
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := csv.Parse("", csv.DefaultOptions())
	if !errors.Is(err, csv.ErrNoData) {
		t.Errorf("Parse(\"\") error = %v, want ErrNoData", err)
	}

	_, err = csv.ParseReader(strings.NewReader(""), csv.DefaultOptions())
	if !errors.Is(err, csv.ErrNoData) {
		t.Errorf("ParseReader(\"\") error = %v, want ErrNoData", err)
	}
}

func TestCountRowsEmpty(t *testing.T) {
	opts := csv.DefaultOptions()

	n, err := csv.CountRows("", opts)
	if !errors.Is(err, csv.ErrNoData) || !csv.IsDataError(err) || n != 0 {
		t.Errorf("CountRows(\"\") = %d, %v, want ErrNoData", n, err)
	}

	n, err = csv.CountRowsReader(context.Background(), strings.NewReader(""), opts)
	if !errors.Is(err, csv.ErrNoData) || n != 0 {
		t.Errorf("CountRowsReader(\"\") = %d, %v, want ErrNoData", n, err)
	}

	// A lone newline is data: one empty header row and no data rows.
	n, err = csv.CountRows("\n", opts)
	if err != nil || n != 0 {
		t.Errorf("CountRows(\"\\n\") = %d, %v, want 0, nil", n, err)
	}
}

func TestParseRowLength(t *testing.T) {
	for _, input := range []string{"a,b\n1\n", "a,b\n1,2,3\n"} {
		t.Run(strings.ReplaceAll(input, "\n", `\n`), func(t *testing.T) {
			_, err := csv.Parse(input, csv.DefaultOptions())
			var pe *csv.ParseError
			if !errors.As(err, &pe) || !errors.Is(err, csv.ErrFieldCount) {
				t.Fatalf("Parse() error = %v, want ParseError with ErrFieldCount", err)
			}
			if pe.Line != 2 {
				t.Errorf("ParseError.Line = %d, want 2", pe.Line)
			}
			if !csv.IsDataError(err) {
				t.Error("field count mismatch should be a data error")
			}

			opts := csv.DefaultOptions()
			opts.IgnoreErrors = true
			table, err := csv.Parse(input, opts)
			if err != nil {
				t.Fatalf("Parse(IgnoreErrors) error = %v", err)
			}
			if table.CountRows() != 1 {
				t.Errorf("CountRows() = %d, want 1", table.CountRows())
			}
		})
	}
}

func TestParseUnterminatedQuote(t *testing.T) {
	input := "a,b\n1,\"open\n"
	_, err := csv.Parse(input, csv.DefaultOptions())
	if !errors.Is(err, csv.ErrUnterminatedQuote) {
		t.Fatalf("Parse() error = %v, want ErrUnterminatedQuote", err)
	}

	_, err = csv.ParseReader(strings.NewReader(input), csv.DefaultOptions())
	if !errors.Is(err, csv.ErrUnterminatedQuote) {
		t.Fatalf("ParseReader() error = %v, want ErrUnterminatedQuote", err)
	}

	opts := csv.DefaultOptions()
	opts.IgnoreErrors = true
	table, err := csv.Parse(input, opts)
	if err != nil {
		t.Fatalf("Parse(IgnoreErrors) error = %v", err)
	}
	if got := table.Rows(); !reflect.DeepEqual(got, [][]string{{"1", "open\n"}}) {
		t.Errorf("Rows() = %q", got)
	}
}

func TestParseLimitValidation(t *testing.T) {
	input := "h\n1\n2\n3,bad\n"
	opts := csv.DefaultOptions()
	opts.Limit = 1

	// The string parser validates every row.
	if _, err := csv.Parse(input, opts); !errors.Is(err, csv.ErrFieldCount) {
		t.Errorf("Parse() error = %v, want ErrFieldCount", err)
	}

	// The stream parser stops reading once the limit is satisfied.
	table, err := csv.ParseReader(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ParseReader() error = %v", err)
	}
	if got := table.Rows(); !reflect.DeepEqual(got, [][]string{{"1"}}) {
		t.Errorf("Rows() = %q", got)
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   []string
		wantOK bool
	}{
		{"header only", "x,y,z\n", []string{"x", "y", "z"}, true},
		{"with rows", "x,y\n1,2\n", []string{"x", "y"}, true},
		{"no newline", "x,y,z", nil, false},
		{"empty", "", nil, false},
		{"quoted newline", "\"a\nb\",c\n", []string{"a\nb", "c"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := csv.ParseHeader(tt.input, csv.DefaultOptions())
			if err != nil {
				t.Fatalf("ParseHeader() error = %v", err)
			}
			if ok != tt.wantOK || !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseHeader() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}

			got, ok, err = csv.ParseHeaderReader(context.Background(), strings.NewReader(tt.input), csv.DefaultOptions())
			if err != nil {
				t.Fatalf("ParseHeaderReader() error = %v", err)
			}
			if ok != tt.wantOK || !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseHeaderReader() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCountRows(t *testing.T) {
	inputs := []string{
		"col1,col2\na,b\nc,d\ne,f\n",
		"col1,col2\na,b\nc,d\ne,f",
		"h\n\"multi\nline\"\nx\n",
		"h\r\n1\r\n2\r\n",
		"only\n",
	}

	for _, input := range inputs {
		t.Run(strings.ReplaceAll(input, "\n", `\n`), func(t *testing.T) {
			opts := csv.DefaultOptions()
			table, err := csv.Parse(input, opts)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			n, err := csv.CountRows(input, opts)
			if err != nil {
				t.Fatalf("CountRows() error = %v", err)
			}
			if n != table.CountRows() {
				t.Errorf("CountRows() = %d, want %d", n, table.CountRows())
			}

			small := opts
			small.BufferSize = 16
			small.ChunkSize = 4
			n, err = csv.CountRowsReader(context.Background(), strings.NewReader(input), small)
			if err != nil {
				t.Fatalf("CountRowsReader() error = %v", err)
			}
			if n != table.CountRows() {
				t.Errorf("CountRowsReader() = %d, want %d", n, table.CountRows())
			}
		})
	}

	t.Run("without header", func(t *testing.T) {
		opts := csv.DefaultOptions()
		opts.HasHeader = false
		n, err := csv.CountRows("a\nb\n", opts)
		if err != nil || n != 2 {
			t.Errorf("CountRows() = %d, %v, want 2", n, err)
		}
	})
}

func TestEnumerate(t *testing.T) {
	input := "a,b\n1\n2,3,4\n"
	want := [][]string{{"a", "b"}, {"1"}, {"2", "3", "4"}}

	var got [][]string
	for row, err := range csv.Enumerate(input, csv.DefaultOptions()) {
		if err != nil {
			t.Fatalf("Enumerate() error = %v", err)
		}
		got = append(got, row)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Enumerate() = %q, want %q", got, want)
	}

	got = nil
	for row, err := range csv.EnumerateReader(context.Background(), strings.NewReader(input), csv.DefaultOptions()) {
		if err != nil {
			t.Fatalf("EnumerateReader() error = %v", err)
		}
		got = append(got, row)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EnumerateReader() = %q, want %q", got, want)
	}
}

func TestEnumerateStopsEarly(t *testing.T) {
	n := 0
	for range csv.Enumerate("a\nb\nc\n", csv.DefaultOptions()) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterations = %d, want 2", n)
	}
}

func TestValidate(t *testing.T) {
	if err := csv.Validate("a,b\n1,2\n", csv.DefaultOptions()); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if err := csv.Validate("a,b\n1\n", csv.DefaultOptions()); err == nil {
		t.Error("Validate() = nil, want error")
	}
}

func TestFormat(t *testing.T) {
	opts := csv.DefaultOptions()
	opts.Header = []string{"name", "note"}

	got, err := csv.Format([][]string{{"Alice", "says \"hi\""}, {"Bob", "a,b"}}, opts)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "name,note\r\nAlice,\"says \"\"hi\"\"\"\r\nBob,\"a,b\"\r\n"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestFormatRow(t *testing.T) {
	tests := []struct {
		name   string
		row    []string
		modify func(*csv.Options)
		want   string
	}{
		{"plain", []string{"a", "b"}, nil, "a,b\r\n"},
		{"quote escaping", []string{"a", "\"b\""}, nil, "a,\"\"\"b\"\"\"\r\n"},
		{"newline", []string{"x\ny"}, nil, "\"x\ny\"\r\n"},
		{"carriage return", []string{"x\ry"}, nil, "\"x\ry\"\r\n"},
		{"empty fields", []string{"", ""}, nil, ",\r\n"},
		{"tab", []string{"a,b", "c"}, func(o *csv.Options) { o.Comma = '\t' }, "a,b\tc\r\n"},
		{"lf", []string{"a"}, func(o *csv.Options) { o.UseCRLF = false }, "a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := csv.DefaultOptions()
			if tt.modify != nil {
				tt.modify(&opts)
			}
			got, err := csv.FormatRow(tt.row, opts)
			if err != nil {
				t.Fatalf("FormatRow() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("FormatRow() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	rows := [][]string{
		{"id", "text"},
		{"1", "plain"},
		{"2", "comma, inside"},
		{"3", "quote \" inside"},
		{"4", "line\nbreak"},
		{"5", ""},
	}
	opts := csv.DefaultOptions()
	opts.HasHeader = false

	text, err := csv.Format(rows, opts)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	table, err := csv.Parse(text, opts)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := table.Rows(); !slices.EqualFunc(got, rows, slices.Equal) {
		t.Errorf("round trip = %q, want %q", got, rows)
	}
}
