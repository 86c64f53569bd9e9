package csv

import (
	"regexp"
	"strings"

	"github.com/shapestone/csvstream/internal/tokenizer"
)

// sniffDelimiters are the candidates Sniff considers, in order of
// preference on ties.
var sniffDelimiters = []rune{',', '\t', ';', '|'}

var (
	headerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`),       // identifier
		regexp.MustCompile(`^[A-Z][a-z]+([ ][A-Z][a-z]+)*$`), // Title Case
	}
	dataPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^-?\d+(\.\d+)?$`),
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`),
		regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`),
		regexp.MustCompile(`@`),
	}
)

// Sniff guesses the dialect of sample, typically the first few kilobytes of
// a file. It returns DefaultOptions with Comma and HasHeader set from the
// guess. A trailing partial row in sample is ignored.
//
// The delimiter is the candidate that splits the rows into the most fields
// with the same count on every row. The first row is taken for a header
// when more of its fields look like names than like values.
func Sniff(sample string) Options {
	opts := DefaultOptions()
	best, bestScore := ',', 0
	var bestRows [][]string
	for _, d := range sniffDelimiters {
		rows := sniffRows(sample, tokenizer.Options{Comma: byte(d), Quote: '"'})
		if score := delimiterScore(rows); score > bestScore {
			best, bestScore, bestRows = d, score, rows
		}
	}
	opts.Comma = best
	opts.HasHeader = looksLikeHeader(bestRows)
	return opts
}

// sniffRows tokenizes sample, dropping an unterminated last row and blank
// lines.
func sniffRows(sample string, opts tokenizer.Options) [][]string {
	tok := tokenizer.New(sample, opts)
	var rows [][]string
	for {
		row, ok := tok.Next()
		if !ok {
			break
		}
		if !tok.Terminated() && len(rows) > 0 {
			break
		}
		if len(row) == 1 && row[0] == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// delimiterScore rewards wide rows and, ten times over, consistent widths.
func delimiterScore(rows [][]string) int {
	if len(rows) == 0 || len(rows[0]) < 2 {
		return 0
	}
	width := len(rows[0])
	for _, row := range rows[1:] {
		if len(row) != width {
			return width - 1
		}
	}
	return (width - 1) * 10
}

func looksLikeHeader(rows [][]string) bool {
	if len(rows) < 2 {
		return false
	}
	names, values := 0, 0
	for _, f := range rows[0] {
		f = strings.TrimSpace(f)
		switch {
		case f == "":
		case matchesAny(dataPatterns, f):
			values++
		case matchesAny(headerPatterns, f):
			names++
		}
	}
	return names > values
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
