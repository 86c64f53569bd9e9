package csv

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// Column binds one CSV column to a value of T. Build columns with the
// helpers in this package (StringColumn, IntColumn, ...) or by hand.
type Column[T any] struct {
	// Index is the 0-indexed position of the column in a row.
	Index int
	// Name is the header name. Bind uses it to resolve Index.
	Name string
	// Decode stores value into dst. Nil skips the column when mapping rows
	// to values.
	Decode func(dst *T, value string) error
	// Encode renders the column from src. Nil writes an empty field.
	Encode func(src *T) (string, error)
	// PreValidate, if set, must accept the raw field before Decode runs.
	PreValidate func(value string) bool
	// PostValidate, if set, must accept dst after Decode ran.
	PostValidate func(dst *T) bool
}

// Mapping is an explicit, caller-owned binding between row positions and
// the fields of T. It replaces any form of type registry: every mapping
// call takes the Mapping it should use.
//
// Example:
//
//	type person struct {
//	    Name string
//	    Age  int
//	}
//
//	m, err := csv.NewMapping(
//	    csv.StringColumn(0, "name", func(p *person) *string { return &p.Name }),
//	    csv.IntColumn(1, "age", func(p *person) *int { return &p.Age }),
//	)
//	p, err := m.Map([]string{"Alice", "30"})
type Mapping[T any] struct {
	columns []Column[T]
}

// FieldError reports a field that could not be mapped.
type FieldError struct {
	// Line is the line of the row, when known (1-indexed).
	Line int
	// Column is the 0-indexed column.
	Column int
	// Name is the column name, if any.
	Name string
	// Value is the raw field.
	Value string
	// Err is the underlying error.
	Err error
}

func (e *FieldError) Error() string {
	col := fmt.Sprintf("column %d", e.Column)
	if e.Name != "" {
		col = fmt.Sprintf("column %d (%s)", e.Column, e.Name)
	}
	if e.Line > 0 {
		return fmt.Sprintf("csv: line %d, %s: %v", e.Line, col, e.Err)
	}
	return fmt.Sprintf("csv: %s: %v", col, e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// NewMapping creates a mapping from columns. Column indexes must be unique
// and not negative.
func NewMapping[T any](columns ...Column[T]) (*Mapping[T], error) {
	if len(columns) == 0 {
		return nil, usage("NewMapping", ErrNoColumns)
	}
	m := &Mapping[T]{columns: slices.Clone(columns)}
	if err := m.sort(); err != nil {
		return nil, err
	}
	return m, nil
}

// sort orders columns by index and rejects duplicates.
func (m *Mapping[T]) sort() error {
	slices.SortStableFunc(m.columns, func(a, b Column[T]) int { return cmp.Compare(a.Index, b.Index) })
	for i, c := range m.columns {
		if c.Index < 0 {
			return usage("Mapping", fmt.Errorf("%w: column %q has index %d", ErrInvalidIndex, c.Name, c.Index))
		}
		if i > 0 && m.columns[i-1].Index == c.Index {
			return usage("Mapping", fmt.Errorf("%w: duplicate column index %d", ErrInvalidIndex, c.Index))
		}
	}
	return nil
}

// Columns returns a copy of the columns ordered by index.
func (m *Mapping[T]) Columns() []Column[T] {
	return slices.Clone(m.columns)
}

// Width returns the row length the mapping produces: the highest column
// index plus one.
func (m *Mapping[T]) Width() int {
	return m.columns[len(m.columns)-1].Index + 1
}

// Header returns the column names laid out by index. Positions no column
// covers are named by their index.
func (m *Mapping[T]) Header() []string {
	header := positionalHeader(m.Width())
	for _, c := range m.columns {
		if c.Name != "" {
			header[c.Index] = c.Name
		}
	}
	return header
}

// Bind returns a copy of the mapping whose column indexes are looked up by
// Name in header. Columns without a name keep their index.
func (m *Mapping[T]) Bind(header []string) (*Mapping[T], error) {
	bound := &Mapping[T]{columns: slices.Clone(m.columns)}
	for i, c := range bound.columns {
		if c.Name == "" {
			continue
		}
		idx := slices.Index(header, c.Name)
		if idx < 0 {
			return nil, usage("Bind", fmt.Errorf("%w: no column %q", ErrNoColumns, c.Name))
		}
		bound.columns[i].Index = idx
	}
	if err := bound.sort(); err != nil {
		return nil, err
	}
	return bound, nil
}

// Map decodes row into a new T.
func (m *Mapping[T]) Map(row []string) (T, error) {
	var v T
	err := m.MapInto(row, &v)
	return v, err
}

// MapInto decodes row into dst. Each column runs PreValidate, Decode and
// PostValidate in that order; the first failure stops the mapping.
func (m *Mapping[T]) MapInto(row []string, dst *T) error {
	if row == nil {
		return &FieldError{Err: ErrEmptyRow}
	}
	for _, c := range m.columns {
		if c.Decode == nil {
			continue
		}
		if c.Index >= len(row) {
			return &FieldError{Column: c.Index, Name: c.Name, Err: fmt.Errorf("%w: row has %d fields", ErrFieldCount, len(row))}
		}
		value := row[c.Index]
		if c.PreValidate != nil && !c.PreValidate(value) {
			return &FieldError{Column: c.Index, Name: c.Name, Value: value, Err: fmt.Errorf("%w: rejected before decoding", ErrValidation)}
		}
		if err := c.Decode(dst, value); err != nil {
			return &FieldError{Column: c.Index, Name: c.Name, Value: value, Err: err}
		}
		if c.PostValidate != nil && !c.PostValidate(dst) {
			return &FieldError{Column: c.Index, Name: c.Name, Value: value, Err: fmt.Errorf("%w: rejected after decoding", ErrValidation)}
		}
	}
	return nil
}

// Unmap encodes src as a row of Width fields. Positions no column covers
// are empty.
func (m *Mapping[T]) Unmap(src *T) ([]string, error) {
	if src == nil {
		return nil, &FieldError{Err: ErrEmptyRow}
	}
	row := make([]string, m.Width())
	for _, c := range m.columns {
		if c.Encode == nil {
			continue
		}
		s, err := c.Encode(src)
		if err != nil {
			return nil, &FieldError{Column: c.Index, Name: c.Name, Err: err}
		}
		row[c.Index] = s
	}
	return row, nil
}

// MoveColumn updates the indexes after the table column at from moved to
// position to. It mirrors Table.MoveColumn.
func (m *Mapping[T]) MoveColumn(from, to int) error {
	if from < 0 || to < 0 {
		return usage("MoveColumn", ErrInvalidIndex)
	}
	for i := range m.columns {
		idx := &m.columns[i].Index
		switch {
		case *idx == from:
			*idx = to
		case from < to && *idx > from && *idx <= to:
			*idx--
		case from > to && *idx >= to && *idx < from:
			*idx++
		}
	}
	return m.sort()
}

// SwapColumns updates the indexes after table columns a and b were swapped.
func (m *Mapping[T]) SwapColumns(a, b int) error {
	if a < 0 || b < 0 {
		return usage("SwapColumns", ErrInvalidIndex)
	}
	for i := range m.columns {
		switch m.columns[i].Index {
		case a:
			m.columns[i].Index = b
		case b:
			m.columns[i].Index = a
		}
	}
	return m.sort()
}

// ReorderColumns updates the indexes after Table.ReorderColumns(order).
func (m *Mapping[T]) ReorderColumns(order []int) error {
	if !isPermutation(order, len(order)) {
		return usage("ReorderColumns", ErrInvalidIndex)
	}
	for _, c := range m.columns {
		if c.Index >= len(order) {
			return usage("ReorderColumns", fmt.Errorf("%w: column %d not in order", ErrInvalidIndex, c.Index))
		}
	}
	for i := range m.columns {
		m.columns[i].Index = order[m.columns[i].Index]
	}
	return m.sort()
}

// withLine stamps line onto a *FieldError.
func withLine(err error, line int) error {
	var fe *FieldError
	if errors.As(err, &fe) && fe.Line == 0 {
		fe.Line = line
	}
	return err
}
