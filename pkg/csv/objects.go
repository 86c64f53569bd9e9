package csv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
)

// ReadObject reads the next row and maps it to a T. It returns io.EOF at the
// end of the data.
func ReadObject[T any](r *Reader, m *Mapping[T]) (T, error) {
	return ReadObjectContext(context.Background(), r, m)
}

// ReadObjectContext is ReadObject with a context for the refill.
func ReadObjectContext[T any](ctx context.Context, r *Reader, m *Mapping[T]) (T, error) {
	var zero T
	row, err := r.ReadRowContext(ctx)
	if err != nil {
		return zero, err
	}
	v, err := m.Map(row)
	if err != nil {
		return zero, r.fail(withLine(err, r.Line()))
	}
	return v, nil
}

// ReadObjects returns an iterator mapping every remaining row to a T.
// Iteration stops after the first error, which is yielded.
func ReadObjects[T any](ctx context.Context, r *Reader, m *Mapping[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := ReadObjectContext(ctx, r, m)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// WriteObjects encodes each value with m and writes it as a row.
func WriteObjects[T any](w *Writer, m *Mapping[T], objs ...T) error {
	return WriteObjectsContext(context.Background(), w, m, objs...)
}

// WriteObjectsContext is WriteObjects with a context checked before each line.
func WriteObjectsContext[T any](ctx context.Context, w *Writer, m *Mapping[T], objs ...T) error {
	for i := range objs {
		row, err := m.Unmap(&objs[i])
		if err != nil {
			return w.fail(withLine(err, w.Line()+1))
		}
		if err := w.WriteRowsContext(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// TableObject maps data row index of t to a T.
func TableObject[T any](t *Table, index int, m *Mapping[T]) (T, error) {
	var zero T
	row, ok := t.Row(index)
	if !ok {
		return zero, usage("TableObject", ErrInvalidIndex)
	}
	v, err := m.Map(row)
	if err != nil {
		return zero, withLine(err, index+1)
	}
	return v, nil
}

// TableObjects maps every data row of t to a T.
func TableObjects[T any](t *Table, m *Mapping[T]) ([]T, error) {
	out := make([]T, 0, t.CountRows())
	for i := range t.CountRows() {
		v, err := TableObject(t, i, m)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// AddObjects encodes each value with m and appends it to t.
func AddObjects[T any](t *Table, m *Mapping[T], objs ...T) error {
	for i := range objs {
		row, err := m.Unmap(&objs[i])
		if err != nil {
			return err
		}
		if err := t.AddRow(row...); err != nil {
			return err
		}
	}
	return nil
}

// ObjectType is one named entry of an ObjectTypes set. Build it with
// ObjectTypeOf.
type ObjectType struct {
	// Name is written as the first field of every row of this type.
	Name string

	decode func(fields []string) (any, error)
	encode func(v any) ([]string, bool, error)
}

// ObjectTypeOf describes values of type T (or *T) under name, encoded
// with m.
func ObjectTypeOf[T any](name string, m *Mapping[T]) ObjectType {
	return ObjectType{
		Name: name,
		decode: func(fields []string) (any, error) {
			return m.Map(fields)
		},
		encode: func(v any) ([]string, bool, error) {
			switch x := v.(type) {
			case T:
				row, err := m.Unmap(&x)
				return row, true, err
			case *T:
				row, err := m.Unmap(x)
				return row, true, err
			}
			return nil, false, nil
		},
	}
}

// ObjectTypes is a caller-owned set of named object codecs for files whose
// rows hold values of different types. Every such row starts with the type
// name; an empty line stands for a nil value.
type ObjectTypes struct {
	types  []ObjectType
	byName map[string]int
}

// NewObjectTypes creates a set from types. Names must be unique and not
// empty.
func NewObjectTypes(types ...ObjectType) (*ObjectTypes, error) {
	o := &ObjectTypes{byName: make(map[string]int, len(types))}
	for _, t := range types {
		if t.Name == "" || t.decode == nil {
			return nil, usage("NewObjectTypes", errors.New("object type needs a name and a mapping"))
		}
		if _, dup := o.byName[t.Name]; dup {
			return nil, usage("NewObjectTypes", fmt.Errorf("duplicate object type %q", t.Name))
		}
		o.byName[t.Name] = len(o.types)
		o.types = append(o.types, t)
	}
	return o, nil
}

// Lookup returns the type registered under name.
func (o *ObjectTypes) Lookup(name string) (ObjectType, bool) {
	i, ok := o.byName[name]
	if !ok {
		return ObjectType{}, false
	}
	return o.types[i], true
}

// encode finds the first type that accepts v and returns its row.
func (o *ObjectTypes) encode(v any) ([]string, error) {
	for _, t := range o.types {
		fields, ok, err := t.encode(v)
		if err != nil {
			return nil, err
		}
		if ok {
			return append([]string{t.Name}, fields...), nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownObjectType, v)
}

// ReadObjectRow reads the next row as a typed object: the first field names
// the type, the rest are decoded by that type's mapping. An empty line
// yields a nil value. Field count validation does not apply to object rows.
//
// The type name is looked up with PeekField before the row is consumed; a
// row naming an unknown type is still consumed.
func (r *Reader) ReadObjectRow(types *ObjectTypes) (any, error) {
	return r.ReadObjectRowContext(context.Background(), types)
}

// ReadObjectRowContext is ReadObjectRow with a context for the refill.
func (r *Reader) ReadObjectRowContext(ctx context.Context, types *ObjectTypes) (any, error) {
	name, ok, err := r.PeekFieldContext(ctx)
	if err != nil {
		return nil, err
	}

	row, start, err := r.readLine(ctx)
	if err != nil {
		return nil, err
	}
	r.rows++
	r.opts.Metrics.rowRead()

	if !ok {
		name = row[0]
		if name == "" && len(row) == 1 {
			return nil, nil
		}
	}
	t, found := types.Lookup(name)
	if !found {
		return nil, r.fail(&ParseError{
			StartLine: start,
			Line:      r.line,
			Column:    1,
			Err:       fmt.Errorf("%w: %q", ErrUnknownObjectType, name),
		})
	}
	v, err := t.decode(row[1:])
	if err != nil {
		return nil, r.fail(withLine(err, start))
	}
	return v, nil
}

// WriteObjectRow writes v as a typed object row: the type name followed by
// the fields of its mapping. A nil v writes an empty line. Field count
// validation does not apply to object rows.
func (w *Writer) WriteObjectRow(types *ObjectTypes, v any) error {
	return w.WriteObjectRowContext(context.Background(), types, v)
}

// WriteObjectRowContext is WriteObjectRow with a context checked before the write.
func (w *Writer) WriteObjectRowContext(ctx context.Context, types *ObjectTypes, v any) error {
	if err := w.check("WriteObjectRow"); err != nil {
		return err
	}
	if v == nil {
		return w.WriteEmptyLineContext(ctx)
	}
	row, err := types.encode(v)
	if err != nil {
		return w.fail(withLine(err, w.line+1))
	}
	if err := w.writeFields(ctx, row); err != nil {
		return err
	}
	w.rows++
	return nil
}
