package csv

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The column helpers below take an accessor returning a pointer to the
// field of T they bind, which serves both decoding and encoding. Empty
// fields decode to the zero value.

// StringColumn binds a string field.
func StringColumn[T any](index int, name string, field func(*T) *string) Column[T] {
	return Column[T]{
		Index: index,
		Name:  name,
		Decode: func(dst *T, value string) error {
			*field(dst) = value
			return nil
		},
		Encode: func(src *T) (string, error) {
			return *field(src), nil
		},
	}
}

// IntColumn binds an int field, parsed in base 10.
func IntColumn[T any](index int, name string, field func(*T) *int) Column[T] {
	return Column[T]{
		Index: index,
		Name:  name,
		Decode: func(dst *T, value string) error {
			n, err := parseInt(value, strconv.IntSize)
			*field(dst) = int(n)
			return err
		},
		Encode: func(src *T) (string, error) {
			return strconv.Itoa(*field(src)), nil
		},
	}
}

// Int64Column binds an int64 field, parsed in base 10.
func Int64Column[T any](index int, name string, field func(*T) *int64) Column[T] {
	return Column[T]{
		Index: index,
		Name:  name,
		Decode: func(dst *T, value string) error {
			n, err := parseInt(value, 64)
			*field(dst) = n
			return err
		},
		Encode: func(src *T) (string, error) {
			return strconv.FormatInt(*field(src), 10), nil
		},
	}
}

// FloatColumn binds a float64 field.
func FloatColumn[T any](index int, name string, field func(*T) *float64) Column[T] {
	return Column[T]{
		Index: index,
		Name:  name,
		Decode: func(dst *T, value string) error {
			f, err := parseFloat(value)
			*field(dst) = f
			return err
		},
		Encode: func(src *T) (string, error) {
			return strconv.FormatFloat(*field(src), 'g', -1, 64), nil
		},
	}
}

// BoolColumn binds a bool field.
// Recognizes: true/false, 1/0, yes/no, y/n, on/off, t/f (case-insensitive)
func BoolColumn[T any](index int, name string, field func(*T) *bool) Column[T] {
	return Column[T]{
		Index: index,
		Name:  name,
		Decode: func(dst *T, value string) error {
			b, err := parseBool(value)
			*field(dst) = b
			return err
		},
		Encode: func(src *T) (string, error) {
			return strconv.FormatBool(*field(src)), nil
		},
	}
}

// BytesColumn binds a []byte field stored as standard base64. An empty
// field decodes to nil.
func BytesColumn[T any](index int, name string, field func(*T) *[]byte) Column[T] {
	return Column[T]{
		Index: index,
		Name:  name,
		Decode: func(dst *T, value string) error {
			if value == "" {
				*field(dst) = nil
				return nil
			}
			b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
			if err != nil {
				return fmt.Errorf("cannot decode %q as base64: %w", value, err)
			}
			*field(dst) = b
			return nil
		},
		Encode: func(src *T) (string, error) {
			b := *field(src)
			if b == nil {
				return "", nil
			}
			return base64.StdEncoding.EncodeToString(b), nil
		},
	}
}

// TimeColumn binds a time.Time field using layout (default: time.RFC3339).
// Values are parsed in UTC unless the layout carries a zone.
func TimeColumn[T any](index int, name, layout string, field func(*T) *time.Time) Column[T] {
	if layout == "" {
		layout = time.RFC3339
	}
	return Column[T]{
		Index: index,
		Name:  name,
		Decode: func(dst *T, value string) error {
			if value == "" {
				*field(dst) = time.Time{}
				return nil
			}
			t, err := time.ParseInLocation(layout, strings.TrimSpace(value), time.UTC)
			if err != nil {
				return err
			}
			*field(dst) = t
			return nil
		},
		Encode: func(src *T) (string, error) {
			t := *field(src)
			if t.IsZero() {
				return "", nil
			}
			return t.Format(layout), nil
		},
	}
}

func parseInt(value string, bits int) (int64, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(strings.TrimSpace(value), 10, bits)
}

func parseFloat(value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}

func parseBool(value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y", "on", "t":
		return true, nil
	case "false", "0", "no", "n", "off", "f":
		return false, nil
	default:
		return false, fmt.Errorf("cannot convert %q to bool", value)
	}
}
