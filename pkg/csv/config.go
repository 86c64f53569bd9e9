package csv

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"
)

// Config is the serializable form of Options, loaded from YAML and
// overridden from the environment. Delimiters are single-character strings;
// an empty Quote disables quoting. Encoding takes a WHATWG label such as
// "windows-1252" or "latin1"; empty or "utf-8" means UTF-8.
//
//	comma: ";"
//	has_header: true
//	encoding: windows-1252
//	buffer_size: 65536
type Config struct {
	Comma           string   `yaml:"comma" env:"COMMA"`
	Quote           string   `yaml:"quote" env:"QUOTE"`
	HasHeader       bool     `yaml:"has_header" env:"HAS_HEADER"`
	Header          []string `yaml:"header" env:"HEADER"`
	FieldsPerRecord int      `yaml:"fields_per_record" env:"FIELDS_PER_RECORD"`
	IgnoreErrors    bool     `yaml:"ignore_errors" env:"IGNORE_ERRORS"`
	UseCRLF         bool     `yaml:"use_crlf" env:"USE_CRLF"`
	BufferSize      int      `yaml:"buffer_size" env:"BUFFER_SIZE"`
	ChunkSize       int      `yaml:"chunk_size" env:"CHUNK_SIZE"`
	LeaveOpen       bool     `yaml:"leave_open" env:"LEAVE_OPEN"`
	Encoding        string   `yaml:"encoding" env:"ENCODING"`
	Offset          int      `yaml:"offset" env:"OFFSET"`
	Limit           int      `yaml:"limit" env:"LIMIT"`
}

// DefaultConfig returns the Config equivalent of DefaultOptions.
func DefaultConfig() *Config {
	o := DefaultOptions()
	return &Config{
		Comma:      string(o.Comma),
		Quote:      string(o.Quote),
		HasHeader:  o.HasHeader,
		UseCRLF:    o.UseCRLF,
		BufferSize: o.BufferSize,
		ChunkSize:  o.ChunkSize,
	}
}

// ParseConfig decodes YAML over DefaultConfig, so absent keys keep their
// defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("csv: parse config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads and decodes the YAML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("csv: read config: %w", err)
	}
	return ParseConfig(data)
}

// ApplyEnv overrides fields from environment variables named
// prefix + "_" + the field's env tag, e.g. CSV_COMMA. Unset or empty
// variables are skipped. Header takes a comma-separated list.
func (c *Config) ApplyEnv(prefix string) error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := range v.NumField() {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		if err := setField(v.Field(i), value); err != nil {
			return fmt.Errorf("csv: env %s: %w", key, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// Options converts the config to validated Options. Logger and Metrics are
// left for the caller to set.
func (c *Config) Options() (Options, error) {
	o := DefaultOptions()

	comma, err := delimiter("Comma", c.Comma)
	if err != nil {
		return Options{}, err
	}
	if comma == 0 {
		return Options{}, &OptionsError{Field: "Comma", Message: "empty delimiter"}
	}
	quote, err := delimiter("Quote", c.Quote)
	if err != nil {
		return Options{}, err
	}
	enc, err := lookupEncoding(c.Encoding)
	if err != nil {
		return Options{}, err
	}

	o.Comma = comma
	o.Quote = quote
	o.HasHeader = c.HasHeader
	if len(c.Header) > 0 {
		o.Header = c.Header
	}
	o.FieldsPerRecord = c.FieldsPerRecord
	o.IgnoreErrors = c.IgnoreErrors
	o.UseCRLF = c.UseCRLF
	o.BufferSize = c.BufferSize
	o.ChunkSize = c.ChunkSize
	o.LeaveOpen = c.LeaveOpen
	o.Encoding = enc
	o.Offset = c.Offset
	o.Limit = c.Limit

	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

// delimiter returns the single rune of s, or 0 for an empty s.
func delimiter(field, s string) (rune, error) {
	if s == "" {
		return 0, nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) {
		return 0, &OptionsError{Field: field, Message: fmt.Sprintf("%q is not a single character", s)}
	}
	return r, nil
}

// lookupEncoding resolves a WHATWG encoding label. UTF-8 maps to nil.
func lookupEncoding(label string) (encoding.Encoding, error) {
	if label == "" {
		return nil, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, &OptionsError{Field: "Encoding", Message: fmt.Sprintf("unknown encoding %q", label)}
	}
	name, _ := htmlindex.Name(enc)
	if name == "utf-8" {
		return nil, nil
	}
	if strings.HasPrefix(name, "utf-16") {
		return nil, &OptionsError{Field: "Encoding", Message: name + " is not ASCII-compatible"}
	}
	return enc, nil
}
