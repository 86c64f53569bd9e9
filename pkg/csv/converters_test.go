package csv_test

import (
	"testing"
	"time"

	"github.com/shapestone/csvstream/pkg/csv"
)

type sample struct {
	Name    string
	Count   int
	Big     int64
	Ratio   float64
	Enabled bool
	Blob    []byte
	When    time.Time
}

func sampleMapping(t *testing.T) *csv.Mapping[sample] {
	t.Helper()
	m, err := csv.NewMapping(
		csv.StringColumn(0, "name", func(s *sample) *string { return &s.Name }),
		csv.IntColumn(1, "count", func(s *sample) *int { return &s.Count }),
		csv.Int64Column(2, "big", func(s *sample) *int64 { return &s.Big }),
		csv.FloatColumn(3, "ratio", func(s *sample) *float64 { return &s.Ratio }),
		csv.BoolColumn(4, "enabled", func(s *sample) *bool { return &s.Enabled }),
		csv.BytesColumn(5, "blob", func(s *sample) *[]byte { return &s.Blob }),
		csv.TimeColumn(6, "when", "", func(s *sample) *time.Time { return &s.When }),
	)
	if err != nil {
		t.Fatalf("NewMapping() error = %v", err)
	}
	return m
}

func TestIntColumn(t *testing.T) {
	m := sampleMapping(t)

	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"123", 123, false},
		{"-456", -456, false},
		{"0", 0, false},
		{"", 0, false},
		{"  42  ", 42, false},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := m.Map([]string{"", tt.input, "", "", "", "", ""})
			if (err != nil) != tt.wantErr {
				t.Errorf("Map(count=%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.Count != tt.want {
				t.Errorf("Map(count=%q).Count = %v, want %v", tt.input, got.Count, tt.want)
			}
		})
	}
}

func TestFloatColumn(t *testing.T) {
	m := sampleMapping(t)

	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"3.14", 3.14, false},
		{"-2.5", -2.5, false},
		{"1e3", 1000, false},
		{"", 0, false},
		{"x1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := m.Map([]string{"", "", "", tt.input, "", "", ""})
			if (err != nil) != tt.wantErr {
				t.Errorf("Map(ratio=%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.Ratio != tt.want {
				t.Errorf("Map(ratio=%q).Ratio = %v, want %v", tt.input, got.Ratio, tt.want)
			}
		})
	}
}

func TestBoolColumn(t *testing.T) {
	m := sampleMapping(t)

	tests := []struct {
		input   string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"TRUE", true, false},
		{"1", true, false},
		{"yes", true, false},
		{"y", true, false},
		{"on", true, false},
		{"t", true, false},
		{"false", false, false},
		{"0", false, false},
		{"no", false, false},
		{"n", false, false},
		{"off", false, false},
		{"f", false, false},
		{"", false, false},
		{"maybe", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := m.Map([]string{"", "", "", "", tt.input, "", ""})
			if (err != nil) != tt.wantErr {
				t.Errorf("Map(enabled=%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got.Enabled != tt.want {
				t.Errorf("Map(enabled=%q).Enabled = %v, want %v", tt.input, got.Enabled, tt.want)
			}
		})
	}
}

func TestBytesColumn(t *testing.T) {
	m := sampleMapping(t)

	got, err := m.Map([]string{"", "", "", "", "", "aGVsbG8=", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.Blob) != "hello" {
		t.Errorf("Blob = %q, want %q", got.Blob, "hello")
	}

	if _, err := m.Map([]string{"", "", "", "", "", "!!", ""}); err == nil {
		t.Error("expected error for invalid base64")
	}

	row, err := m.Unmap(&sample{Blob: []byte("hi")})
	if err != nil {
		t.Fatalf("Unmap() error = %v", err)
	}
	if row[5] != "aGk=" {
		t.Errorf("Unmap().blob = %q, want %q", row[5], "aGk=")
	}
}

func TestTimeColumn(t *testing.T) {
	m := sampleMapping(t)

	got, err := m.Map([]string{"", "", "", "", "", "", "2024-01-15T10:30:00Z"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	if !got.When.Equal(want) {
		t.Errorf("When = %v, want %v", got.When, want)
	}

	row, err := m.Unmap(&got)
	if err != nil {
		t.Fatalf("Unmap() error = %v", err)
	}
	if row[6] != "2024-01-15T10:30:00Z" {
		t.Errorf("Unmap().when = %q", row[6])
	}

	zero, err := m.Unmap(&sample{})
	if err != nil {
		t.Fatalf("Unmap() error = %v", err)
	}
	if zero[6] != "" {
		t.Errorf("zero time encoded as %q, want empty", zero[6])
	}
}

func TestTimeColumnCustomLayout(t *testing.T) {
	m, err := csv.NewMapping(
		csv.TimeColumn(0, "day", "2006-01-02", func(s *sample) *time.Time { return &s.When }),
	)
	if err != nil {
		t.Fatalf("NewMapping() error = %v", err)
	}
	got, err := m.Map([]string{"2024-03-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.When.Month() != time.March || got.When.Day() != 1 {
		t.Errorf("When = %v, want 2024-03-01", got.When)
	}
}

func TestColumnsRoundTrip(t *testing.T) {
	m := sampleMapping(t)
	in := sample{
		Name:    "widget, large",
		Count:   7,
		Big:     1 << 40,
		Ratio:   0.25,
		Enabled: true,
		Blob:    []byte{0, 1, 2},
		When:    time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC),
	}

	row, err := m.Unmap(&in)
	if err != nil {
		t.Fatalf("Unmap() error = %v", err)
	}
	out, err := m.Map(row)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if out.Name != in.Name || out.Count != in.Count || out.Big != in.Big ||
		out.Ratio != in.Ratio || out.Enabled != in.Enabled ||
		string(out.Blob) != string(in.Blob) || !out.When.Equal(in.When) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}
