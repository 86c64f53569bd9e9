package csv

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetricsReader(t *testing.T) {
	const input = "a,b\n1,2\n3\n4,5\n"

	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	core, logs := observer.New(zapcore.WarnLevel)

	opts := DefaultOptions()
	opts.IgnoreErrors = true
	opts.Metrics = m
	opts.Logger = zap.New(core)

	r, err := NewReader(strings.NewReader(input), opts)
	require.NoError(t, err)
	_, err = r.ReadHeader()
	require.NoError(t, err)
	for {
		if _, err := r.ReadRow(); errors.Is(err, io.EOF) {
			break
		} else {
			require.NoError(t, err)
		}
	}
	require.NoError(t, r.Close())

	assert.Equal(t, 3.0, testutil.ToFloat64(m.rowsRead), "header is not a row")
	assert.Equal(t, float64(len(input)), testutil.ToFloat64(m.bytesRead))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.refills), 1.0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tolerated.WithLabelValues("field_count")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.errors.WithLabelValues("data")), "io.EOF and tolerated rows are not errors")

	warnings := logs.FilterMessage("tolerated malformed row").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "csv.reader", warnings[0].ContextMap()["component"])
	assert.NotEmpty(t, warnings[0].ContextMap()["session"])
}

func TestMetricsErrorKinds(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())
	opts := DefaultOptions()
	opts.Metrics = m

	r, err := NewReader(strings.NewReader("a,b\n1\n"), opts)
	require.NoError(t, err)
	_, err = r.ReadHeader()
	require.NoError(t, err)
	_, err = r.ReadRow()
	assert.ErrorIs(t, err, ErrFieldCount)
	require.NoError(t, r.Close())
	_, err = r.ReadRow()
	assert.ErrorIs(t, err, ErrClosed)

	w, err := NewWriter(failWriter{}, opts)
	require.NoError(t, err)
	assert.Error(t, w.WriteRows([]string{"x"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("usage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("io")))
}

func TestMetricsWriter(t *testing.T) {
	m := NewMetrics("test", nil)
	opts := DefaultOptions()
	opts.Metrics = m
	opts.Header = []string{"a"}

	var sb strings.Builder
	w, err := NewWriter(&sb, opts)
	require.NoError(t, err)
	require.NoError(t, w.WriteRows([]string{"1"}, []string{"2"}))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rowsWritten), "header counts as written")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.rowRead()
	m.rowWritten()
	m.refilled(10)
	m.tolerate("field_count")
	err := errors.New("boom")
	assert.Equal(t, err, m.observe(err))
}

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics("app", reg)
	assert.Panics(t, func() { NewMetrics("app", reg) }, "duplicate registration")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "app_csv_rows_read_total")
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestMetricsAtEndDoesNotCountErrors(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())
	opts := DefaultOptions()
	opts.Metrics = m
	opts.BufferSize = 8
	opts.ChunkSize = 4

	r, err := NewReader(strings.NewReader("this row is far too long\n"), opts)
	require.NoError(t, err)
	defer r.Close()

	assert.False(t, r.AtEnd())
	_, err = r.ReadRow()
	assert.ErrorIs(t, err, ErrRecordTooLarge)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("data")))
}
