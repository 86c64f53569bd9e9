package csv

import (
	"errors"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts reader and writer activity. A nil *Metrics is valid and
// records nothing, so sessions call it unconditionally.
type Metrics struct {
	rowsRead    prometheus.Counter
	rowsWritten prometheus.Counter
	bytesRead   prometheus.Counter
	refills     prometheus.Counter
	tolerated   *prometheus.CounterVec
	errors      *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg. A nil reg
// creates unregistered counters.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rowsRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "csv",
			Name:      "rows_read_total",
			Help:      "Total number of rows read",
		}),
		rowsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "csv",
			Name:      "rows_written_total",
			Help:      "Total number of rows written, header included",
		}),
		bytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "csv",
			Name:      "bytes_read_total",
			Help:      "Total number of bytes read from sources",
		}),
		refills: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "csv",
			Name:      "refills_total",
			Help:      "Total number of read buffer refills",
		}),
		tolerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "csv",
				Name:      "tolerated_total",
				Help:      "Total number of failures tolerated in ignore-errors mode",
			},
			[]string{"reason"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "csv",
				Name:      "errors_total",
				Help:      "Total number of errors returned",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) rowRead() {
	if m != nil {
		m.rowsRead.Inc()
	}
}

func (m *Metrics) rowWritten() {
	if m != nil {
		m.rowsWritten.Inc()
	}
}

func (m *Metrics) refilled(n int) {
	if m != nil {
		m.refills.Inc()
		m.bytesRead.Add(float64(n))
	}
}

func (m *Metrics) tolerate(reason string) {
	if m != nil {
		m.tolerated.WithLabelValues(reason).Inc()
	}
}

// observe counts err by kind and returns it. io.EOF is not an error.
func (m *Metrics) observe(err error) error {
	if m != nil && err != nil && !errors.Is(err, io.EOF) {
		m.errors.WithLabelValues(errorKind(err)).Inc()
	}
	return err
}
