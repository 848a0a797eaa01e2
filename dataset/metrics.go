package dataset

import (
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	tasks        prometheus.Counter
	batches      prometheus.Counter
	rows         prometheus.Counter
	taskDuration prometheus.Histogram
}

// NewMetrics creates scan metrics and registers them with reg.
// A nil registerer creates unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		tasks: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataset_scan_tasks_total",
			Help: "Total number of executed scan tasks.",
		}),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataset_scan_batches_total",
			Help: "Total number of record batches produced by scans.",
		}),
		rows: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataset_scan_rows_total",
			Help: "Total number of rows produced by scans.",
		}),
		taskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataset_scan_task_duration_seconds",
			Help:    "Time spent consuming a single scan task.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

// instrumentedIterator records metrics for the batches of one task.
type instrumentedIterator struct {
	iterator RecordBatchIterator
	metrics  *Metrics
	start    time.Time
	done     bool
}

func (m *Metrics) instrument(it RecordBatchIterator) RecordBatchIterator {
	if m == nil {
		return it
	}
	m.tasks.Inc()
	return &instrumentedIterator{iterator: it, metrics: m, start: time.Now()}
}

func (i *instrumentedIterator) NextBatch() (arrow.Record, error) {
	rec, err := i.iterator.NextBatch()
	if err != nil {
		i.observe()
		return nil, err
	}
	i.metrics.batches.Inc()
	i.metrics.rows.Add(float64(rec.NumRows()))
	return rec, nil
}

func (i *instrumentedIterator) observe() {
	if i.done {
		return
	}
	i.done = true
	i.metrics.taskDuration.Observe(time.Since(i.start).Seconds())
}

func (i *instrumentedIterator) Close() error {
	i.observe()
	return i.iterator.Close()
}
