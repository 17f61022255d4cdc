package tcsi

import (
	"github.com/prometheus/client_golang/prometheus"

	"tcsicore/result"
)

// Collector exposes an Engine's result.Status as Prometheus metrics. It is
// an additive, read-only projection: the in-memory Status remains the
// source of truth, this only samples it on Collect.
type Collector struct {
	status *result.Status

	operationsDesc     *prometheus.Desc
	flashBurstsDesc    *prometheus.Desc
	readErrorsDesc     *prometheus.Desc
	writeErrorsDesc    *prometheus.Desc
	responseErrorsDesc *prometheus.Desc
}

// NewCollector builds a Collector sampling status, with metric names
// prefixed by namespace (e.g. "tcsicore").
func NewCollector(namespace string, status *result.Status) *Collector {
	return &Collector{
		status: status,
		operationsDesc: prometheus.NewDesc(
			namespace+"_operations_total", "Total TCSI request/response exchanges attempted.", nil, nil),
		flashBurstsDesc: prometheus.NewDesc(
			namespace+"_flash_burst_writes_total", "Total flash burst write sequences performed.", nil, nil),
		readErrorsDesc: prometheus.NewDesc(
			namespace+"_read_errors_total", "Read attempts currently retained in the read error history.", nil, nil),
		writeErrorsDesc: prometheus.NewDesc(
			namespace+"_write_errors_total", "Write attempts currently retained in the write error history.", nil, nil),
		responseErrorsDesc: prometheus.NewDesc(
			namespace+"_response_errors_total", "Responses currently retained in the response error history.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.operationsDesc
	descs <- c.flashBurstsDesc
	descs <- c.readErrorsDesc
	descs <- c.writeErrorsDesc
	descs <- c.responseErrorsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	snap := c.status.StatsCopy()

	metrics <- prometheus.MustNewConstMetric(c.operationsDesc, prometheus.CounterValue, float64(snap.OperationsCount))
	metrics <- prometheus.MustNewConstMetric(c.flashBurstsDesc, prometheus.CounterValue, float64(snap.FlashBurstWritesCount))
	metrics <- prometheus.MustNewConstMetric(c.readErrorsDesc, prometheus.GaugeValue, float64(len(snap.ReadErrors.Results())))
	metrics <- prometheus.MustNewConstMetric(c.writeErrorsDesc, prometheus.GaugeValue, float64(len(snap.WriteErrors.Results())))
	metrics <- prometheus.MustNewConstMetric(c.responseErrorsDesc, prometheus.GaugeValue, float64(len(snap.ResponseErrors.Results())))
}

var _ prometheus.Collector = &Collector{}
