package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and records the application counters.
type Collector struct {
	scans         prometheus.Counter
	sessions      prometheus.Counter
	sweepDeleted  *prometheus.CounterVec
	exports       prometheus.Counter
	exportRows    prometheus.Counter
	notifications *prometheus.CounterVec
}

// NewCollector registers the counters on the given registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrollcall_scans_total",
			Help: "Attendance records created from QR scans.",
		}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrollcall_sessions_created_total",
			Help: "Session/QR pairs minted.",
		}),
		sweepDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qrollcall_sweep_deleted_total",
			Help: "Records removed by cleanup sweeps, by operation.",
		}, []string{"operation"}),
		exports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrollcall_exports_total",
			Help: "CSV reports generated.",
		}),
		exportRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrollcall_export_rows_total",
			Help: "Rows written across all CSV reports.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qrollcall_notifications_total",
			Help: "Notification delivery attempts, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.scans,
		c.sessions,
		c.sweepDeleted,
		c.exports,
		c.exportRows,
		c.notifications,
	)
	return c
}

// RecordScan counts one attendance scan.
func (c *Collector) RecordScan() { c.scans.Inc() }

// RecordSessionCreated counts one minted session/QR pair.
func (c *Collector) RecordSessionCreated() { c.sessions.Inc() }

// RecordSweep counts records removed by one sweep operation.
func (c *Collector) RecordSweep(operation string, deleted int64) {
	c.sweepDeleted.WithLabelValues(operation).Add(float64(deleted))
}

// RecordExport counts one generated report and its rows.
func (c *Collector) RecordExport(rows int) {
	c.exports.Inc()
	c.exportRows.Add(float64(rows))
}

// RecordNotification counts one delivery attempt.
func (c *Collector) RecordNotification(err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	c.notifications.WithLabelValues(outcome).Inc()
}
