package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ServersTotal is the number of registered instances by lifecycle status.
	ServersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ender_servers_total",
			Help: "Number of managed server instances by status",
		},
		[]string{"status"},
	)

	PropertiesSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ender_properties_saves_total",
			Help: "server.properties writes by result",
		},
		[]string{"result"},
	)

	BackupsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ender_backups_created_total",
			Help: "Backups created by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	BackupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ender_backup_duration_seconds",
			Help:    "Time taken to archive one instance directory",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	InstanceDiskBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ender_instance_disk_bytes",
			Help: "Size of each instance directory",
		},
		[]string{"server_id"},
	)

	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ender_api_requests_total",
			Help: "API requests by method and status code",
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(ServersTotal)
	prometheus.MustRegister(PropertiesSaves)
	prometheus.MustRegister(BackupsCreated)
	prometheus.MustRegister(BackupDuration)
	prometheus.MustRegister(InstanceDiskBytes)
	prometheus.MustRegister(APIRequestsTotal)
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time in h.
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(time.Since(t.start).Seconds())
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
