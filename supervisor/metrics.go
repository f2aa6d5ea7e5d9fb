package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Supervisor metrics, exposed on the status server's /metrics endpoint
var (
	restartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "child_restarts_total",
		Help:      "Total number of gateway restarts performed by the supervisor",
	})

	crashesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "child_crashes_total",
		Help:      "Total number of quick crashes counted by the circuit breaker",
	})

	breakerOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "breaker_open_total",
		Help:      "Times the circuit breaker opened and halted the restart loop",
	})

	childUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "warden",
		Name:      "child_up",
		Help:      "1 while a gateway child process is running",
	})

	crashWindowCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "warden",
		Name:      "breaker_crash_window",
		Help:      "Quick-crash count inside the current breaker window",
	})

	childUptimeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "warden",
		Name:      "child_uptime_seconds",
		Help:      "Uptime of each gateway child at exit",
		Buckets:   []float64{1, 5, 15, 30, 60, 300, 1800, 3600, 21600, 86400},
	})
)
