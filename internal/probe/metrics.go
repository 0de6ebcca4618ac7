package probe

import "github.com/prometheus/client_golang/prometheus"

var (
	probeRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "larkwatch_probe_runs_total",
			Help: "Probe command executions, by task and outcome.",
		},
		[]string{"task", "outcome"},
	)
	probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "larkwatch_probe_duration_seconds",
			Help:    "Probe command duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)
	probeTasksRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "larkwatch_probe_tasks_running",
			Help: "Number of probe loops currently running.",
		},
	)
)

func init() {
	prometheus.MustRegister(probeRunsTotal)
	prometheus.MustRegister(probeDuration)
	prometheus.MustRegister(probeTasksRunning)
}

func observeRun(task string, res Execution) {
	probeRunsTotal.WithLabelValues(task, res.Outcome.String()).Inc()
	probeDuration.WithLabelValues(task).Observe(res.Duration.Seconds())
}
