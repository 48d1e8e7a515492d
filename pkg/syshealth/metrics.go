package syshealth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	healthScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "host_health_score",
		Help: "Host pressure score (0-100, higher is healthier)",
	})

	ioWaitPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "host_io_wait_percent",
		Help: "Host I/O wait percentage",
	})

	cpuLoadAvg = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "host_cpu_load_avg",
		Help: "Host CPU load average",
	}, []string{"period"})

	memoryUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "host_memory_utilization_percent",
		Help: "Host memory utilization percentage",
	})

	collectionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "host_health_collection_failures_total",
		Help: "Host metric collections with at least one failed probe",
	})
)
