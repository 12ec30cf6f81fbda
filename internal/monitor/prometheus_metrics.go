package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

func PrometheusMetrics() map[MetricTag]prometheus.Collector {
	metrics := make(map[MetricTag]prometheus.Collector)

	for tag, summaryVec := range SummaryVecMetrics {
		metrics[tag] = summaryVec
	}

	for tag, counterVec := range CounterVecMetrics {
		metrics[tag] = counterVec
	}

	for tag, gauge := range GaugeMetrics {
		metrics[tag] = gauge
	}

	return metrics
}

var SummaryVecMetrics = map[MetricTag]*prometheus.SummaryVec{
	SuccessfulQueryDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "adp", Subsystem: "db", Name: string(SuccessfulQueryDurationTag),
		Help: "Successful DB query durations",
	},
		[]string{"query_type"},
	),
	FailureQueryDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "adp", Subsystem: "db", Name: string(FailureQueryDurationTag),
		Help: "Failure DB query durations",
	},
		[]string{"query_type"},
	),
}

var CounterVecMetrics = map[MetricTag]*prometheus.CounterVec{
	PendingDepositsPolledTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adp", Subsystem: "business", Name: string(PendingDepositsPolledTag),
		Help: "A counter of deposits handed to the rails for funding checks",
	},
		[]string{"asset_code"},
	),
	DepositSubmissionsTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adp", Subsystem: "business", Name: string(DepositSubmissionsTag),
		Help: "A counter of deposit submission attempts, by outcome",
	},
		[]string{"asset_code", "outcome"},
	),
	WebhookDeliveriesTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adp", Subsystem: "business", Name: string(WebhookDeliveriesTag),
		Help: "A counter of status callback deliveries, by result",
	},
		[]string{"result"},
	),
}

var GaugeMetrics = map[MetricTag]prometheus.Gauge{
	SubmissionQueueDepthTag: prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "adp", Subsystem: "business", Name: string(SubmissionQueueDepthTag),
		Help: "The number of deposits waiting in the in-memory submission queue",
	}),
	HeartbeatAgeSecondsTag: prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "adp", Subsystem: "business", Name: string(HeartbeatAgeSecondsTag),
		Help: "Seconds since this instance last refreshed its singleton heartbeat",
	}),
}
