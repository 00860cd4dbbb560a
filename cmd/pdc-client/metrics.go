package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdc_commands_sent_total",
		Help: "Commands sent to the PMU/PDC by type",
	}, []string{"command"})

	bytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdc_bytes_received_total",
		Help: "Total bytes received from the PMU/PDC",
	})

	frameErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdc_frame_errors_total",
		Help: "Frame errors encountered by type",
	}, []string{"error_type"})

	dataFrameRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pdc_data_frame_rate_hz",
		Help: "Observed Data frame arrival rate in Hz",
	})
)

// prometheusMetrics is the Prometheus-backed synchrophasor.MetricsRecorder
// for this example CLI. The core package never imports Prometheus itself;
// it only depends on the MetricsRecorder interface.
type prometheusMetrics struct{}

func (prometheusMetrics) RecordCommand(cmdType string) {
	commandsSent.WithLabelValues(cmdType).Inc()
}

func (prometheusMetrics) RecordBytesReceived(size int) {
	bytesReceived.Add(float64(size))
}

func (prometheusMetrics) RecordFrameError(errorType string) {
	frameErrors.WithLabelValues(errorType).Inc()
}

func (prometheusMetrics) UpdateDataFrameRate(rate float64) {
	dataFrameRate.Set(rate)
}
